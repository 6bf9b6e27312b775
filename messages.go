package main

// Messages coming from clients. Type selects the action; the remaining
// fields are read or ignored per action.
type ClientMessage struct {
	Type        string `json:"type"`                  // "createRoom", "joinRoom", "startGame", "selectDangerSquare", "squareClicked", "restartGame", "checkSession", "leaveSession"
	RoomCode    string `json:"roomCode,omitempty"`    // joinRoom / checkSession
	PlayerName  string `json:"playerName,omitempty"`  // createRoom / joinRoom
	Mode        string `json:"mode,omitempty"`        // createRoom: "classic" or "elimination"
	BoardSize   int    `json:"boardSize,omitempty"`   // createRoom / startGame override
	MaxPlayers  int    `json:"maxPlayers,omitempty"`  // createRoom
	SquareIndex *int   `json:"squareIndex,omitempty"` // selectDangerSquare / squareClicked; pointer so index 0 is distinguishable from absent
}

// PlayerInfo identifies one roster entry.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConnectedMessage is sent to a single client immediately after its
// websocket is accepted, so it knows its own connection id.
type ConnectedMessage struct {
	Type     string `json:"type"` // "connected"
	PlayerID string `json:"playerId"`
}

type RoomCreatedMessage struct {
	Type       string       `json:"type"` // "roomCreated"
	RoomCode   string       `json:"roomCode"`
	Host       string       `json:"host"`
	Mode       string       `json:"mode"`
	BoardSize  int          `json:"boardSize"`
	MaxPlayers int          `json:"maxPlayers,omitempty"`
	Players    []PlayerInfo `json:"players"`
}

type PlayerJoinedMessage struct {
	Type       string       `json:"type"` // "playerJoined"
	PlayerID   string       `json:"playerId"`
	PlayerName string       `json:"playerName"`
	Players    []PlayerInfo `json:"players"`
}

type GameStartedMessage struct {
	Type        string       `json:"type"`  // "gameStarted"
	State       string       `json:"state"` // "choosing" or "playing"
	Mode        string       `json:"mode"`
	BoardSize   int          `json:"boardSize"`
	CurrentTurn string       `json:"currentTurn,omitempty"` // first player to act, elimination mode
	Players     []PlayerInfo `json:"players"`
}

type DangerSquareSelectedMessage struct {
	Type         string `json:"type"` // "dangerSquareSelected"
	DangerSquare int    `json:"dangerSquare"`
	BoardSize    int    `json:"boardSize"`
}

type SquareClickedMessage struct {
	Type         string `json:"type"` // "squareClicked"
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	SquareIndex  int    `json:"squareIndex"`
	ClickedCount int    `json:"clickedCount"`
	CurrentTurn  string `json:"currentTurn,omitempty"` // next player to act, elimination mode
}

// EliminationRecord describes one player knocked out during an
// elimination-mode play-through.
type EliminationRecord struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	Order       int    `json:"order"`
	SquareIndex int    `json:"squareIndex"`
}

type PlayerEliminatedMessage struct {
	Type        string            `json:"type"` // "playerEliminated"
	Eliminated  EliminationRecord `json:"eliminated"`
	Remaining   []PlayerInfo      `json:"remaining"`
	CurrentTurn string            `json:"currentTurn"`
}

type GameWonMessage struct {
	Type           string       `json:"type"` // "gameWon"
	Winner         string       `json:"winner"`
	WinnerName     string       `json:"winnerName"`
	ClickedSquares []int        `json:"clickedSquares"`
	Ranking        []PlayerInfo `json:"ranking,omitempty"` // elimination mode: winner first, then most recent eliminations
}

type GameOverMessage struct {
	Type           string `json:"type"` // "gameOver"
	Loser          string `json:"loser,omitempty"`
	LoserName      string `json:"loserName,omitempty"`
	ClickedSquares []int  `json:"clickedSquares"`
	AllEliminated  bool   `json:"allEliminated,omitempty"`
}

type GameRestartedMessage struct {
	Type string `json:"type"` // "gameRestarted"
}

type NewHostMessage struct {
	Type   string `json:"type"` // "newHost"
	HostID string `json:"hostId"`
}

type PlayerLeftMessage struct {
	Type        string       `json:"type"` // "playerLeft"
	PlayerID    string       `json:"playerId"`
	Players     []PlayerInfo `json:"players"`
	CurrentTurn string       `json:"currentTurn,omitempty"` // next player to act, if a game is in progress
}

// SessionInfoMessage answers a checkSession query; sent only to the
// asking client.
type SessionInfoMessage struct {
	Type        string `json:"type"` // "sessionInfo"
	RoomCode    string `json:"roomCode"`
	Exists      bool   `json:"exists"`
	State       string `json:"state,omitempty"`
	PlayerCount int    `json:"playerCount,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
