// Dangerbox room state machine
//
// A room moves through waiting → choosing → playing → finished, returning
// to waiting on restart. Two modes:
//
//   - classic: free-for-all, single life. The host starts the game, the room
//     enters "choosing", the host picks the danger square, and play begins.
//     Whoever reveals the danger square loses; clearing every safe square
//     wins for the clicker.
//   - elimination: turn-based, multiple lives. The start transition draws the
//     danger square at random and play begins immediately. Out-of-turn clicks
//     are rejected. Revealing the danger square eliminates the clicker but
//     the board (and danger square) persists; the last active player wins and
//     the final ranking lists eliminations most-recent-first behind them.
//
// All methods assume the caller serializes access; the router goroutine is
// the sole owner of live rooms.

package main

import (
	"errors"
	"fmt"
	"time"
)

var (
	errRoomNotFound       = errors.New("room not found")
	errGameAlreadyStarted = errors.New("game already started")
	errRoomFull           = errors.New("room is full")
	errNotYourTurn        = errors.New("not your turn")
	errNotHost            = errors.New("only the host may do that")
	errNotInRoom          = errors.New("not in a room")
	errBadAction          = errors.New("malformed action")
)

type roomState int

const (
	stateWaiting roomState = iota
	stateChoosing
	statePlaying
	stateFinished
)

func (s roomState) String() string {
	switch s {
	case stateWaiting:
		return "waiting"
	case stateChoosing:
		return "choosing"
	case statePlaying:
		return "playing"
	case stateFinished:
		return "finished"
	}
	return "unknown"
}

type gameMode int

const (
	modeClassic gameMode = iota
	modeElimination
)

func (m gameMode) String() string {
	if m == modeElimination {
		return "elimination"
	}
	return "classic"
}

func parseMode(s string) (gameMode, error) {
	switch s {
	case "", "classic":
		return modeClassic, nil
	case "elimination":
		return modeElimination, nil
	}
	return modeClassic, fmt.Errorf("unknown game mode: %q", s)
}

type elimination struct {
	playerID string
	name     string
	order    int
	square   int
}

type Room struct {
	code       string
	host       string
	mode       gameMode
	boardSize  int
	maxPlayers int
	state      roomState

	players []string          // join order
	active  []string          // players still in turn rotation
	names   map[string]string // connection id -> display name

	danger     int // -1 until drawn or picked
	clicked    map[int]bool
	clickOrder []int
	eliminated []elimination
	turn       int // index into active, elimination mode

	lastActive time.Time
}

func newRoom(code string, mode gameMode, boardSize, maxPlayers int) *Room {
	return &Room{
		code:       code,
		mode:       mode,
		boardSize:  boardSize,
		maxPlayers: maxPlayers,
		state:      stateWaiting,
		names:      make(map[string]string),
		danger:     -1,
		clicked:    make(map[int]bool),
		lastActive: time.Now(),
	}
}

// join appends a player during the waiting state. The first player to join
// becomes host.
func (r *Room) join(id, name string) error {
	if r.state != stateWaiting {
		return errGameAlreadyStarted
	}
	if r.maxPlayers > 0 && len(r.players) >= r.maxPlayers {
		return errRoomFull
	}

	if r.host == "" {
		r.host = id
	}
	r.players = append(r.players, id)
	r.active = append(r.active, id)
	r.names[id] = name

	return nil
}

// start begins a play-through. In classic mode the room enters "choosing"
// and waits for the host to pick the danger square; in elimination mode the
// danger square is drawn via randInt and play begins at once. A positive
// boardSize overrides the size chosen at creation.
func (r *Room) start(id string, boardSize int, randInt func(int) int) error {
	if id != r.host {
		return errNotHost
	}
	if r.state != stateWaiting {
		return errGameAlreadyStarted
	}

	if boardSize > 1 {
		r.boardSize = boardSize
	}

	switch r.mode {
	case modeClassic:
		r.state = stateChoosing
	case modeElimination:
		r.danger = randInt(r.boardSize)
		r.turn = 0
		r.state = statePlaying
	}

	return nil
}

// selectDanger sets the danger square during the choosing state.
func (r *Room) selectDanger(id string, square int) error {
	if id != r.host {
		return errNotHost
	}
	if r.state != stateChoosing {
		return errGameAlreadyStarted
	}
	if square < 0 || square >= r.boardSize {
		return errBadAction
	}

	r.danger = square
	r.state = statePlaying

	return nil
}

type revealOutcome int

const (
	revealNoop revealOutcome = iota // safe square already clicked
	revealSafe
	revealWin         // every safe square cleared
	revealLoss        // classic: clicker hit the danger square
	revealEliminated  // elimination: clicker out, game continues
	revealSurvivorWin // elimination: one active player remains
	revealAllOut      // elimination: nobody left
)

type revealResult struct {
	outcome revealOutcome
	square  int
	next    string // connection id to act next, where applicable
}

// reveal resolves one square click. Revealing the danger square and
// revealing a safe square are mutually exclusive per click; double-click
// guarding applies only to safe squares, since the danger square leaves the
// playing state.
func (r *Room) reveal(id string, square int) (revealResult, error) {
	if r.state != statePlaying {
		return revealResult{}, errGameAlreadyStarted
	}
	if square < 0 || square >= r.boardSize {
		return revealResult{}, errBadAction
	}

	if r.mode == modeElimination {
		if len(r.active) == 0 || r.active[r.turn] != id {
			return revealResult{}, errNotYourTurn
		}
	}

	if square == r.danger {
		return r.revealDanger(id, square), nil
	}

	if r.clicked[square] {
		return revealResult{outcome: revealNoop, square: square}, nil
	}

	r.clicked[square] = true
	r.clickOrder = append(r.clickOrder, square)

	if len(r.clicked) == r.boardSize-1 {
		r.state = stateFinished
		return revealResult{outcome: revealWin, square: square}, nil
	}

	res := revealResult{outcome: revealSafe, square: square}
	if r.mode == modeElimination {
		r.turn = (r.turn + 1) % len(r.active)
		res.next = r.active[r.turn]
	}

	return res, nil
}

func (r *Room) revealDanger(id string, square int) revealResult {
	if r.mode == modeClassic {
		r.state = stateFinished
		return revealResult{outcome: revealLoss, square: square}
	}

	r.eliminated = append(r.eliminated, elimination{
		playerID: id,
		name:     r.names[id],
		order:    len(r.eliminated) + 1,
		square:   square,
	})
	r.active = append(r.active[:r.turn], r.active[r.turn+1:]...)

	switch len(r.active) {
	case 0:
		// unreachable under turn enforcement, but a room emptied by
		// mid-game departures can get here
		r.state = stateFinished
		return revealResult{outcome: revealAllOut, square: square}
	case 1:
		r.state = stateFinished
		return revealResult{outcome: revealSurvivorWin, square: square, next: r.active[0]}
	}

	r.turn %= len(r.active)

	return revealResult{outcome: revealEliminated, square: square, next: r.active[r.turn]}
}

// restart returns the room to waiting with a fresh board, keeping the
// roster. Tolerated from any state.
func (r *Room) restart(id string) error {
	if id != r.host {
		return errNotHost
	}

	r.danger = -1
	r.clicked = make(map[int]bool)
	r.clickOrder = nil
	r.eliminated = nil
	r.active = append([]string(nil), r.players...)
	r.turn = 0
	r.state = stateWaiting

	return nil
}

// removePlayer drops a player from the roster and turn rotation, keeping
// the turn pointer aimed at the same next actor. Departures are not
// eliminations: no ranking slot is consumed. Returns whether the player was
// present and whether the host changed.
func (r *Room) removePlayer(id string) (removed, hostChanged bool) {
	idx := -1
	for i, pid := range r.players {
		if pid == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false, false
	}

	r.players = append(r.players[:idx], r.players[idx+1:]...)
	delete(r.names, id)

	for i, pid := range r.active {
		if pid == id {
			r.active = append(r.active[:i], r.active[i+1:]...)
			if i < r.turn {
				r.turn--
			}
			break
		}
	}
	if len(r.active) > 0 {
		r.turn %= len(r.active)
	} else {
		r.turn = 0
	}

	if r.host == id && len(r.players) > 0 {
		r.host = r.players[0]
		hostChanged = true
	}

	return true, hostChanged
}

func (r *Room) roster() []PlayerInfo {
	return r.playerInfos(r.players)
}

func (r *Room) activeRoster() []PlayerInfo {
	return r.playerInfos(r.active)
}

func (r *Room) playerInfos(ids []string) []PlayerInfo {
	infos := make([]PlayerInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, PlayerInfo{ID: id, Name: r.names[id]})
	}
	return infos
}

// ranking builds the final standing for an elimination win: the survivor
// first, then eliminations most-recent-first.
func (r *Room) ranking(winner string) []PlayerInfo {
	out := make([]PlayerInfo, 0, len(r.eliminated)+1)
	out = append(out, PlayerInfo{ID: winner, Name: r.names[winner]})
	for i := len(r.eliminated) - 1; i >= 0; i-- {
		e := r.eliminated[i]
		out = append(out, PlayerInfo{ID: e.playerID, Name: e.name})
	}
	return out
}

func (r *Room) clickedSquares() []int {
	return append([]int(nil), r.clickOrder...)
}

func (r *Room) touch() {
	r.lastActive = time.Now()
}
