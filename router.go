package main

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"strings"
	"time"
)

// Router owns the room map and the connection registry. All inbound
// actions funnel through one goroutine (run), so every state-machine
// transition executes atomically with respect to every other; the
// transport layer never touches room state directly.
type Router struct {
	cfg   *Config
	rooms *RoomStore
	conns *ConnectionRegistry

	clients map[string]*client // connection id -> client

	register chan *client
	unreg    chan *client
	actions  chan inbound

	randInt func(int) int // danger-square draw, swappable in tests
}

type inbound struct {
	client *client
	msg    ClientMessage
}

func newRouter(cfg *Config) *Router {
	return &Router{
		cfg:      cfg,
		rooms:    newRoomStore(),
		conns:    newConnectionRegistry(),
		clients:  make(map[string]*client),
		register: make(chan *client),
		unreg:    make(chan *client),
		actions:  make(chan inbound),
		randInt:  cryptoRandInt,
	}
}

// cryptoRandInt draws uniformly-enough from [0, n) using crypto/rand.
func cryptoRandInt(n int) int {
	if n <= 1 {
		return 0
	}
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return int(binary.BigEndian.Uint32(buf[:]) % uint32(n))
}

func (rt *Router) run() {
	var reap <-chan time.Time
	if rt.cfg.sessionTimeout > 0 {
		ticker := time.NewTicker(rt.cfg.sessionTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case c := <-rt.register:
			rt.connect(c)

		case c := <-rt.unreg:
			rt.disconnect(c)

		case a := <-rt.actions:
			rt.dispatch(a.client, a.msg)

		case <-reap:
			rt.reapIdle()
		}
	}
}

func (rt *Router) connect(c *client) {
	rt.clients[c.id] = c

	rt.sendTo(c, ConnectedMessage{
		Type:     "connected",
		PlayerID: c.id,
	})
}

func (rt *Router) disconnect(c *client) {
	rt.handleDeparture(c)

	if _, ok := rt.clients[c.id]; ok {
		delete(rt.clients, c.id)
		close(c.send)
	}
}

// dispatch performs no game logic itself; it resolves the actor's room,
// invokes the matching state-machine transition, and fans the results out.
func (rt *Router) dispatch(c *client, msg ClientMessage) {
	switch msg.Type {
	case "createRoom":
		rt.createRoom(c, msg)
	case "joinRoom":
		rt.joinRoom(c, msg)
	case "startGame":
		rt.startGame(c, msg)
	case "selectDangerSquare":
		rt.selectDangerSquare(c, msg)
	case "squareClicked":
		rt.squareClicked(c, msg)
	case "restartGame":
		rt.restartGame(c)
	case "checkSession":
		rt.checkSession(c, msg)
	case "leaveSession":
		rt.handleDeparture(c)
	default:
		// ignore unknown types
	}
}

// fail reports a rejected action to the acting connection only. Host-only
// violations and actions from connections outside any room stay silent,
// matching observed client expectations.
func (rt *Router) fail(c *client, err error) {
	if errors.Is(err, errNotHost) || errors.Is(err, errNotInRoom) {
		return
	}

	rt.sendTo(c, ErrorMessage{
		Type:    "error",
		Message: err.Error(),
	})
}

// sendTo delivers a message to one client, dropping clients whose send
// buffer is full.
func (rt *Router) sendTo(c *client, msg any) {
	if _, ok := rt.clients[c.id]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(rt.clients, c.id)
		close(c.send)
	}
}

// broadcast fans a notification out to every member of a room.
func (rt *Router) broadcast(room *Room, msg any) {
	for _, pid := range room.players {
		if c, ok := rt.clients[pid]; ok {
			rt.sendTo(c, msg)
		}
	}
}

// resolveRoom maps the acting connection to its room via the registry.
func (rt *Router) resolveRoom(c *client) (*Room, error) {
	reg, ok := rt.conns.lookup(c.id)
	if !ok {
		return nil, errNotInRoom
	}

	room, ok := rt.rooms.get(reg.roomCode)
	if !ok {
		rt.conns.unregister(c.id)
		return nil, errNotInRoom
	}

	return room, nil
}

func (rt *Router) createRoom(c *client, msg ClientMessage) {
	if msg.PlayerName == "" {
		rt.fail(c, errBadAction)
		return
	}

	mode, err := parseMode(msg.Mode)
	if err != nil {
		rt.fail(c, errBadAction)
		return
	}
	if msg.Mode == "" {
		mode, _ = parseMode(rt.cfg.defaultMode)
	}

	boardSize := rt.cfg.boardSize
	if msg.BoardSize > 1 {
		boardSize = msg.BoardSize
	}
	maxPlayers := rt.cfg.maxPlayers
	if msg.MaxPlayers > 0 {
		maxPlayers = msg.MaxPlayers
	}

	// a connection occupies one room at a time
	rt.handleDeparture(c)

	room := rt.rooms.create(mode, boardSize, maxPlayers)
	if err := room.join(c.id, msg.PlayerName); err != nil {
		rt.rooms.delete(room.code)
		rt.fail(c, err)
		return
	}
	rt.conns.register(c.id, room.code, msg.PlayerName)

	logf(rt.cfg, "ROOMS: %q created room %s (%s, %d squares)", msg.PlayerName, room.code, room.mode, room.boardSize)

	rt.broadcast(room, RoomCreatedMessage{
		Type:       "roomCreated",
		RoomCode:   room.code,
		Host:       room.host,
		Mode:       room.mode.String(),
		BoardSize:  room.boardSize,
		MaxPlayers: room.maxPlayers,
		Players:    room.roster(),
	})
}

func (rt *Router) joinRoom(c *client, msg ClientMessage) {
	if msg.PlayerName == "" || msg.RoomCode == "" {
		rt.fail(c, errBadAction)
		return
	}

	code := strings.ToUpper(msg.RoomCode)

	room, ok := rt.rooms.get(code)
	if !ok {
		rt.fail(c, errRoomNotFound)
		return
	}

	// rejoining the room this connection already occupies would
	// duplicate its roster entry; treat it as a no-op
	if reg, ok := rt.conns.lookup(c.id); ok && reg.roomCode == room.code {
		return
	}

	if err := room.join(c.id, msg.PlayerName); err != nil {
		rt.fail(c, err)
		return
	}

	// a failed join leaves the old membership intact; a successful one
	// moves the connection over
	rt.handleDeparture(c)
	rt.conns.register(c.id, room.code, msg.PlayerName)
	room.touch()

	logf(rt.cfg, "ROOMS: %q joined room %s", msg.PlayerName, room.code)

	rt.broadcast(room, PlayerJoinedMessage{
		Type:       "playerJoined",
		PlayerID:   c.id,
		PlayerName: msg.PlayerName,
		Players:    room.roster(),
	})
}

func (rt *Router) startGame(c *client, msg ClientMessage) {
	room, err := rt.resolveRoom(c)
	if err != nil {
		rt.fail(c, err)
		return
	}

	if err := room.start(c.id, msg.BoardSize, rt.randInt); err != nil {
		rt.fail(c, err)
		return
	}
	room.touch()

	started := GameStartedMessage{
		Type:      "gameStarted",
		State:     room.state.String(),
		Mode:      room.mode.String(),
		BoardSize: room.boardSize,
		Players:   room.roster(),
	}
	if room.mode == modeElimination {
		started.CurrentTurn = room.active[room.turn]
	}

	logf(rt.cfg, "ROOMS: Room %s started (%s)", room.code, room.state)

	rt.broadcast(room, started)
}

func (rt *Router) selectDangerSquare(c *client, msg ClientMessage) {
	room, err := rt.resolveRoom(c)
	if err != nil {
		rt.fail(c, err)
		return
	}

	if msg.SquareIndex == nil {
		rt.fail(c, errBadAction)
		return
	}

	if err := room.selectDanger(c.id, *msg.SquareIndex); err != nil {
		rt.fail(c, err)
		return
	}
	room.touch()

	rt.broadcast(room, DangerSquareSelectedMessage{
		Type:         "dangerSquareSelected",
		DangerSquare: room.danger,
		BoardSize:    room.boardSize,
	})
}

func (rt *Router) squareClicked(c *client, msg ClientMessage) {
	room, err := rt.resolveRoom(c)
	if err != nil {
		rt.fail(c, err)
		return
	}

	if msg.SquareIndex == nil {
		rt.fail(c, errBadAction)
		return
	}

	res, err := room.reveal(c.id, *msg.SquareIndex)
	if err != nil {
		rt.fail(c, err)
		return
	}
	room.touch()

	name := room.names[c.id]

	switch res.outcome {
	case revealNoop:
		// already-clicked safe square, idempotent

	case revealSafe:
		rt.broadcast(room, SquareClickedMessage{
			Type:         "squareClicked",
			PlayerID:     c.id,
			PlayerName:   name,
			SquareIndex:  res.square,
			ClickedCount: len(room.clicked),
			CurrentTurn:  res.next,
		})

	case revealWin:
		logf(rt.cfg, "ROOMS: %q cleared the board in room %s", name, room.code)
		rt.broadcast(room, GameWonMessage{
			Type:           "gameWon",
			Winner:         c.id,
			WinnerName:     name,
			ClickedSquares: room.clickedSquares(),
		})

	case revealLoss:
		logf(rt.cfg, "ROOMS: %q hit the danger square in room %s", name, room.code)
		rt.broadcast(room, GameOverMessage{
			Type:           "gameOver",
			Loser:          c.id,
			LoserName:      name,
			ClickedSquares: room.clickedSquares(),
		})

	case revealEliminated:
		last := room.eliminated[len(room.eliminated)-1]
		logf(rt.cfg, "ROOMS: %q eliminated in room %s (#%d)", name, room.code, last.order)
		rt.broadcast(room, PlayerEliminatedMessage{
			Type: "playerEliminated",
			Eliminated: EliminationRecord{
				PlayerID:    last.playerID,
				PlayerName:  last.name,
				Order:       last.order,
				SquareIndex: last.square,
			},
			Remaining:   room.activeRoster(),
			CurrentTurn: res.next,
		})

	case revealSurvivorWin:
		// the final elimination is reported as the loss that ended the
		// game, then the survivor's win with the full ranking
		logf(rt.cfg, "ROOMS: %q survived room %s", room.names[res.next], room.code)
		rt.broadcast(room, GameOverMessage{
			Type:           "gameOver",
			Loser:          c.id,
			LoserName:      name,
			ClickedSquares: room.clickedSquares(),
		})
		rt.broadcast(room, GameWonMessage{
			Type:           "gameWon",
			Winner:         res.next,
			WinnerName:     room.names[res.next],
			ClickedSquares: room.clickedSquares(),
			Ranking:        room.ranking(res.next),
		})

	case revealAllOut:
		rt.broadcast(room, GameOverMessage{
			Type:           "gameOver",
			ClickedSquares: room.clickedSquares(),
			AllEliminated:  true,
		})
	}
}

func (rt *Router) restartGame(c *client) {
	room, err := rt.resolveRoom(c)
	if err != nil {
		rt.fail(c, err)
		return
	}

	if err := room.restart(c.id); err != nil {
		rt.fail(c, err)
		return
	}
	room.touch()

	logf(rt.cfg, "ROOMS: Room %s restarted", room.code)

	rt.broadcast(room, GameRestartedMessage{
		Type: "gameRestarted",
	})
}

func (rt *Router) checkSession(c *client, msg ClientMessage) {
	code := strings.ToUpper(msg.RoomCode)

	info := SessionInfoMessage{
		Type:     "sessionInfo",
		RoomCode: code,
	}

	if room, ok := rt.rooms.get(code); ok {
		info.Exists = true
		info.State = room.state.String()
		info.PlayerCount = len(room.players)
	}

	rt.sendTo(c, info)
}

// handleDeparture removes the acting connection from its room, if any,
// reassigning the host and deleting the room when it empties.
func (rt *Router) handleDeparture(c *client) {
	reg, ok := rt.conns.lookup(c.id)
	if !ok {
		return
	}
	rt.conns.unregister(c.id)

	room, ok := rt.rooms.get(reg.roomCode)
	if !ok {
		return
	}

	removed, hostChanged := room.removePlayer(c.id)
	if !removed {
		return
	}

	if len(room.players) == 0 {
		rt.rooms.delete(room.code)
		logf(rt.cfg, "ROOMS: Room %s emptied and removed", room.code)
		return
	}
	room.touch()

	logf(rt.cfg, "ROOMS: %q left room %s", reg.name, room.code)

	if hostChanged {
		rt.broadcast(room, NewHostMessage{
			Type:   "newHost",
			HostID: room.host,
		})
	}

	left := PlayerLeftMessage{
		Type:     "playerLeft",
		PlayerID: c.id,
		Players:  room.roster(),
	}
	if room.mode == modeElimination && room.state == statePlaying && len(room.active) > 0 {
		left.CurrentTurn = room.active[room.turn]
	}

	rt.broadcast(room, left)
}

// reapIdle tears down rooms idle longer than the configured session
// timeout, disconnecting their remaining members.
func (rt *Router) reapIdle() {
	cutoff := time.Now().Add(-rt.cfg.sessionTimeout)

	for code, room := range rt.rooms.rooms {
		if !room.lastActive.Before(cutoff) {
			continue
		}

		for _, pid := range room.players {
			rt.conns.unregister(pid)
			if c, ok := rt.clients[pid]; ok {
				delete(rt.clients, pid)
				close(c.send)
			}
		}

		rt.rooms.delete(code)
		logf(rt.cfg, "ROOMS: Reaped idle room %s", code)
	}
}
