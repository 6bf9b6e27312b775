package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Router tests drive dispatch directly, with no websockets involved:
// fake clients carry only an id and a buffered send channel, and each
// test asserts on the notifications that land there.

func testRouter() *Router {
	return newRouter(&Config{
		boardSize:      9,
		defaultMode:    "classic",
		sessionTimeout: time.Hour,
	})
}

func testClient(t *testing.T, rt *Router, id string) *client {
	t.Helper()

	c := &client{
		id:   id,
		send: make(chan any, 32),
	}
	rt.connect(c)

	connected := nextMsg(t, c)
	require.IsType(t, ConnectedMessage{}, connected)
	require.Equal(t, id, connected.(ConnectedMessage).PlayerID)

	return c
}

func nextMsg(t *testing.T, c *client) any {
	t.Helper()

	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return msg
	default:
		t.Fatal("expected a pending message")
		return nil
	}
}

func noMsg(t *testing.T, c *client) {
	t.Helper()

	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message: %#v", msg)
	default:
	}
}

func createTestRoom(t *testing.T, rt *Router, c *client, msg ClientMessage) RoomCreatedMessage {
	t.Helper()

	msg.Type = "createRoom"
	rt.dispatch(c, msg)

	created := nextMsg(t, c)
	require.IsType(t, RoomCreatedMessage{}, created)

	return created.(RoomCreatedMessage)
}

func joinTestRoom(t *testing.T, rt *Router, c *client, code, name string) {
	t.Helper()

	rt.dispatch(c, ClientMessage{Type: "joinRoom", RoomCode: code, PlayerName: name})

	joined := nextMsg(t, c)
	require.IsType(t, PlayerJoinedMessage{}, joined)
}

func square(i int) *int {
	return &i
}

func TestCreateRoom(t *testing.T) {
	rt := testRouter()
	alice := testClient(t, rt, "alice-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice", BoardSize: 16, Mode: "elimination"})

	assert.Len(t, created.RoomCode, codeLength)
	assert.Equal(t, "alice-conn", created.Host)
	assert.Equal(t, "elimination", created.Mode)
	assert.Equal(t, 16, created.BoardSize)
	require.Len(t, created.Players, 1)
	assert.Equal(t, "Alice", created.Players[0].Name)

	reg, ok := rt.conns.lookup("alice-conn")
	require.True(t, ok)
	assert.Equal(t, created.RoomCode, reg.roomCode)
}

func TestScenarioEliminationTwoPlayers(t *testing.T) {
	rt := testRouter()
	rt.randInt = func(int) int { return 7 }

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice", BoardSize: 9, Mode: "elimination"})

	joinTestRoom(t, rt, bob, created.RoomCode, "Bob")
	joined := nextMsg(t, alice).(PlayerJoinedMessage)
	require.Len(t, joined.Players, 2)
	assert.Equal(t, []string{"Alice", "Bob"}, []string{joined.Players[0].Name, joined.Players[1].Name})

	rt.dispatch(alice, ClientMessage{Type: "startGame"})
	started := nextMsg(t, alice).(GameStartedMessage)
	require.IsType(t, GameStartedMessage{}, nextMsg(t, bob))
	assert.Equal(t, "playing", started.State)
	assert.Equal(t, 9, started.BoardSize)
	assert.Equal(t, "alice-conn", started.CurrentTurn)

	room, ok := rt.rooms.get(created.RoomCode)
	require.True(t, ok)
	assert.GreaterOrEqual(t, room.danger, 0)
	assert.Less(t, room.danger, room.boardSize)

	// Alice reveals a safe square; the turn passes to Bob
	rt.dispatch(alice, ClientMessage{Type: "squareClicked", SquareIndex: square(3)})
	clickedAlice := nextMsg(t, alice).(SquareClickedMessage)
	clickedBob := nextMsg(t, bob).(SquareClickedMessage)
	assert.Equal(t, clickedAlice, clickedBob)
	assert.Equal(t, 3, clickedAlice.SquareIndex)
	assert.Equal(t, 1, clickedAlice.ClickedCount)
	assert.Equal(t, "bob-conn", clickedAlice.CurrentTurn)

	// Bob hits the danger square
	rt.dispatch(bob, ClientMessage{Type: "squareClicked", SquareIndex: square(7)})

	over := nextMsg(t, alice).(GameOverMessage)
	assert.Equal(t, "bob-conn", over.Loser)
	assert.Equal(t, "Bob", over.LoserName)

	won := nextMsg(t, alice).(GameWonMessage)
	assert.Equal(t, "alice-conn", won.Winner)
	require.Len(t, won.Ranking, 2)
	assert.Equal(t, "Alice", won.Ranking[0].Name)
	assert.Equal(t, "Bob", won.Ranking[1].Name)

	require.IsType(t, GameOverMessage{}, nextMsg(t, bob))
	require.IsType(t, GameWonMessage{}, nextMsg(t, bob))

	// no further clicks are accepted
	rt.dispatch(alice, ClientMessage{Type: "squareClicked", SquareIndex: square(1)})
	require.IsType(t, ErrorMessage{}, nextMsg(t, alice))
	noMsg(t, bob)
}

func TestScenarioClassicFlow(t *testing.T) {
	rt := testRouter()

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice"})
	assert.Equal(t, "classic", created.Mode)

	joinTestRoom(t, rt, bob, created.RoomCode, "Bob")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))

	rt.dispatch(alice, ClientMessage{Type: "startGame"})
	started := nextMsg(t, bob).(GameStartedMessage)
	require.IsType(t, GameStartedMessage{}, nextMsg(t, alice))
	assert.Equal(t, "choosing", started.State)
	assert.Empty(t, started.CurrentTurn)

	rt.dispatch(alice, ClientMessage{Type: "selectDangerSquare", SquareIndex: square(4)})
	selected := nextMsg(t, bob).(DangerSquareSelectedMessage)
	require.IsType(t, DangerSquareSelectedMessage{}, nextMsg(t, alice))
	assert.Equal(t, 4, selected.DangerSquare)

	// free-for-all: either player clicks in any order
	rt.dispatch(bob, ClientMessage{Type: "squareClicked", SquareIndex: square(0)})
	require.IsType(t, SquareClickedMessage{}, nextMsg(t, alice))
	require.IsType(t, SquareClickedMessage{}, nextMsg(t, bob))

	rt.dispatch(bob, ClientMessage{Type: "squareClicked", SquareIndex: square(4)})
	over := nextMsg(t, alice).(GameOverMessage)
	require.IsType(t, GameOverMessage{}, nextMsg(t, bob))
	assert.Equal(t, "bob-conn", over.Loser)
	assert.Equal(t, []int{0}, over.ClickedSquares)
}

func TestJoinFullRoom(t *testing.T) {
	rt := testRouter()

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")
	carol := testClient(t, rt, "carol-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice", MaxPlayers: 2})

	joinTestRoom(t, rt, bob, created.RoomCode, "Bob")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))

	rt.dispatch(carol, ClientMessage{Type: "joinRoom", RoomCode: created.RoomCode, PlayerName: "Carol"})
	failed := nextMsg(t, carol).(ErrorMessage)
	assert.Equal(t, errRoomFull.Error(), failed.Message)

	room, ok := rt.rooms.get(created.RoomCode)
	require.True(t, ok)
	assert.Len(t, room.players, 2)

	// rejection is sent to the actor only
	noMsg(t, alice)
	noMsg(t, bob)
}

func TestJoinUnknownRoom(t *testing.T) {
	rt := testRouter()
	alice := testClient(t, rt, "alice-conn")

	rt.dispatch(alice, ClientMessage{Type: "joinRoom", RoomCode: "NOSUCH", PlayerName: "Alice"})

	failed := nextMsg(t, alice).(ErrorMessage)
	assert.Equal(t, errRoomNotFound.Error(), failed.Message)
}

func TestHostDisconnectReassignsHost(t *testing.T) {
	rt := testRouter()

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")
	carol := testClient(t, rt, "carol-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice"})
	joinTestRoom(t, rt, bob, created.RoomCode, "Bob")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))
	joinTestRoom(t, rt, carol, created.RoomCode, "Carol")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, bob))

	rt.disconnect(alice)

	// next player in join order becomes host, then the roster update
	newHost := nextMsg(t, bob).(NewHostMessage)
	assert.Equal(t, "bob-conn", newHost.HostID)
	require.IsType(t, NewHostMessage{}, nextMsg(t, carol))

	left := nextMsg(t, bob).(PlayerLeftMessage)
	assert.Equal(t, "alice-conn", left.PlayerID)
	require.Len(t, left.Players, 2)
	require.IsType(t, PlayerLeftMessage{}, nextMsg(t, carol))

	_, ok := rt.conns.lookup("alice-conn")
	assert.False(t, ok)
}

func TestLastPlayerLeavingDeletesRoom(t *testing.T) {
	rt := testRouter()
	alice := testClient(t, rt, "alice-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice"})

	rt.dispatch(alice, ClientMessage{Type: "leaveSession"})

	_, ok := rt.rooms.get(created.RoomCode)
	assert.False(t, ok, "empty rooms must not persist")
	noMsg(t, alice)

	// the connection itself stays usable
	createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice"})
}

func TestNotYourTurnErrorToActorOnly(t *testing.T) {
	rt := testRouter()
	rt.randInt = func(int) int { return 8 }

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice", Mode: "elimination"})
	joinTestRoom(t, rt, bob, created.RoomCode, "Bob")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))

	rt.dispatch(alice, ClientMessage{Type: "startGame"})
	require.IsType(t, GameStartedMessage{}, nextMsg(t, alice))
	require.IsType(t, GameStartedMessage{}, nextMsg(t, bob))

	rt.dispatch(bob, ClientMessage{Type: "squareClicked", SquareIndex: square(0)})

	failed := nextMsg(t, bob).(ErrorMessage)
	assert.Equal(t, errNotYourTurn.Error(), failed.Message)
	noMsg(t, alice)
}

func TestHostOnlyActionsStaySilent(t *testing.T) {
	rt := testRouter()

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice"})
	joinTestRoom(t, rt, bob, created.RoomCode, "Bob")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))

	rt.dispatch(bob, ClientMessage{Type: "startGame"})
	noMsg(t, bob)
	noMsg(t, alice)

	rt.dispatch(bob, ClientMessage{Type: "restartGame"})
	noMsg(t, bob)
	noMsg(t, alice)

	// actions from a connection outside any room are ignored too
	stranger := testClient(t, rt, "stranger-conn")
	rt.dispatch(stranger, ClientMessage{Type: "startGame"})
	rt.dispatch(stranger, ClientMessage{Type: "squareClicked", SquareIndex: square(0)})
	noMsg(t, stranger)
}

func TestRestartBroadcast(t *testing.T) {
	rt := testRouter()
	rt.randInt = func(int) int { return 7 }

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice", Mode: "elimination"})
	joinTestRoom(t, rt, bob, created.RoomCode, "Bob")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))

	rt.dispatch(alice, ClientMessage{Type: "startGame"})
	require.IsType(t, GameStartedMessage{}, nextMsg(t, alice))
	require.IsType(t, GameStartedMessage{}, nextMsg(t, bob))

	rt.dispatch(alice, ClientMessage{Type: "squareClicked", SquareIndex: square(7)})
	require.IsType(t, GameOverMessage{}, nextMsg(t, alice))
	require.IsType(t, GameWonMessage{}, nextMsg(t, alice))
	require.IsType(t, GameOverMessage{}, nextMsg(t, bob))
	require.IsType(t, GameWonMessage{}, nextMsg(t, bob))

	rt.dispatch(alice, ClientMessage{Type: "restartGame"})
	require.IsType(t, GameRestartedMessage{}, nextMsg(t, alice))
	require.IsType(t, GameRestartedMessage{}, nextMsg(t, bob))

	room, ok := rt.rooms.get(created.RoomCode)
	require.True(t, ok)
	assert.Equal(t, stateWaiting, room.state)
	assert.Equal(t, -1, room.danger)
}

func TestCheckSession(t *testing.T) {
	rt := testRouter()

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice"})

	rt.dispatch(bob, ClientMessage{Type: "checkSession", RoomCode: created.RoomCode})
	info := nextMsg(t, bob).(SessionInfoMessage)
	assert.True(t, info.Exists)
	assert.Equal(t, "waiting", info.State)
	assert.Equal(t, 1, info.PlayerCount)

	rt.dispatch(bob, ClientMessage{Type: "checkSession", RoomCode: "NOSUCH"})
	info = nextMsg(t, bob).(SessionInfoMessage)
	assert.False(t, info.Exists)

	// read-only: no broadcast to room members
	noMsg(t, alice)
}

func TestSwitchingRoomsLeavesTheOld(t *testing.T) {
	rt := testRouter()

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")

	first := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice"})
	joinTestRoom(t, rt, bob, first.RoomCode, "Bob")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))

	createTestRoom(t, rt, bob, ClientMessage{PlayerName: "Bob"})

	// Bob's departure reached Alice before his new room existed
	left := nextMsg(t, alice).(PlayerLeftMessage)
	assert.Equal(t, "bob-conn", left.PlayerID)

	room, ok := rt.rooms.get(first.RoomCode)
	require.True(t, ok)
	assert.Len(t, room.players, 1)
}

func TestRejoinOwnRoomIsNoop(t *testing.T) {
	rt := testRouter()

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice"})
	joinTestRoom(t, rt, bob, created.RoomCode, "Bob")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))

	// rejoining the same room must not touch the roster or the names
	rt.dispatch(bob, ClientMessage{Type: "joinRoom", RoomCode: created.RoomCode, PlayerName: "Bob"})
	noMsg(t, alice)
	noMsg(t, bob)

	room, ok := rt.rooms.get(created.RoomCode)
	require.True(t, ok)
	assert.Equal(t, []string{"alice-conn", "bob-conn"}, room.players)
	assert.Equal(t, "Bob", room.names["bob-conn"])

	// nor reassign the host when the host rejoins
	rt.dispatch(alice, ClientMessage{Type: "joinRoom", RoomCode: created.RoomCode, PlayerName: "Alice"})
	noMsg(t, alice)
	noMsg(t, bob)
	assert.Equal(t, "alice-conn", room.host)
	assert.Equal(t, "Alice", room.names["alice-conn"])
}

func TestTurnHolderLeavingBroadcastsNextTurn(t *testing.T) {
	rt := testRouter()
	rt.randInt = func(int) int { return 8 }

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")
	carol := testClient(t, rt, "carol-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice", Mode: "elimination"})
	joinTestRoom(t, rt, bob, created.RoomCode, "Bob")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))
	joinTestRoom(t, rt, carol, created.RoomCode, "Carol")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, bob))

	rt.dispatch(alice, ClientMessage{Type: "startGame"})
	started := nextMsg(t, alice).(GameStartedMessage)
	require.IsType(t, GameStartedMessage{}, nextMsg(t, bob))
	require.IsType(t, GameStartedMessage{}, nextMsg(t, carol))
	require.Equal(t, "alice-conn", started.CurrentTurn)

	// the turn holder (and host) disconnects mid-game
	rt.disconnect(alice)

	require.IsType(t, NewHostMessage{}, nextMsg(t, bob))
	require.IsType(t, NewHostMessage{}, nextMsg(t, carol))

	left := nextMsg(t, bob).(PlayerLeftMessage)
	assert.Equal(t, "alice-conn", left.PlayerID)
	assert.Equal(t, "bob-conn", left.CurrentTurn, "roster update names the new turn holder")
	require.IsType(t, PlayerLeftMessage{}, nextMsg(t, carol))

	// play continues with the announced player
	rt.dispatch(bob, ClientMessage{Type: "squareClicked", SquareIndex: square(0)})
	clicked := nextMsg(t, bob).(SquareClickedMessage)
	assert.Equal(t, "carol-conn", clicked.CurrentTurn)
	require.IsType(t, SquareClickedMessage{}, nextMsg(t, carol))
}

func TestRoomCodeCaseInsensitive(t *testing.T) {
	rt := testRouter()

	alice := testClient(t, rt, "alice-conn")
	bob := testClient(t, rt, "bob-conn")

	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice"})

	rt.dispatch(bob, ClientMessage{Type: "checkSession", RoomCode: strings.ToLower(created.RoomCode)})
	info := nextMsg(t, bob).(SessionInfoMessage)
	assert.True(t, info.Exists)
	assert.Equal(t, created.RoomCode, info.RoomCode)

	joinTestRoom(t, rt, bob, strings.ToLower(created.RoomCode), "Bob")
	require.IsType(t, PlayerJoinedMessage{}, nextMsg(t, alice))

	room, ok := rt.rooms.get(created.RoomCode)
	require.True(t, ok)
	assert.Len(t, room.players, 2)
}

func TestReapIdleRooms(t *testing.T) {
	rt := testRouter()
	rt.cfg.sessionTimeout = time.Minute

	alice := testClient(t, rt, "alice-conn")
	created := createTestRoom(t, rt, alice, ClientMessage{PlayerName: "Alice"})

	room, ok := rt.rooms.get(created.RoomCode)
	require.True(t, ok)
	room.lastActive = time.Now().Add(-2 * time.Minute)

	rt.reapIdle()

	_, ok = rt.rooms.get(created.RoomCode)
	assert.False(t, ok)
	_, ok = rt.conns.lookup("alice-conn")
	assert.False(t, ok)

	_, open := <-alice.send
	assert.False(t, open, "reaped members are disconnected")
}
