package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodeFormat(t *testing.T) {
	s := newRoomStore()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := s.newCode()
		require.Len(t, code, codeLength)
		for _, c := range code {
			assert.Contains(t, codeAlphabet, string(c))
		}
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestRoomStoreLifecycle(t *testing.T) {
	s := newRoomStore()

	room := s.create(modeClassic, 9, 4)
	require.NotNil(t, room)
	assert.Equal(t, 9, room.boardSize)
	assert.Equal(t, 4, room.maxPlayers)
	assert.Equal(t, stateWaiting, room.state)

	got, ok := s.get(room.code)
	require.True(t, ok)
	assert.Same(t, room, got)

	_, ok = s.get("NOSUCH")
	assert.False(t, ok)

	s.delete(room.code)
	_, ok = s.get(room.code)
	assert.False(t, ok)
}

func TestCodesNeverReusedWhileLive(t *testing.T) {
	s := newRoomStore()

	codes := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room := s.create(modeClassic, 9, 0)
		assert.False(t, codes[room.code])
		codes[room.code] = true
	}
}

func TestConnectionRegistry(t *testing.T) {
	cr := newConnectionRegistry()

	_, ok := cr.lookup("conn-1")
	assert.False(t, ok)

	cr.register("conn-1", "ABC123", "Alice")

	reg, ok := cr.lookup("conn-1")
	require.True(t, ok)
	assert.Equal(t, "ABC123", reg.roomCode)
	assert.Equal(t, "Alice", reg.name)

	cr.unregister("conn-1")
	_, ok = cr.lookup("conn-1")
	assert.False(t, ok)

	// unregistering an unknown connection is a no-op
	cr.unregister("conn-2")
}
