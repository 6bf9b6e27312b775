package main

import (
	"crypto/rand"
)

// RoomStore maps live room codes to rooms. It only stores; game rules live
// in the Room state machine. Not safe for concurrent use: the router
// goroutine owns it exclusively.
type RoomStore struct {
	rooms map[string]*Room
}

func newRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*Room),
	}
}

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// newCode generates a crypto-random room code and ensures it doesn't
// collide with a live room.
func (s *RoomStore) newCode() string {
	for {
		buf := make([]byte, codeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, codeLength)
		for i := range out {
			out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(out)

		if _, exists := s.rooms[code]; !exists {
			return code
		}
	}
}

func (s *RoomStore) create(mode gameMode, boardSize, maxPlayers int) *Room {
	room := newRoom(s.newCode(), mode, boardSize, maxPlayers)
	s.rooms[room.code] = room
	return room
}

func (s *RoomStore) get(code string) (*Room, bool) {
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) delete(code string) {
	delete(s.rooms, code)
}

type registration struct {
	roomCode string
	name     string
}

// ConnectionRegistry tracks which room each live connection occupies and
// under what display name. Consulted before any room mutation; an action
// from an unregistered connection is a no-op.
type ConnectionRegistry struct {
	conns map[string]registration
}

func newConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]registration),
	}
}

func (cr *ConnectionRegistry) register(connID, roomCode, name string) {
	cr.conns[connID] = registration{roomCode: roomCode, name: name}
}

func (cr *ConnectionRegistry) lookup(connID string) (registration, bool) {
	reg, ok := cr.conns[connID]
	return reg, ok
}

func (cr *ConnectionRegistry) unregister(connID string) {
	delete(cr.conns, connID)
}
