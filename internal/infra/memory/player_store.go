package memory

import (
	"sync"

	"learnearn/internal/app"
)

// PlayerStore is an in-memory implementation of app.PlayerRepository.
type PlayerStore struct {
	mu      sync.RWMutex
	players map[string]*app.Player
}

func NewPlayerStore() *PlayerStore {
	return &PlayerStore{
		players: make(map[string]*app.Player),
	}
}

func (s *PlayerStore) GetOrCreate(address string, create func() *app.Player) *app.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player, ok := s.players[address]; ok {
		return player
	}
	player := create()
	s.players[address] = player
	return player
}

func (s *PlayerStore) Get(address string) (*app.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[address]
	return player, ok
}

func (s *PlayerStore) DeleteIfIdle(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[address]
	if !ok {
		return
	}
	if player.IsIdle() {
		delete(s.players, address)
	}
}

// Len returns the number of tracked players.
func (s *PlayerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}
