package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"learnearn/internal/app"
)

// PlayerStore is a Redis-aware implementation of app.PlayerRepository.
// Players and their sessions live in process; Redis holds a liveness marker per
// connected address (value: avatar) so other tools can see who is online.
type PlayerStore struct {
	client  *redis.Client
	ttl     time.Duration
	mu      sync.RWMutex
	players map[string]*app.Player
}

func NewPlayerStore(client *redis.Client, ttl time.Duration) *PlayerStore {
	return &PlayerStore{
		client:  client,
		ttl:     ttl,
		players: make(map[string]*app.Player),
	}
}

func (s *PlayerStore) GetOrCreate(address string, create func() *app.Player) *app.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[address]
	if !ok {
		player = create()
		s.players[address] = player
	}
	s.touch(address, player)
	return player
}

// Get returns a connected player and refreshes its liveness marker, so a player
// stays online for as long as it keeps acting or polling the leaderboard.
func (s *PlayerStore) Get(address string) (*app.Player, bool) {
	s.mu.RLock()
	player, ok := s.players[address]
	s.mu.RUnlock()
	if ok {
		s.touch(address, player)
	}
	return player, ok
}

// touch rewrites the best-effort liveness marker with a fresh TTL.
func (s *PlayerStore) touch(address string, player *app.Player) {
	_ = s.client.Set(context.Background(), s.key(address), player.Account().Avatar(), s.ttl).Err()
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
		_ = s.client.Del(context.Background(), s.key(address)).Err()
	}
}

// Online returns the addresses with a live marker.
func (s *PlayerStore) Online(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.key("*"), 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			out = append(out, k[len(s.key("")):])
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

func (s *PlayerStore) key(address string) string {
	return "learnearn:player:" + address
}
