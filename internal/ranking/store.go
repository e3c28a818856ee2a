// Package ranking implements the leaderboard: a keyed set of per-account
// summaries stored as one record and always rewritten as a whole.
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"learnearn/internal/domain"
)

// DefaultRecordKey names the record holding the serialized entry set.
const DefaultRecordKey = "learnandearn_leaderboard"

// Store is the ranking contract shared by every screen that shows rankings.
type Store interface {
	Upsert(ctx context.Context, entry domain.RankingEntry) error
	ReadAll(ctx context.Context) []domain.RankingEntry
	ReadRanked(ctx context.Context) []domain.RankingEntry
}

// RecordStorage is a durable string record store, the shape of browser local storage.
type RecordStorage interface {
	// GetItem returns the record value and whether it exists.
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
}

// RecordStore keeps the ranking as a JSON array in insertion order under one record key.
type RecordStore struct {
	storage RecordStorage
	key     string
	logger  *slog.Logger

	// mu makes read-modify-write upserts atomic within this process.
	mu sync.Mutex
}

// NewRecordStore returns a Store backed by storage. An empty key selects DefaultRecordKey.
func NewRecordStore(storage RecordStorage, key string, logger *slog.Logger) *RecordStore {
	if key == "" {
		key = DefaultRecordKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore{storage: storage, key: key, logger: logger}
}

// Upsert replaces the entry for entry.AccountKey in place or appends it.
func (s *RecordStore) Upsert(ctx context.Context, entry domain.RankingEntry) error {
	if entry.AccountKey == "" || entry.ChallengesCompleted < 0 || entry.PointsEarned < 0 {
		return fmt.Errorf("%w: %+v", domain.ErrInvalidRankingEntry, entry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.readLocked(ctx)
	replaced := false
	for i := range entries {
		if entries[i].AccountKey == entry.AccountKey {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode ranking: %w", err)
	}
	if err := s.storage.SetItem(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("write ranking: %w", err)
	}
	return nil
}

// ReadAll returns every entry in insertion order. Missing or corrupt data reads as empty.
func (s *RecordStore) ReadAll(ctx context.Context) []domain.RankingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(ctx)
}

// ReadRanked returns entries by points descending; ties keep insertion order.
func (s *RecordStore) ReadRanked(ctx context.Context) []domain.RankingEntry {
	entries := s.ReadAll(ctx)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PointsEarned > entries[j].PointsEarned
	})
	return entries
}

func (s *RecordStore) readLocked(ctx context.Context) []domain.RankingEntry {
	raw, ok, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		s.logger.Warn("ranking read failed, using empty set", "key", s.key, "error", err)
		return []domain.RankingEntry{}
	}
	if !ok || raw == "" {
		return []domain.RankingEntry{}
	}
	var entries []domain.RankingEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn("ranking record unparseable, using empty set", "key", s.key, "error", err)
		return []domain.RankingEntry{}
	}
	if entries == nil {
		entries = []domain.RankingEntry{}
	}
	return entries
}

// Rank numbers ranked entries from 1 and flags the entry belonging to userKey.
func Rank(ranked []domain.RankingEntry, userKey string) []domain.RankedEntry {
	out := make([]domain.RankedEntry, len(ranked))
	for i, e := range ranked {
		out[i] = domain.RankedEntry{
			Rank:         i + 1,
			RankingEntry: e,
			IsUser:       userKey != "" && e.AccountKey == userKey,
		}
	}
	return out
}
