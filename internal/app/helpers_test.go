package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"learnearn/internal/clock"
	"learnearn/internal/domain"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newClock() *clock.Manual {
	return clock.NewManual(epoch)
}

// recorder collects session events.
type recorder struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (r *recorder) listen(ev domain.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []domain.SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SessionEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) last() domain.SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return domain.SessionEvent{}
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) ofType(t domain.EventType) []domain.SessionEvent {
	var out []domain.SessionEvent
	for _, ev := range r.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// scriptedSource replays floats and always answers Intn(n) with n-1, which
// keeps Fisher-Yates shuffles in their original order.
type scriptedSource struct {
	mu     sync.Mutex
	floats []float64
	pos    int
}

func newScripted(floats ...float64) *scriptedSource {
	return &scriptedSource{floats: floats}
}

func (s *scriptedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[s.pos%len(s.floats)]
	s.pos++
	return v
}

func (s *scriptedSource) Intn(n int) int {
	return n - 1
}

func makeQuestions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			Prompt:  fmt.Sprintf("q%d", i),
			Options: []string{"a", "b", "c", "d"},
			Correct: i % domain.OptionsPerQuestion,
		}
	}
	return qs
}

type failingStorage struct{}

func (failingStorage) GetItem(context.Context, string) (string, bool, error) {
	return "", false, errors.New("storage unavailable")
}

func (failingStorage) SetItem(context.Context, string, string) error {
	return errors.New("storage unavailable")
}
