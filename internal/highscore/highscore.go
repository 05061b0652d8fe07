// Package highscore keeps the ranked local high-score table.
package highscore

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// MaxNameLength is the longest name kept, in runes.
	MaxNameLength = 12
	DefaultName   = "PLAYER"
)

// Entry is one row of the table.
type Entry struct {
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Backend persists a table keyed by game id. Entries are passed in rank order.
type Backend interface {
	Load(ctx context.Context, gameID string) ([]Entry, error)
	Save(ctx context.Context, gameID string, entries []Entry) error
}

// Store is a capacity-bounded table sorted by descending score. A new score
// ranks above existing entries with an equal score.
type Store struct {
	mu       sync.RWMutex
	gameID   string
	capacity int
	entries  []Entry
	backend  Backend
	logger   *slog.Logger
	now      func() time.Time
}

// Options configures a Store.
type Options struct {
	GameID   string
	Capacity int
	Backend  Backend
	Logger   *slog.Logger
	Now      func() time.Time
}

// Open loads the table from the backend. A failing backend is logged and the
// store continues with an empty in-memory table.
func Open(ctx context.Context, opts Options) *Store {
	if opts.Capacity < 1 {
		opts.Capacity = 8
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		gameID:   opts.GameID,
		capacity: opts.Capacity,
		backend:  opts.Backend,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if s.backend == nil {
		return s
	}
	entries, err := s.backend.Load(ctx, s.gameID)
	if err != nil {
		s.logger.Warn("high scores unavailable, using in-memory table", "game", s.gameID, "error", err)
		s.backend = nil
		return s
	}
	s.entries = sanitize(entries, s.capacity)
	return s
}

// sanitize keeps stored rows in rank order without reordering equal scores.
func sanitize(in []Entry, capacity int) []Entry {
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		e.Name = NormalizeName(e.Name)
		if e.Score < 0 {
			continue
		}
		pos := len(out)
		for pos > 0 && out[pos-1].Score < e.Score {
			pos--
		}
		out = append(out, Entry{})
		copy(out[pos+1:], out[pos:])
		out[pos] = e
	}
	if len(out) > capacity {
		out = out[:capacity]
	}
	return out
}

// IsHighScore reports whether score would enter the table.
func (s *Store) IsHighScore(score int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qualifies(score)
}

func (s *Store) qualifies(score int) bool {
	if len(s.entries) < s.capacity {
		return true
	}
	return score > s.entries[len(s.entries)-1].Score
}

// GetRank returns the 1-based rank score would take, or 0 if it does not qualify.
func (s *Store) GetRank(score int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.qualifies(score) {
		return 0
	}
	return s.rank(score)
}

func (s *Store) rank(score int) int {
	r := 1
	for _, e := range s.entries {
		if e.Score > score {
			r++
		}
	}
	return r
}

// AddScore inserts a score and returns its rank, or 0 if it did not qualify.
func (s *Store) AddScore(ctx context.Context, name string, score int) int {
	s.mu.Lock()
	if !s.qualifies(score) {
		s.mu.Unlock()
		return 0
	}
	r := s.rank(score)
	entry := Entry{Name: NormalizeName(name), Score: score, Timestamp: s.now().UTC()}
	s.entries = append(s.entries, Entry{})
	copy(s.entries[r:], s.entries[r-1:])
	s.entries[r-1] = entry
	if len(s.entries) > s.capacity {
		s.entries = s.entries[:s.capacity]
	}
	snapshot := append([]Entry(nil), s.entries...)
	backend := s.backend
	s.mu.Unlock()

	if backend != nil {
		if err := backend.Save(ctx, s.gameID, snapshot); err != nil {
			s.logger.Warn("high score not persisted, keeping in memory", "game", s.gameID, "error", err)
			s.mu.Lock()
			s.backend = nil
			s.mu.Unlock()
		}
	}
	return r
}

// Scores returns the table in rank order.
func (s *Store) Scores() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Reset clears the table, including the persisted copy.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.entries = nil
	backend := s.backend
	s.mu.Unlock()
	if backend == nil {
		return nil
	}
	return backend.Save(ctx, s.gameID, nil)
}

func (s *Store) Capacity() int { return s.capacity }

// Persistent reports whether writes still reach the backend.
func (s *Store) Persistent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend != nil
}

// NormalizeName trims, upper-cases and truncates a player name.
func NormalizeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	if name == "" {
		return DefaultName
	}
	return name
}

// MemoryBackend is a Backend held in process memory.
type MemoryBackend struct {
	mu    sync.Mutex
	lists map[string][]Entry
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{lists: make(map[string][]Entry)}
}

func (m *MemoryBackend) Load(_ context.Context, gameID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.lists[gameID]...), nil
}

func (m *MemoryBackend) Save(_ context.Context, gameID string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[gameID] = append([]Entry(nil), entries...)
	return nil
}
