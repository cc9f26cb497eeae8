// Package snapshot holds the last-writer-wins cache of the most recent
// record per instrument. The supervisor's consumer goroutine is the sole
// writer; HTTP handlers read concurrently.
package snapshot

import (
	"sort"
	"strings"
	"sync"

	"hb-market-api/internal/interfaces"
	"hb-market-api/internal/types"
)

type Store struct {
	mu     sync.RWMutex
	quotes map[types.Class]map[string]types.Quote
	repos  map[string]types.RepoRate
}

var _ interfaces.SnapshotStore = (*Store)(nil)

func New() *Store {
	return &Store{
		quotes: make(map[types.Class]map[string]types.Quote),
		repos:  make(map[string]types.RepoRate),
	}
}

// Upsert replaces the record for (class, ticker) atomically. Tickers are
// upper-cased so lookups are case-insensitive.
func (s *Store) Upsert(class types.Class, ticker string, q types.Quote) {
	key := strings.ToUpper(ticker)

	s.mu.Lock()
	defer s.mu.Unlock()

	byTicker, ok := s.quotes[class]
	if !ok {
		byTicker = make(map[string]types.Quote)
		s.quotes[class] = byTicker
	}
	byTicker[key] = q
}

// UpsertRepo replaces the rate for its settlement date.
func (s *Store) UpsertRepo(r types.RepoRate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[r.Settlement.Format("2006-01-02")] = r
}

// All returns a point-in-time copy of every record for a class, sorted by
// ticker. Empty slice when nothing has arrived yet.
func (s *Store) All(class types.Class) []types.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(class, func(string) bool { return true })
}

// ByTicker returns the record for an exact ticker match.
func (s *Store) ByTicker(class types.Class, ticker string) (types.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[class][strings.ToUpper(ticker)]
	return q, ok
}

// ByPrefix returns every record whose ticker starts with prefix.
func (s *Store) ByPrefix(class types.Class, prefix string) []types.Quote {
	p := strings.ToUpper(prefix)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(class, func(ticker string) bool {
		return strings.HasPrefix(ticker, p)
	})
}

// Repos returns all repo rates sorted by settlement date.
func (s *Store) Repos() []types.RepoRate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.RepoRate, 0, len(s.repos))
	for _, r := range s.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Settlement.Before(out[j].Settlement)
	})
	return out
}

// Count returns the number of distinct tickers stored for a class.
func (s *Store) Count(class types.Class) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if class == types.ClassRepo {
		return len(s.repos)
	}
	return len(s.quotes[class])
}

// collect must be called with at least the read lock held.
func (s *Store) collect(class types.Class, match func(string) bool) []types.Quote {
	byTicker := s.quotes[class]
	out := make([]types.Quote, 0, len(byTicker))
	for ticker, q := range byTicker {
		if match(ticker) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
