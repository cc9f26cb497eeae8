package snapshot

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"hb-market-api/internal/types"
)

func quote(ticker string, last float64) types.Quote {
	return types.Quote{
		Ticker:    ticker,
		Class:     types.ClassOption,
		Last:      last,
		Bid:       last - 1,
		Ask:       last + 1,
		UpdatedAt: time.Now(),
	}
}

func TestLastWriterWins(t *testing.T) {
	s := New()

	s.Upsert(types.ClassOption, "GFG26JUN1500C", quote("GFG26JUN1500C", 100))
	s.Upsert(types.ClassOption, "GFG26JUN1500C", quote("GFG26JUN1500C", 110))
	s.Upsert(types.ClassOption, "GFG26JUN1500C", quote("GFG26JUN1500C", 120))

	got, ok := s.ByTicker(types.ClassOption, "GFG26JUN1500C")
	if !ok {
		t.Fatal("expected record to exist")
	}
	if got.Last != 120 {
		t.Errorf("expected last write to win (120), got %v", got.Last)
	}
	if s.Count(types.ClassOption) != 1 {
		t.Errorf("expected 1 distinct ticker, got %d", s.Count(types.ClassOption))
	}
}

func TestByTickerCaseInsensitive(t *testing.T) {
	s := New()
	s.Upsert(types.ClassStock, "GGAL", quote("GGAL", 4500))

	if _, ok := s.ByTicker(types.ClassStock, "ggal"); !ok {
		t.Error("expected lowercase lookup to match")
	}
}

func TestByTickerNotFound(t *testing.T) {
	s := New()

	if _, ok := s.ByTicker(types.ClassStock, "GGAL"); ok {
		t.Error("expected not-found for empty store")
	}
}

func TestAllDistinct(t *testing.T) {
	s := New()

	for i := 0; i < 5; i++ {
		tick := fmt.Sprintf("SYM%d", i)
		// Upsert each ticker twice; only distinct tickers must remain.
		s.Upsert(types.ClassSecurity, tick, quote(tick, float64(i)))
		s.Upsert(types.ClassSecurity, tick, quote(tick, float64(i+100)))
	}

	all := s.All(types.ClassSecurity)
	if len(all) != 5 {
		t.Fatalf("expected 5 records, got %d", len(all))
	}

	seen := make(map[string]bool)
	for _, q := range all {
		if seen[q.Ticker] {
			t.Errorf("duplicate ticker %s in All()", q.Ticker)
		}
		seen[q.Ticker] = true
	}
}

func TestAllEmptyClass(t *testing.T) {
	s := New()

	all := s.All(types.ClassOption)
	if all == nil || len(all) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", all)
	}
}

func TestByPrefix(t *testing.T) {
	s := New()
	s.Upsert(types.ClassOption, "GFG26JUN1500C", quote("GFG26JUN1500C", 100))
	s.Upsert(types.ClassOption, "GFG26JUN1700C", quote("GFG26JUN1700C", 50))
	s.Upsert(types.ClassOption, "PAM26JUN900C", quote("PAM26JUN900C", 30))

	got := s.ByPrefix(types.ClassOption, "GFG")
	if len(got) != 2 {
		t.Fatalf("expected 2 GFG records, got %d", len(got))
	}
	for _, q := range got {
		if q.Ticker[:3] != "GFG" {
			t.Errorf("unexpected ticker %s in GFG prefix result", q.Ticker)
		}
	}

	if got := s.ByPrefix(types.ClassOption, "ZZZ"); len(got) != 0 {
		t.Errorf("expected empty result for unmatched prefix, got %d records", len(got))
	}
}

func TestRepos(t *testing.T) {
	s := New()
	day := func(n int) time.Time { return time.Date(2026, 8, n, 0, 0, 0, 0, time.UTC) }

	s.UpsertRepo(types.RepoRate{Settlement: day(27), Last: 0.35})
	s.UpsertRepo(types.RepoRate{Settlement: day(26), Last: 0.32})
	s.UpsertRepo(types.RepoRate{Settlement: day(26), Last: 0.33})

	repos := s.Repos()
	if len(repos) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(repos))
	}
	if !repos[0].Settlement.Before(repos[1].Settlement) {
		t.Error("expected repos sorted by settlement")
	}
	if repos[0].Last != 0.33 {
		t.Errorf("expected last write for settlement to win, got %v", repos[0].Last)
	}
}

// Concurrent writers and readers must never observe a record mixing fields
// from two different upserts.
func TestConcurrentReadersSeeWholeRecords(t *testing.T) {
	s := New()
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			v := float64(i)
			s.Upsert(types.ClassStock, "GGAL", types.Quote{
				Ticker: "GGAL",
				Class:  types.ClassStock,
				Last:   v,
				Bid:    v,
				Ask:    v,
			})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10000; i++ {
				q, ok := s.ByTicker(types.ClassStock, "GGAL")
				if !ok {
					continue
				}
				if q.Last != q.Bid || q.Last != q.Ask {
					t.Errorf("torn read: last=%v bid=%v ask=%v", q.Last, q.Bid, q.Ask)
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(done)
	wg.Wait()
}
