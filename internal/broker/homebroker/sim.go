package homebroker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"hb-market-api/internal/interfaces"
	"hb-market-api/internal/types"
)

const simPushInterval = 1 * time.Second

// SimClient is a feed client that fabricates quote batches locally. It keeps
// the rest of the system runnable without broker credentials and backs the
// supervisor tests.
type SimClient struct {
	optionPrefixes []string
	stockPrefixes  []string

	handlers interfaces.FeedHandlers

	mu      sync.Mutex
	started bool
	stop    chan struct{}
}

var _ interfaces.FeedClient = (*SimClient)(nil)

func NewSim(optionPrefixes, stockPrefixes []string) *SimClient {
	if len(optionPrefixes) == 0 {
		optionPrefixes = []string{"GFG"}
	}
	if len(stockPrefixes) == 0 {
		stockPrefixes = []string{"GGAL", "PAMP", "YPFD"}
	}
	return &SimClient{
		optionPrefixes: optionPrefixes,
		stockPrefixes:  stockPrefixes,
	}
}

func (s *SimClient) Login(ctx context.Context) error { return nil }

func (s *SimClient) Connect(ctx context.Context, h interfaces.FeedHandlers) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("sim feed already connected")
	}

	s.handlers = h
	s.stop = make(chan struct{})
	s.started = true

	go s.pushLoop(s.stop)
	return nil
}

func (s *SimClient) SubscribeOptions() error                          { return nil }
func (s *SimClient) SubscribeSecurities(board, settlement string) error { return nil }
func (s *SimClient) SubscribeRepos() error                            { return nil }

func (s *SimClient) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		close(s.stop)
		s.started = false
	}
	return nil
}

func (s *SimClient) pushLoop(stop chan struct{}) {
	tick := time.NewTicker(simPushInterval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			s.handlers.OnOptions(s.simOptions())
			s.handlers.OnSecurities(s.simSecurities())
			s.handlers.OnRepos(s.simRepos())
		case <-stop:
			return
		}
	}
}

func (s *SimClient) simOptions() []types.Quote {
	quotes := make([]types.Quote, 0, len(s.optionPrefixes)*2)
	for _, p := range s.optionPrefixes {
		for _, strike := range []string{"1500", "1700"} {
			quotes = append(quotes, simQuote(p+"26JUN"+strike+"C", types.ClassOption, 120))
		}
	}
	return quotes
}

func (s *SimClient) simSecurities() []types.Quote {
	quotes := make([]types.Quote, 0, len(s.stockPrefixes)*2)
	for _, sym := range s.stockPrefixes {
		for _, settlement := range []string{"24hs", "SPOT"} {
			quotes = append(quotes, simQuote(sym+" - "+settlement, types.ClassSecurity, 4500))
		}
	}
	return quotes
}

func (s *SimClient) simRepos() []types.RepoRate {
	rates := make([]types.RepoRate, 0, 2)
	for days := 1; days <= 2; days++ {
		rate := 0.30 + rand.Float64()*0.10
		rates = append(rates, types.RepoRate{
			Settlement: time.Now().AddDate(0, 0, days).Truncate(24 * time.Hour),
			Last:       rate,
			Turnover:   rand.Float64() * 1e9,
			BidAmount:  rand.Float64() * 1e8,
			BidRate:    rate - 0.01,
			AskRate:    rate + 0.01,
			AskAmount:  rand.Float64() * 1e8,
		})
	}
	return rates
}

func simQuote(ticker string, class types.Class, base float64) types.Quote {
	last := base + (rand.Float64()-0.5)*base*0.02
	return types.Quote{
		Ticker:     ticker,
		Class:      class,
		Last:       last,
		Change:     (rand.Float64() - 0.5) * 0.05,
		Open:       base,
		High:       last * 1.01,
		Low:        last * 0.99,
		Bid:        last * 0.999,
		BidSize:    float64(rand.Intn(5000)),
		Ask:        last * 1.001,
		AskSize:    float64(rand.Intn(5000)),
		Volume:     rand.Float64() * 1e6,
		Operations: float64(rand.Intn(2000)),
		Turnover:   rand.Float64() * 1e9,
		UpdatedAt:  time.Now(),
	}
}
