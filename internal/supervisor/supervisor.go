// Package supervisor owns the broker session: it connects, subscribes,
// feeds the snapshot store through a bounded update channel, and runs the
// reconnect/health-check loop.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"hb-market-api/internal/broker/homebroker"
	"hb-market-api/internal/interfaces"
	"hb-market-api/internal/logger"
	"hb-market-api/internal/store"
	"hb-market-api/internal/types"
)

const updateQueueSize = 256

// securityBoards are the feed channels subscribed after each connect,
// matching the upstream board/settlement matrix.
var securityBoards = [][2]string{
	{"bluechips", "24hs"},
	{"bluechips", "SPOT"},
	{"government_bonds", "24hs"},
	{"government_bonds", "SPOT"},
	{"cedears", "24hs"},
	{"general_board", "24hs"},
	{"short_term_government_bonds", "24hs"},
	{"corporate_bonds", "24hs"},
}

var settlementSuffixes = []string{" - 24hs", " - SPOT"}

type update struct {
	quotes []types.Quote
	repos  []types.RepoRate
}

type Params struct {
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	HealthCheckInterval  time.Duration
	StaleAfter           time.Duration
}

type Supervisor struct {
	p       Params
	feed    interfaces.FeedClient
	store   interfaces.SnapshotStore
	catalog *store.Catalog

	mu            sync.Mutex
	state         types.ConnState
	lastData      time.Time
	attempts      int
	everConnected bool

	updates    chan update
	reconnectC chan struct{}
	stop       chan struct{}
	wg         sync.WaitGroup
	started    bool
}

var _ interfaces.Supervisor = (*Supervisor)(nil)

func New(p Params, feed interfaces.FeedClient, snap interfaces.SnapshotStore, catalog *store.Catalog) *Supervisor {
	return &Supervisor{
		p:          p,
		feed:       feed,
		store:      snap,
		catalog:    catalog,
		state:      types.StateDisconnected,
		lastData:   time.Now(),
		updates:    make(chan update, updateQueueSize),
		reconnectC: make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}
}

// Start launches the connect loop, the health monitor and the single
// store-writer consumer. It returns immediately; connection progress is
// observable through State and Status.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already started")
	}
	s.started = true
	s.state = types.StateConnecting
	s.mu.Unlock()

	s.wg.Add(2)
	go s.consume()
	go s.run(ctx)

	return nil
}

// Stop disconnects the feed and stops all supervisor goroutines.
func (s *Supervisor) Stop(ctx context.Context) {
	select {
	case <-s.stop:
		return
	default:
	}
	close(s.stop)

	if err := s.feed.Disconnect(); err != nil {
		logger.Warn(ctx, "Feed disconnect failed", "error", err)
	}
	s.wg.Wait()

	s.mu.Lock()
	s.state = types.StateDisconnected
	s.mu.Unlock()
}

// ForceReconnect resets the attempt counter and re-arms the reconnect loop.
// It is the only way out of the failed state short of a process restart.
func (s *Supervisor) ForceReconnect() {
	s.mu.Lock()
	s.attempts = 0
	if s.state != types.StateConnected {
		s.state = types.StateReconnecting
	}
	s.mu.Unlock()

	select {
	case s.reconnectC <- struct{}{}:
	default:
	}
}

func (s *Supervisor) State() types.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Status() types.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	sinceData := time.Since(s.lastData)
	return types.ConnectionStatus{
		State:                s.state.String(),
		Connected:            s.state == types.StateConnected,
		ReceivingData:        s.state == types.StateConnected && sinceData < s.p.StaleAfter,
		LastDataReceived:     s.lastData,
		MinutesSinceLastData: int(sinceData.Minutes()),
		ConnectionAttempts:   s.attempts,
		MaxReconnectAttempts: s.p.MaxReconnectAttempts,
		ReconnectInterval:    int(s.p.ReconnectInterval.Seconds()),
		HealthCheckInterval:  int(s.p.HealthCheckInterval.Seconds()),
	}
}

// run performs the initial connect and then the periodic health check.
func (s *Supervisor) run(ctx context.Context) {
	defer s.wg.Done()

	s.reconnect(ctx)

	tick := time.NewTicker(s.p.HealthCheckInterval)
	defer tick.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-s.reconnectC:
			s.reconnect(ctx)
		case <-tick.C:
			s.healthCheck(ctx)
		}
	}
}

func (s *Supervisor) healthCheck(ctx context.Context) {
	s.mu.Lock()
	state := s.state
	stale := time.Since(s.lastData) > s.p.StaleAfter
	s.mu.Unlock()

	switch {
	case state == types.StateFailed:
		// Retries exhausted. Wait for ForceReconnect.
	case state != types.StateConnected:
		logger.Warn(ctx, "Connection lost, attempting reconnection")
		s.reconnect(ctx)
	case stale:
		logger.Warn(ctx, "No data received within staleness window, attempting reconnection",
			"stale_after", s.p.StaleAfter)
		s.reconnect(ctx)
	}
}

// reconnect attempts to (re)establish the session, sleeping a fixed interval
// between attempts, up to the configured cap. Authentication failures stop
// immediately: retrying bad credentials cannot succeed.
func (s *Supervisor) reconnect(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.attempts >= s.p.MaxReconnectAttempts {
			s.state = types.StateFailed
			s.mu.Unlock()
			logger.Error(ctx, "Maximum reconnect attempts reached, giving up",
				"max_attempts", s.p.MaxReconnectAttempts)
			return
		}
		s.attempts++
		attempt := s.attempts
		if s.everConnected {
			s.state = types.StateReconnecting
		} else {
			s.state = types.StateConnecting
		}
		s.mu.Unlock()

		logger.Info(ctx, "Connecting to broker feed",
			"attempt", attempt, "max_attempts", s.p.MaxReconnectAttempts)

		err := s.connectAndSubscribe(ctx)
		if err == nil {
			s.mu.Lock()
			s.state = types.StateConnected
			s.attempts = 0
			s.everConnected = true
			s.lastData = time.Now()
			s.mu.Unlock()
			logger.Info(ctx, "Broker feed connected")
			return
		}

		if errors.Is(err, homebroker.ErrAuthFailed) {
			s.mu.Lock()
			s.state = types.StateFailed
			s.mu.Unlock()
			logger.ErrorWithErr(ctx, "Authentication rejected, not retrying", err)
			return
		}

		logger.Warn(ctx, "Connect failed, will retry",
			"attempt", attempt, "retry_in", s.p.ReconnectInterval, "error", err)

		select {
		case <-s.stop:
			return
		case <-time.After(s.p.ReconnectInterval):
		}
	}
}

func (s *Supervisor) connectAndSubscribe(ctx context.Context) error {
	// Drop any previous session before dialing a new one.
	_ = s.feed.Disconnect()

	if err := s.feed.Login(ctx); err != nil {
		return err
	}

	handlers := interfaces.FeedHandlers{
		OnOptions:    func(quotes []types.Quote) { s.enqueue(update{quotes: quotes}) },
		OnSecurities: func(quotes []types.Quote) { s.enqueue(update{quotes: quotes}) },
		OnRepos:      func(rates []types.RepoRate) { s.enqueue(update{repos: rates}) },
		OnError:      s.onFeedError,
	}
	if err := s.feed.Connect(ctx, handlers); err != nil {
		return err
	}

	if err := s.feed.SubscribeOptions(); err != nil {
		return err
	}
	for _, b := range securityBoards {
		if err := s.feed.SubscribeSecurities(b[0], b[1]); err != nil {
			return err
		}
	}
	return s.feed.SubscribeRepos()
}

func (s *Supervisor) onFeedError(err error) {
	logger.ErrorWithErr(context.Background(), "Broker feed error", err)

	s.mu.Lock()
	if s.state == types.StateConnected {
		s.state = types.StateDisconnected
	}
	s.mu.Unlock()
	// The health monitor picks the drop up on its next tick.
}

// enqueue pushes an update batch without blocking the feed's read loop.
// A full queue drops the batch: every update is a full snapshot for its
// tickers, so the next batch supersedes it anyway.
func (s *Supervisor) enqueue(u update) {
	select {
	case s.updates <- u:
	default:
		logger.Warn(context.Background(), "Update queue full, dropping batch",
			"quotes", len(u.quotes), "repos", len(u.repos))
	}
}

// consume is the single writer into the snapshot store.
func (s *Supervisor) consume() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case u := <-s.updates:
			s.apply(u)
		}
	}
}

func (s *Supervisor) apply(u update) {
	for _, q := range u.quotes {
		switch q.Class {
		case types.ClassOption:
			if !matchesAnyPrefix(q.Ticker, s.catalog.OptionPrefixes) {
				continue
			}
			s.store.Upsert(types.ClassOption, q.Ticker, q)
		case types.ClassSecurity:
			s.store.Upsert(types.ClassSecurity, q.Ticker, q)
			if base, ok := stripSettlement(q.Ticker); ok {
				stock := q
				stock.Ticker = base
				stock.Class = types.ClassStock
				s.store.Upsert(types.ClassStock, base, stock)
			}
		}
	}
	for _, r := range u.repos {
		s.store.UpsertRepo(r)
	}

	if len(u.quotes) > 0 || len(u.repos) > 0 {
		s.mu.Lock()
		s.lastData = time.Now()
		s.mu.Unlock()
	}
}

// matchesAnyPrefix reports whether ticker starts with one of the configured
// prefixes. An empty prefix list admits everything.
func matchesAnyPrefix(ticker string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	upper := strings.ToUpper(ticker)
	for _, p := range prefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// stripSettlement removes the " - 24hs"/" - SPOT" suffix securities carry,
// yielding the bare symbol for the stocks view.
func stripSettlement(ticker string) (string, bool) {
	for _, suffix := range settlementSuffixes {
		if strings.HasSuffix(ticker, suffix) {
			return strings.TrimSuffix(ticker, suffix), true
		}
	}
	return ticker, false
}
