// Package history fetches OHLC history on demand from the broker's REST
// surface. History is request-scoped and never enters the snapshot store.
package history

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"hb-market-api/internal/api"
	"hb-market-api/internal/interfaces"
	"hb-market-api/internal/types"

	"golang.org/x/time/rate"
)

const (
	MaxDays = 365

	defaultSettlement = "24hs"
)

// Provider fetches candles from the broker REST API, rate limited so batch
// requests cannot hammer the upstream.
type Provider struct {
	client  *api.Client
	limiter *rate.Limiter
}

var _ interfaces.HistoryProvider = (*Provider)(nil)

func NewProvider(client *api.Client, requestsPerSecond float64, burst int) *Provider {
	return &Provider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

type rawCandle struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Daily returns up to days of daily bars for symbol.
func (p *Provider) Daily(ctx context.Context, symbol string, days int, settlement string) ([]types.Candle, error) {
	if days <= 0 || days > MaxDays {
		return nil, fmt.Errorf("days must be between 1 and %d, got %d", MaxDays, days)
	}
	if settlement == "" {
		settlement = defaultSettlement
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	to := time.Now()
	from := to.AddDate(0, 0, -days)
	path := fmt.Sprintf("/api/history/daily/%s?from=%s&to=%s&settlement=%s",
		url.PathEscape(symbol),
		from.Format("2006-01-02"), to.Format("2006-01-02"),
		url.QueryEscape(settlement))

	return p.fetch(ctx, symbol, path)
}

// Intraday returns the current session's bars for symbol.
func (p *Provider) Intraday(ctx context.Context, symbol string) ([]types.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/history/intraday/%s", url.PathEscape(symbol))
	return p.fetch(ctx, symbol, path)
}

func (p *Provider) fetch(ctx context.Context, symbol, path string) ([]types.Candle, error) {
	resp, err := p.client.GETWithRetry(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", symbol, err)
	}

	var raws []rawCandle
	if err := resp.ParseJSON(&raws); err != nil {
		return nil, fmt.Errorf("decoding history for %s: %w", symbol, err)
	}

	candles := make([]types.Candle, 0, len(raws))
	for _, r := range raws {
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", r.Date, time.Local)
		if err != nil {
			if ts, err = time.ParseInLocation("2006-01-02", r.Date, time.Local); err != nil {
				continue
			}
		}
		candles = append(candles, types.Candle{
			Ts:     ts.Unix(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return candles, nil
}

// SimProvider fabricates candles locally, mirroring the simulated feed.
type SimProvider struct{}

var _ interfaces.HistoryProvider = (*SimProvider)(nil)

func NewSimProvider() *SimProvider { return &SimProvider{} }

func (p *SimProvider) Daily(ctx context.Context, symbol string, days int, settlement string) ([]types.Candle, error) {
	if days <= 0 || days > MaxDays {
		return nil, fmt.Errorf("days must be between 1 and %d, got %d", MaxDays, days)
	}
	return simCandles(days, 24*time.Hour), nil
}

func (p *SimProvider) Intraday(ctx context.Context, symbol string) ([]types.Candle, error) {
	return simCandles(60, time.Minute), nil
}

func simCandles(n int, step time.Duration) []types.Candle {
	candles := make([]types.Candle, 0, n)
	base := 1000.0
	now := time.Now()

	for i := n; i > 0; i-- {
		c := base + float64(i) + (rand.Float64()-0.5)*5
		candles = append(candles, types.Candle{
			Ts:     now.Add(-time.Duration(i) * step).Unix(),
			Open:   c - 0.5,
			High:   c + rand.Float64()*3,
			Low:    c - rand.Float64()*3,
			Close:  c,
			Volume: rand.Float64() * 1000,
		})
	}
	return candles
}
