package homebroker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hb-market-api/internal/types"
)

// ErrAuthFailed marks a rejected login. Authentication failures are fatal to
// the supervisor: retrying with the same credentials cannot succeed.
var ErrAuthFailed = errors.New("homebroker: authentication failed")

// Wire timestamps arrive as "2006-01-02 15:04:05" in exchange-local time.
const wireTimeLayout = "2006-01-02 15:04:05"

// envelope is the outer frame of every feed message.
type envelope struct {
	Channel string     `json:"channel"`
	Quotes  []rawQuote `json:"quotes"`
	Repos   []rawRepo  `json:"repos"`
}

// rawQuote is a single instrument quote as the feed ships it. The feed
// reports change as a percentage and sizes under snake_case names.
type rawQuote struct {
	Symbol     string  `json:"symbol"`
	Settlement string  `json:"settlement"`
	Last       float64 `json:"last"`
	Change     float64 `json:"change"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Bid        float64 `json:"bid"`
	BidSize    float64 `json:"bid_size"`
	Ask        float64 `json:"ask"`
	AskSize    float64 `json:"ask_size"`
	Volume     float64 `json:"volume"`
	Operations float64 `json:"operations"`
	Turnover   float64 `json:"turnover"`
	Datetime   string  `json:"datetime"`
}

type rawRepo struct {
	Symbol     string  `json:"symbol"`
	Settlement string  `json:"settlement"`
	Last       float64 `json:"last"`
	Turnover   float64 `json:"turnover"`
	BidAmount  float64 `json:"bid_amount"`
	BidRate    float64 `json:"bid_rate"`
	AskRate    float64 `json:"ask_rate"`
	AskAmount  float64 `json:"ask_amount"`
}

// normalizeQuote turns a wire quote into a Quote record: change becomes a
// fraction and the symbol is upper-cased. Securities keep their settlement in
// the ticker ("GGAL - 24hs"), matching the upstream convention.
func normalizeQuote(r rawQuote, class types.Class) (types.Quote, error) {
	if r.Symbol == "" {
		return types.Quote{}, errors.New("quote without symbol")
	}

	ticker := strings.ToUpper(r.Symbol)
	if class == types.ClassSecurity && r.Settlement != "" {
		ticker = ticker + " - " + r.Settlement
	}

	updatedAt := time.Now()
	if r.Datetime != "" {
		ts, err := time.ParseInLocation(wireTimeLayout, r.Datetime, time.Local)
		if err != nil {
			return types.Quote{}, fmt.Errorf("quote %s: bad datetime %q: %w", r.Symbol, r.Datetime, err)
		}
		updatedAt = ts
	}

	return types.Quote{
		Ticker:     ticker,
		Class:      class,
		Last:       r.Last,
		Change:     r.Change / 100,
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Bid:        r.Bid,
		BidSize:    r.BidSize,
		Ask:        r.Ask,
		AskSize:    r.AskSize,
		Volume:     r.Volume,
		Operations: r.Operations,
		Turnover:   r.Turnover,
		UpdatedAt:  updatedAt,
	}, nil
}

// normalizeRepo keeps peso-denominated rates only and converts the
// percentage rates to fractions, dropping everything else the feed sends.
func normalizeRepo(r rawRepo) (types.RepoRate, error) {
	if !strings.Contains(strings.ToUpper(r.Symbol), "PESOS") {
		return types.RepoRate{}, errSkipRepo
	}

	settlement, err := time.ParseInLocation("2006-01-02", r.Settlement, time.Local)
	if err != nil {
		return types.RepoRate{}, fmt.Errorf("repo %s: bad settlement %q: %w", r.Symbol, r.Settlement, err)
	}

	return types.RepoRate{
		Settlement: settlement,
		Last:       r.Last / 100,
		Turnover:   r.Turnover,
		BidAmount:  r.BidAmount,
		BidRate:    r.BidRate / 100,
		AskRate:    r.AskRate / 100,
		AskAmount:  r.AskAmount,
	}, nil
}

// errSkipRepo marks repo rows filtered out by currency, not malformed ones.
var errSkipRepo = errors.New("repo filtered")
