package interfaces

import (
	"context"

	"hb-market-api/internal/types"
)

// HistoryProvider fetches OHLC history on demand from the broker's REST
// surface. History is never cached in the snapshot store.
type HistoryProvider interface {
	Daily(ctx context.Context, symbol string, days int, settlement string) ([]types.Candle, error)
	Intraday(ctx context.Context, symbol string) ([]types.Candle, error)
}
