package historyobs

import (
	"context"

	"hb-market-api/internal/interfaces"
	"hb-market-api/internal/logger"
	"hb-market-api/internal/types"
)

// observableProvider wraps a HistoryProvider with logging and tracing.
type observableProvider struct {
	provider interfaces.HistoryProvider
}

// Compile-time interface check
var _ interfaces.HistoryProvider = (*observableProvider)(nil)

// Wrap wraps a history provider with observability middleware.
func Wrap(provider interfaces.HistoryProvider) interfaces.HistoryProvider {
	return &observableProvider{provider: provider}
}

func (op *observableProvider) Daily(ctx context.Context, symbol string, days int, settlement string) ([]types.Candle, error) {
	timer := logger.StartOperation(ctx, "history.Daily",
		"symbol", symbol, "days", days, "settlement", settlement)

	candles, err := op.provider.Daily(timer.GetContext(), symbol, days, settlement)
	if err != nil {
		timer.EndWithError(err)
		return nil, err
	}

	timer.End("candles", len(candles))
	return candles, nil
}

func (op *observableProvider) Intraday(ctx context.Context, symbol string) ([]types.Candle, error) {
	timer := logger.StartOperation(ctx, "history.Intraday", "symbol", symbol)

	candles, err := op.provider.Intraday(timer.GetContext(), symbol)
	if err != nil {
		timer.EndWithError(err)
		return nil, err
	}

	timer.End("candles", len(candles))
	return candles, nil
}
