package interfaces

import (
	"context"

	"hb-market-api/internal/types"
)

// Supervisor owns the broker session lifecycle: connect, subscribe, keep the
// snapshot store current, and recover from drops without operator action.
type Supervisor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	ForceReconnect()
	State() types.ConnState
	Status() types.ConnectionStatus
}
