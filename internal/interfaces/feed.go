package interfaces

import (
	"context"

	"hb-market-api/internal/types"
)

// FeedHandlers receives push updates from the broker feed. Implementations
// must not block: the feed's read loop calls them inline.
type FeedHandlers struct {
	OnOptions    func(quotes []types.Quote)
	OnSecurities func(quotes []types.Quote)
	OnRepos      func(rates []types.RepoRate)
	OnError      func(err error)
}

// FeedClient is the opaque boundary to the broker's streaming protocol.
// Login must be called before Connect; Subscribe* after Connect.
type FeedClient interface {
	Login(ctx context.Context) error
	Connect(ctx context.Context, h FeedHandlers) error
	SubscribeOptions() error
	SubscribeSecurities(board, settlement string) error
	SubscribeRepos() error
	Disconnect() error
}
