// Package broker selects the feed client implementation for the configured
// mode: a live websocket session or the local simulator.
package broker

import (
	"hb-market-api/internal/broker/homebroker"
	"hb-market-api/internal/interfaces"
	"hb-market-api/internal/store"
)

func NewFeedClient(cfg *store.Config, catalog *store.Catalog) interfaces.FeedClient {
	if cfg.Mode == "LIVE" {
		return homebroker.New(homebroker.Params{
			BaseURL:  cfg.Broker.BaseURL,
			BrokerID: cfg.Broker.ID,
			DNI:      cfg.Broker.DNI,
			User:     cfg.Broker.User,
			Password: cfg.Broker.Password,
		})
	}
	return homebroker.NewSim(catalog.OptionPrefixes, catalog.StockPrefixes)
}
