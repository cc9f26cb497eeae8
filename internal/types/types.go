package types

import "time"

// Class identifies the category of a traded instrument.
type Class string

const (
	ClassOption   Class = "option"
	ClassStock    Class = "stock"
	ClassSecurity Class = "security"
	ClassRepo     Class = "repo"
)

// Quote is the most recent snapshot of one instrument. A new update for the
// same ticker replaces the whole record; fields are never mutated in place.
type Quote struct {
	Ticker     string    `json:"symbol"`
	Class      Class     `json:"class"`
	Last       float64   `json:"last"`
	Change     float64   `json:"change"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Bid        float64   `json:"bid"`
	BidSize    float64   `json:"bidsize"`
	Ask        float64   `json:"ask"`
	AskSize    float64   `json:"asksize"`
	Volume     float64   `json:"volume"`
	Operations float64   `json:"operations"`
	Turnover   float64   `json:"turnover"`
	UpdatedAt  time.Time `json:"datetime"`
}

// RepoRate is a caución (repo) rate keyed by settlement date. Rates are
// fractions (0.35 == 35%), matching the upstream feed after normalization.
type RepoRate struct {
	Settlement time.Time `json:"settlement"`
	Last       float64   `json:"last"`
	Turnover   float64   `json:"turnover"`
	BidAmount  float64   `json:"bid_amount"`
	BidRate    float64   `json:"bid_rate"`
	AskRate    float64   `json:"ask_rate"`
	AskAmount  float64   `json:"ask_amount"`
}

// Candle is one OHLC bar returned by the history endpoints.
type Candle struct {
	Ts     int64   `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// ConnState is the supervisor-owned connection state machine.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConnectionStatus is the detailed snapshot served by /health and
// /status/connection.
type ConnectionStatus struct {
	State                string    `json:"state"`
	Connected            bool      `json:"connected"`
	ReceivingData        bool      `json:"receiving_data"`
	LastDataReceived     time.Time `json:"last_data_received"`
	MinutesSinceLastData int       `json:"minutes_since_last_data"`
	ConnectionAttempts   int       `json:"connection_attempts"`
	MaxReconnectAttempts int       `json:"max_reconnect_attempts"`
	ReconnectInterval    int       `json:"reconnect_interval"`
	HealthCheckInterval  int       `json:"health_check_interval"`
}
