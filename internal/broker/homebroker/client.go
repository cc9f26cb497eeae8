// Package homebroker implements the feed client boundary against the
// HomeBroker streaming service: an HTTP login followed by a websocket
// session that pushes quote batches for the subscribed channels.
package homebroker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"hb-market-api/internal/interfaces"
	"hb-market-api/internal/logger"
	"hb-market-api/internal/types"

	"github.com/gorilla/websocket"
)

const (
	loginTimeout     = 15 * time.Second
	handshakeTimeout = 10 * time.Second
)

type Params struct {
	BaseURL  string
	BrokerID int
	DNI      string
	User     string
	Password string
}

// Client is safe to reconnect: Disconnect tears the session down and a new
// Login/Connect cycle starts a fresh one.
type Client struct {
	p          Params
	httpClient *http.Client

	token string

	writeMu sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Conn
	stopped chan struct{}
}

var _ interfaces.FeedClient = (*Client)(nil)

func New(p Params) *Client {
	return &Client{
		p:          p,
		httpClient: &http.Client{Timeout: loginTimeout},
	}
}

// Login authenticates against the broker's REST endpoint and stores the
// session token. A rejected credential set returns ErrAuthFailed.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"broker_id": c.p.BrokerID,
		"dni":       c.p.DNI,
		"user":      c.p.User,
		"password":  c.p.Password,
	})
	if err != nil {
		return fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.p.BaseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding login response: %w", err)
	}
	if out.Token == "" {
		return fmt.Errorf("%w: empty session token", ErrAuthFailed)
	}

	c.token = out.Token
	return nil
}

// Connect dials the streaming endpoint and starts the read loop. Handlers
// are invoked from the read loop goroutine until Disconnect or a read error.
func (c *Client) Connect(ctx context.Context, h interfaces.FeedHandlers) error {
	if c.token == "" {
		return fmt.Errorf("connect before login")
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, _, err := dialer.DialContext(ctx, wsURL(c.p.BaseURL)+"/api/feed", header)
	if err != nil {
		return fmt.Errorf("dialing feed: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("feed already connected")
	}
	stopped := make(chan struct{})
	c.conn = conn
	c.stopped = stopped
	c.mu.Unlock()

	go c.readLoop(conn, stopped, h)
	return nil
}

func (c *Client) SubscribeOptions() error {
	return c.sendControl(map[string]string{"action": "subscribe", "channel": "options"})
}

func (c *Client) SubscribeSecurities(board, settlement string) error {
	return c.sendControl(map[string]string{
		"action":     "subscribe",
		"channel":    "securities",
		"board":      board,
		"settlement": settlement,
	})
}

func (c *Client) SubscribeRepos() error {
	return c.sendControl(map[string]string{"action": "subscribe", "channel": "repos"})
}

// Disconnect closes the current session's websocket; the read loop exits on
// the closed connection. Safe to call more than once or before Connect.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn, stopped := c.conn, c.stopped
	c.conn, c.stopped = nil, nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	close(stopped)
	return conn.Close()
}

func (c *Client) sendControl(msg map[string]string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("subscribe before connect")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("sending %s subscribe: %w", msg["channel"], err)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, stopped chan struct{}, h interfaces.FeedHandlers) {
	ctx := context.Background()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stopped:
				// Shutdown requested, not a feed failure.
			default:
				if h.OnError != nil {
					h.OnError(fmt.Errorf("feed read: %w", err))
				}
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn(ctx, "Dropping malformed feed frame", "error", err)
			continue
		}

		dispatch(ctx, env, h)
	}
}

func dispatch(ctx context.Context, env envelope, h interfaces.FeedHandlers) {
	switch env.Channel {
	case "options":
		if h.OnOptions != nil {
			h.OnOptions(normalizeBatch(ctx, env.Quotes, types.ClassOption))
		}
	case "securities":
		if h.OnSecurities != nil {
			h.OnSecurities(normalizeBatch(ctx, env.Quotes, types.ClassSecurity))
		}
	case "repos":
		if h.OnRepos != nil {
			rates := make([]types.RepoRate, 0, len(env.Repos))
			for _, raw := range env.Repos {
				r, err := normalizeRepo(raw)
				if err == errSkipRepo {
					continue
				}
				if err != nil {
					logger.Warn(ctx, "Dropping malformed repo record", "error", err)
					continue
				}
				rates = append(rates, r)
			}
			h.OnRepos(rates)
		}
	default:
		logger.Debug(ctx, "Ignoring frame for unknown channel", "channel", env.Channel)
	}
}

func normalizeBatch(ctx context.Context, raws []rawQuote, class types.Class) []types.Quote {
	quotes := make([]types.Quote, 0, len(raws))
	for _, raw := range raws {
		q, err := normalizeQuote(raw, class)
		if err != nil {
			logger.Warn(ctx, "Dropping malformed quote", "class", string(class), "error", err)
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes
}

func wsURL(base string) string {
	switch {
	case len(base) > 8 && base[:8] == "https://":
		return "wss://" + base[8:]
	case len(base) > 7 && base[:7] == "http://":
		return "ws://" + base[7:]
	default:
		return base
	}
}
