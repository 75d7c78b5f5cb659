// Package feed consumes decoded token transaction events from an upstream
// event-feed service over WebSocket. The feed delivers events already parsed
// out of transaction logs; this client only subscribes, decodes and forwards.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/observability"
)

// Config configures feed client behavior.
type Config struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// PingInterval is how often ping frames are sent to keep an idle
	// connection inside the read deadline. Must be below ReadTimeout.
	PingInterval time.Duration
	// Buffer is the event channel capacity absorbing bursts.
	Buffer int
}

// DefaultConfig returns default feed configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
		Buffer:            1024,
	}
}

// wireEvent is the feed's JSON event format.
type wireEvent struct {
	Type        string `json:"type"`
	Contract    string `json:"contract"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value,omitempty"`
	TokenID     string `json:"token_id,omitempty"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`
}

// subscribeRequest asks the feed to deliver events for the given contracts.
type subscribeRequest struct {
	Op        string   `json:"op"`
	Contracts []string `json:"contracts"`
}

// Client is a reconnecting feed consumer. Subscriptions survive reconnects:
// the watched contract set is replayed on every new connection.
type Client struct {
	endpoint string
	cfg      Config
	logger   *logrus.Entry

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup

	events chan domain.TxEvent

	watchedMu sync.Mutex
	watched   map[common.Address]struct{}
}

// Dial connects to the feed endpoint and starts the read loop.
func Dial(ctx context.Context, endpoint string, config *Config) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}

	c := &Client{
		endpoint: endpoint,
		cfg:      cfg,
		logger:   logrus.WithField("component", "feed"),
		done:     make(chan struct{}),
		events:   make(chan domain.TxEvent, cfg.Buffer),
		watched:  make(map[common.Address]struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Events returns the decoded event stream. The channel closes on Close.
func (c *Client) Events() <-chan domain.TxEvent {
	return c.events
}

// Subscribe adds contracts to the watched set and pushes the updated
// subscription upstream.
func (c *Client) Subscribe(addresses ...common.Address) error {
	if c.closed.Load() {
		return fmt.Errorf("feed: client closed")
	}

	c.watchedMu.Lock()
	for _, addr := range addresses {
		c.watched[addr] = struct{}{}
	}
	c.watchedMu.Unlock()

	return c.pushSubscription()
}

// Unsubscribe removes contracts from the watched set and pushes the updated
// subscription upstream.
func (c *Client) Unsubscribe(addresses ...common.Address) error {
	if c.closed.Load() {
		return fmt.Errorf("feed: client closed")
	}

	c.watchedMu.Lock()
	for _, addr := range addresses {
		delete(c.watched, addr)
	}
	c.watchedMu.Unlock()

	return c.pushSubscription()
}

// pushSubscription sends the full watched set as one subscribe message.
func (c *Client) pushSubscription() error {
	c.watchedMu.Lock()
	contracts := make([]string, 0, len(c.watched))
	for addr := range c.watched {
		contracts = append(contracts, addr.Hex())
	}
	c.watchedMu.Unlock()

	req := subscribeRequest{Op: "subscribe", Contracts: contracts}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("feed: not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("feed: write subscribe: %w", err)
	}
	return nil
}

// Close shuts the client down and closes the event channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", c.endpoint, err)
	}
	// Pongs extend the read deadline so a quiet but healthy connection is
	// never torn down by the read timeout.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// pingLoop keeps idle connections alive by pinging on a fixed interval.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.logger.WithError(err).Debug("feed ping failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}

// readLoop reads and dispatches messages, reconnecting with exponential
// backoff on connection errors.
func (c *Client) readLoop() {
	defer c.wg.Done()

	delay := c.cfg.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect(delay) {
				return
			}
			delay *= 2
			if delay > c.cfg.MaxReconnectDelay {
				delay = c.cfg.MaxReconnectDelay
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.WithError(err).Warn("feed read failed, reconnecting")
			c.connMu.Lock()
			conn.Close()
			c.conn = nil
			c.connMu.Unlock()
			continue
		}

		delay = c.cfg.ReconnectDelay
		c.handleMessage(message)
	}
}

// reconnect waits out the backoff delay and re-establishes the connection
// and subscription. Returns false when the client is closing.
func (c *Client) reconnect(delay time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
	}

	observability.RecordFeedReconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.WithError(err).Warn("feed reconnect failed")
		return true
	}

	if err := c.pushSubscription(); err != nil {
		c.logger.WithError(err).Warn("feed resubscribe failed")
	}
	return true
}

func (c *Client) handleMessage(message []byte) {
	var wire wireEvent
	if err := json.Unmarshal(message, &wire); err != nil {
		observability.RecordEventMalformed()
		c.logger.WithError(err).Debug("feed message not an event, skipped")
		return
	}

	ev, err := wire.decode()
	if err != nil {
		observability.RecordEventMalformed()
		c.logger.WithError(err).Debug("malformed feed event, skipped")
		return
	}

	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (w wireEvent) decode() (domain.TxEvent, error) {
	var evType domain.EventType
	switch w.Type {
	case "transfer":
		evType = domain.EventTransfer
	case "approval":
		evType = domain.EventApproval
	default:
		return domain.TxEvent{}, fmt.Errorf("unknown event type %q", w.Type)
	}

	ev := domain.TxEvent{
		Type:        evType,
		Contract:    common.HexToAddress(w.Contract),
		From:        common.HexToAddress(w.From),
		To:          common.HexToAddress(w.To),
		TxHash:      common.HexToHash(w.TxHash),
		BlockNumber: w.BlockNumber,
		Timestamp:   w.Timestamp,
	}

	if w.Value != "" {
		value, ok := new(big.Int).SetString(w.Value, 10)
		if !ok {
			return domain.TxEvent{}, fmt.Errorf("bad value %q", w.Value)
		}
		ev.Value = value
	}
	if w.TokenID != "" {
		tokenID, ok := new(big.Int).SetString(w.TokenID, 10)
		if !ok {
			return domain.TxEvent{}, fmt.Errorf("bad token id %q", w.TokenID)
		}
		ev.TokenID = tokenID
	}
	return ev, nil
}
