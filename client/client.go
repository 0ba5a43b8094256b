// Package client maintains one live connection to a relay node, reconnecting
// with a bounded number of attempts when the transport drops.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	}
	return "unknown"
}

var (
	// ErrNotConnected is returned by Send outside the Connected state.
	ErrNotConnected = errors.New("not connected")

	// ErrRetriesExhausted means every dial attempt of a connect cycle
	// failed. The caller may call Connect again.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Message is a message pushed by the node.
type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	Ts           int64  `json:"ts"`
	Data         string `json:"data"`
}

// Receipt answers a frame this client sent, matched by request id.
type Receipt struct {
	I    string
	Code string
	Msg  string
	ID   string
	Ts   int64
}

// Conn is the transport seen by the client. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer func(ctx context.Context, url string) (Conn, error)

type Options struct {
	URL   string // ws endpoint, e.g. ws://host/ws
	Token string

	MaxAttempts int           // dial attempts per connect cycle
	RetryDelay  time.Duration // fixed delay between attempts
	DialTimeout time.Duration

	Dialer Dialer

	OnMessage  func(Message)
	OnPresence func([]string)
	OnReceipt  func(Receipt)

	// OnDisconnect fires when a background reconnect cycle exhausts its
	// attempts. The error is retryable: Connect may be called again.
	OnDisconnect func(error)
}

func (o *Options) norm() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = defaultDialer
	}
}

func defaultDialer(ctx context.Context, rawURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type Client struct {
	opts Options
	log  *zap.SugaredLogger

	mu     sync.Mutex
	state  State
	conn   Conn
	epoch  uint64
	online []string
	stop   chan struct{}

	// wmu serializes writes: the transport allows one writer at a time,
	// while Send may be called from any number of goroutines.
	wmu sync.Mutex
}

func New(opts Options) *Client {
	opts.norm()
	return &Client{
		opts: opts,
		log:  zap.S().With("method", "client"),
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Online returns the last presence view received on the current session.
func (c *Client) Online() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.online...)
}

// Connect establishes the connection, dialing up to MaxAttempts times with
// a fixed delay in between. Calling Connect while a connection is live or
// being established is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	return c.establish(ctx, stop)
}

func (c *Client) establish(ctx context.Context, stop chan struct{}) error {
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-stop:
				return nil
			case <-ctx.Done():
				c.toDisconnected()
				return ctx.Err()
			case <-time.After(c.opts.RetryDelay):
			}
		}

		dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
		conn, err := c.opts.Dialer(dctx, c.endpoint())
		cancel()
		if err != nil {
			lastErr = err
			c.mu.Lock()
			if c.state == Disconnected {
				c.mu.Unlock()
				return nil
			}
			c.state = Reconnecting
			c.mu.Unlock()
			c.log.Info("dial failed:", err)
			continue
		}

		c.mu.Lock()
		select {
		case <-stop:
			// Disconnect raced the dial.
			c.mu.Unlock()
			conn.Close()
			return nil
		default:
		}
		c.conn = conn
		c.state = Connected
		c.epoch++
		epoch := c.epoch
		c.mu.Unlock()

		go c.readLoop(conn, epoch)
		return nil
	}

	c.toDisconnected()
	return fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

// Disconnect closes the transport and clears the presence cache. No
// reconnection is attempted; pushes still in flight from this session are
// dropped.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return
	}
	c.state = Disconnected
	c.epoch++
	conn := c.conn
	c.conn = nil
	c.online = nil
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Send asks the node to relay content to recipient and returns the request
// id the eventual receipt will carry.
func (c *Client) Send(recipient, content string) (string, error) {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return "", ErrNotConnected
	}

	id := uuid.NewString()
	data, err := json.Marshal(&struct {
		T  string `json:"t"`
		I  string `json:"i"`
		To string `json:"to"`
		D  string `json:"d"`
	}{T: "m", I: id, To: recipient, D: content})
	if err != nil {
		return "", err
	}
	c.wmu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.wmu.Unlock()
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) endpoint() string {
	return c.opts.URL + "?token=" + url.QueryEscape(c.opts.Token)
}

func (c *Client) toDisconnected() {
	c.mu.Lock()
	c.state = Disconnected
	c.online = nil
	c.mu.Unlock()
}

func (c *Client) readLoop(conn Conn, epoch uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			c.handleLoss(epoch, err)
			return
		}
		if !c.current(epoch) {
			// A newer session owns the handlers now.
			return
		}
		c.dispatch(data)
	}
}

// current reports whether pushes read under this epoch may still be
// dispatched. A reconnect or explicit disconnect bumps the epoch, so a
// reader left over from a prior session goes quiet instead of delivering
// stale events.
func (c *Client) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch && c.state == Connected
}

func (c *Client) handleLoss(epoch uint64, cause error) {
	c.mu.Lock()
	if c.epoch != epoch || c.state != Connected {
		c.mu.Unlock()
		return
	}
	c.state = Reconnecting
	c.conn = nil
	stop := c.stop
	c.mu.Unlock()
	c.log.Info("transport lost:", cause)

	if err := c.establish(context.Background(), stop); err != nil {
		if c.opts.OnDisconnect != nil {
			c.opts.OnDisconnect(err)
		}
	}
}

func (c *Client) dispatch(data []byte) {
	var f struct {
		T     string          `json:"t"`
		I     string          `json:"i"`
		Code  string          `json:"c"`
		M     json.RawMessage `json:"m"`
		Users []string        `json:"us"`
		ID    string          `json:"id"`
		Ts    int64           `json:"ts"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		c.log.Error("dispatch:json unmarshal:", err)
		return
	}

	switch f.T {
	case "m":
		m := Message{}
		if err := json.Unmarshal(f.M, &m); err != nil {
			c.log.Error("dispatch:json message:", err)
			return
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(m)
		}
	case "p":
		c.mu.Lock()
		c.online = append([]string(nil), f.Users...)
		c.mu.Unlock()
		if c.opts.OnPresence != nil {
			c.opts.OnPresence(append([]string(nil), f.Users...))
		}
	case "r":
		r := Receipt{I: f.I, Code: f.Code, ID: f.ID, Ts: f.Ts}
		if len(f.M) > 0 {
			_ = json.Unmarshal(f.M, &r.Msg)
		}
		if c.opts.OnReceipt != nil {
			c.opts.OnReceipt(r)
		}
	default:
		c.log.Error("dispatch: unknown type:", f.T)
	}
}
