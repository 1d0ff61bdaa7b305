// Package realtime keeps a websocket open to the portal and hands every
// server push to a handler, reconnecting with capped exponential backoff.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/sethvargo/go-retry"

	"github.com/gravitrone/portal-cli/internal/observe"
)

// Defaults for Options.
const (
	DefaultPath        = "/api/v1/ws"
	DefaultHeartbeat   = 30 * time.Second
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 10 * time.Second
	DefaultMaxAttempts = 5
)

const heartbeatFrame = "ping"

// ErrRetriesExhausted is returned by Run after MaxAttempts consecutive
// failed reconnects.
var ErrRetriesExhausted = errors.New("realtime: reconnect attempts exhausted")

var errRedial = errors.New("realtime: redial requested")

// State of the connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Conn is the part of *websocket.Conn the client uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// DialFunc opens a connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// Handler receives decoded pushes. It runs on the read goroutine.
type Handler func(Message)

// Options configures a Client.
type Options struct {
	// URL is the websocket endpoint without the token parameter.
	URL   string
	Token string

	Heartbeat   time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxAttempts int

	Handler Handler
	Logger  *slog.Logger

	// Dial and After replace the network dialer and backoff timer in tests.
	Dial  DialFunc
	After func(time.Duration) <-chan time.Time
}

// Client is a reconnecting realtime connection. Run drives it; Close, SetToken
// and the accessors are safe to call from any goroutine.
type Client struct {
	opts   Options
	logger *slog.Logger
	state  *observe.Value[State]
	redial chan struct{}

	mu      sync.Mutex
	token   string
	conn    Conn
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	running bool
}

// New creates a client. Nothing is dialed until Run.
func New(opts Options) *Client {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = DefaultBackoffMax
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Dial == nil {
		opts.Dial = dialWebsocket
	}
	if opts.After == nil {
		opts.After = time.After
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:   opts,
		logger: logger,
		state:  observe.NewValue(Disconnected),
		redial: make(chan struct{}, 1),
		token:  opts.Token,
	}
}

func dialWebsocket(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Endpoint turns an http(s) base URL and a path into a ws(s) URL.
func Endpoint(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if path == "" {
		path = DefaultPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String(), nil
}

// WithToken adds the token query parameter to endpoint.
func WithToken(endpoint, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.state.Load()
}

// Subscribe returns a channel receiving state changes.
func (c *Client) Subscribe() chan State {
	return c.state.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (c *Client) Unsubscribe(ch chan State) {
	c.state.Unsubscribe(ch)
}

// SetToken replaces the access token and reconnects with it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	changed := c.token != token
	c.token = token
	c.mu.Unlock()
	if !changed {
		return
	}
	select {
	case c.redial <- struct{}{}:
	default:
	}
}

func (c *Client) setState(s State) {
	if c.state.Load() == s {
		return
	}
	c.state.Store(s)
	c.logger.Debug("realtime state", "state", s.String())
}

// newBackoff returns the reconnect schedule: doubling from BackoffBase,
// capped at BackoffMax, stopping after MaxAttempts delays. A fresh schedule
// starts after every successful connect.
func (c *Client) newBackoff() retry.Backoff {
	b := retry.NewExponential(c.opts.BackoffBase)
	b = retry.WithCappedDuration(c.opts.BackoffMax, b)
	return retry.WithMaxRetries(uint64(c.opts.MaxAttempts), b)
}

// Run connects and keeps the connection alive until ctx is cancelled, Close
// is called, or MaxAttempts consecutive reconnects fail. It returns nil on
// cancellation and ErrRetriesExhausted when it gives up.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("realtime: client already running")
	}
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	defer func() {
		c.setState(Disconnected)
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
		close(done)
	}()

	schedule := c.newBackoff()
	failures := 0
	for {
		if failures == 0 {
			c.setState(Connecting)
		} else {
			c.setState(Reconnecting)
		}

		err := c.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		switch {
		case errors.Is(err, errRedial):
			schedule = c.newBackoff()
			failures = 0
			continue
		case errors.Is(err, errConnectedOnce):
			schedule = c.newBackoff()
			failures = 1
		default:
			failures++
		}
		c.logger.Warn("realtime connection lost", "error", err, "attempt", failures)

		delay, stop := schedule.Next()
		if stop {
			c.logger.Error("realtime giving up", "attempts", c.opts.MaxAttempts)
			return ErrRetriesExhausted
		}

		c.setState(Reconnecting)
		select {
		case <-ctx.Done():
			return nil
		case <-c.redial:
			schedule = c.newBackoff()
			failures = 0
		case <-c.opts.After(delay):
		}
	}
}

// errConnectedOnce wraps the close of a connection that did come up, so the
// failure count restarts from one.
var errConnectedOnce = errors.New("realtime: connection closed")

func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	target, err := WithToken(c.opts.URL, token)
	if err != nil {
		return err
	}
	conn, err := c.opts.Dial(ctx, target)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.setState(Connected)
	err = c.serve(ctx, conn)
	if errors.Is(err, errRedial) || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %w", errConnectedOnce, err)
}

// serve pumps one connection: reads on a goroutine, heartbeats on the
// scheduler. It closes conn before returning.
func (c *Client) serve(ctx context.Context, conn Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			c.dispatch(data)
		}
	}()

	ticker := time.NewTicker(c.opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-c.redial:
			return errRedial
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(heartbeatFrame)); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
		}
	}
}

func (c *Client) dispatch(data []byte) {
	msg, err := decodeMessage(data)
	if err != nil {
		c.logger.Warn("dropping realtime message", "error", err, "bytes", len(data))
		return
	}
	c.logger.Debug("realtime message", "type", msg.Type)
	if c.opts.Handler != nil {
		c.opts.Handler(msg)
	}
}

// Close stops Run, cancelling any pending backoff and the heartbeat, and
// closes the socket. It waits for Run to return.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	cancel, conn, done := c.cancel, c.conn, c.done
	c.mu.Unlock()

	var result *multierror.Error
	if conn != nil {
		frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(time.Second)); err != nil {
			result = multierror.Append(result, fmt.Errorf("send close frame: %w", err))
		}
	}
	if cancel != nil {
		cancel()
		<-done
	}
	return result.ErrorOrNil()
}
