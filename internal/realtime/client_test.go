package realtime

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitrone/portal-cli/internal/api"
	"github.com/gravitrone/portal-cli/internal/testutil"
	"github.com/gravitrone/portal-cli/internal/testutil/fakeportal"
)

// fakeConn blocks reads until a frame is queued or the conn is closed.
type fakeConn struct {
	inbox  chan []byte
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbox:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// scriptedDialer hands out results in order and records every target URL.
type scriptedDialer struct {
	mu      sync.Mutex
	results []func() (Conn, error)
	urls    []string
}

func (d *scriptedDialer) Dial(_ context.Context, target string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, target)
	if len(d.results) == 0 {
		return nil, errors.New("connection refused")
	}
	next := d.results[0]
	d.results = d.results[1:]
	return next()
}

func (d *scriptedDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// recordedAfter fires immediately and remembers each requested delay.
type recordedAfter struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (a *recordedAfter) After(d time.Duration) <-chan time.Time {
	a.mu.Lock()
	a.delays = append(a.delays, d)
	a.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (a *recordedAfter) Delays() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Duration(nil), a.delays...)
}

func failDial() (Conn, error) { return nil, errors.New("connection refused") }

func TestRunBacksOffAndGivesUp(t *testing.T) {
	dialer := &scriptedDialer{}
	after := &recordedAfter{}
	c := New(Options{URL: "ws://portal.test/api/v1/ws", Token: "tok", Dial: dialer.Dial, After: after.After})

	err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrRetriesExhausted)

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second,
	}, after.Delays())
	assert.Len(t, dialer.URLs(), 6, "initial dial plus five reconnects")
	assert.Equal(t, Disconnected, c.State())
}

func TestRunResetsFailuresAfterConnect(t *testing.T) {
	dialer := &scriptedDialer{results: []func() (Conn, error){
		failDial,
		failDial,
		func() (Conn, error) {
			conn := newFakeConn()
			_ = conn.Close()
			return conn, nil
		},
	}}
	after := &recordedAfter{}
	c := New(Options{URL: "ws://portal.test/ws", MaxAttempts: 2, Dial: dialer.Dial, After: after.After})

	err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, time.Second, 2 * time.Second,
	}, after.Delays())
}

func TestBackoffCapsAtMax(t *testing.T) {
	c := New(Options{BackoffBase: 3 * time.Second, BackoffMax: 10 * time.Second, MaxAttempts: 4})
	schedule := c.newBackoff()

	var delays []time.Duration
	for {
		d, stop := schedule.Next()
		if stop {
			break
		}
		delays = append(delays, d)
	}
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second, 10 * time.Second, 10 * time.Second}, delays)
}

func TestCloseCancelsPendingBackoff(t *testing.T) {
	dialer := &scriptedDialer{}
	waiting := make(chan struct{}, 1)
	never := func(time.Duration) <-chan time.Time {
		select {
		case waiting <- struct{}{}:
		default:
		}
		return make(chan time.Time)
	}
	c := New(Options{URL: "ws://portal.test/ws", Dial: dialer.Dial, After: never})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case <-waiting:
	case <-time.After(2 * time.Second):
		t.Fatal("run never reached backoff")
	}
	require.NoError(t, c.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Len(t, dialer.URLs(), 1)
	assert.Equal(t, Disconnected, c.State())
}

func TestEndpointAndToken(t *testing.T) {
	ep, err := Endpoint("https://portal.example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, "wss://portal.example.com/api/v1/ws", ep)

	ep, err = Endpoint("http://localhost:8000/base", "/api/v1/ws")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/base/api/v1/ws", ep)

	_, err = Endpoint("ftp://x", "")
	assert.Error(t, err)

	withTok, err := WithToken(ep, "a b&c")
	require.NoError(t, err)
	u, err := url.Parse(withTok)
	require.NoError(t, err)
	assert.Equal(t, "a b&c", u.Query().Get("token"))
}

func TestDecodeMessage(t *testing.T) {
	msg, err := decodeMessage([]byte(`{"type":"updated","data":{"id":"a1","name":"Beam"}}`))
	require.NoError(t, err)
	a, err := msg.Analysis()
	require.NoError(t, err)
	assert.Equal(t, "Beam", a.Name)

	msg, err = decodeMessage([]byte(`{"type":"deleted","data":{"id":"a1"}}`))
	require.NoError(t, err)
	id, err := msg.DeletedID()
	require.NoError(t, err)
	assert.Equal(t, "a1", id)

	_, err = decodeMessage([]byte(`not json`))
	assert.Error(t, err)
	_, err = decodeMessage([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, errNoType)
	_, err = decodeMessage([]byte(`{"type":"exploded"}`))
	assert.Error(t, err)

	_, err = Message{Type: TypeUpdated}.Analysis()
	assert.Error(t, err)
	_, err = Message{Type: TypeDeleted, Data: []byte(`{}`)}.DeletedID()
	assert.Error(t, err)
}

func TestSetTokenRedials(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &scriptedDialer{results: []func() (Conn, error){
		func() (Conn, error) { return first, nil },
		func() (Conn, error) { return second, nil },
	}}
	c := New(Options{URL: "ws://portal.test/ws", Token: "old", Dial: dialer.Dial})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(context.Background()) }()

	require.Eventually(t, func() bool { return c.State() == Connected }, time.Second, 5*time.Millisecond)
	c.SetToken("new")

	require.Eventually(t, func() bool { return len(dialer.URLs()) == 2 }, time.Second, 5*time.Millisecond)
	urls := dialer.URLs()
	assert.Contains(t, urls[0], "token=old")
	assert.Contains(t, urls[1], "token=new")

	require.NoError(t, c.Close())
	require.NoError(t, <-errCh)
	assert.Equal(t, Disconnected, c.State())
}

func TestCloseBeforeRun(t *testing.T) {
	dialer := &scriptedDialer{}
	c := New(Options{URL: "ws://portal.test/ws", Dial: dialer.Dial})
	require.NoError(t, c.Close())
	require.NoError(t, c.Run(context.Background()))
	assert.Empty(t, dialer.URLs())
}

func TestClientAgainstFakePortal(t *testing.T) {
	srv := fakeportal.New(t)
	srv.Token = "secret"

	var mu sync.Mutex
	var got []Message
	c := New(Options{
		URL:       srv.WSURL(),
		Token:     "secret",
		Heartbeat: 20 * time.Millisecond,
		Logger:    testutil.NewTestLogger(t),
		Handler: func(m Message) {
			mu.Lock()
			got = append(got, m)
			mu.Unlock()
		},
	})
	received := func() []Message {
		mu.Lock()
		defer mu.Unlock()
		return append([]Message(nil), got...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, TypeConnected, received()[0].Type)

	srv.PushRaw("definitely not json")
	srv.Push(TypeUpdated, api.Analysis{ID: "a1", Name: "Beam"})

	require.Eventually(t, func() bool {
		for _, m := range received() {
			if m.Type == TypeUpdated {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "connection survives a malformed frame")
	require.Eventually(t, func() bool { return srv.Pings() > 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	assert.Equal(t, Disconnected, c.State())
}

func TestStateSubscription(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{results: []func() (Conn, error){
		func() (Conn, error) { return conn, nil },
	}}
	c := New(Options{URL: "ws://portal.test/ws", Dial: dialer.Dial})
	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.After(time.Second)
	for {
		select {
		case s := <-ch:
			if s == Connected {
				cancel()
				require.NoError(t, <-done)
				return
			}
		case <-deadline:
			t.Fatal("never connected")
		}
	}
}
