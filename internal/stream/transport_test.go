package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"signalboard/internal/model"
)

type fakeConn struct {
	frames chan []byte

	mu     sync.Mutex
	writes [][]byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.writes = append(c.writes, b)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// sentSubscribe waits for the first write on the connection and decodes
// it as a subscribe request.
func (c *fakeConn) sentSubscribe(t *testing.T) model.SubscribeMsg {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		if len(c.writes) > 0 {
			raw := c.writes[0]
			c.mu.Unlock()
			var msg model.SubscribeMsg
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("bad subscribe payload: %v", err)
			}
			return msg
		}
		c.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatal("no subscribe written")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	failAll bool

	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	fail := d.failAll
	d.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// recordSleep replaces the real backoff wait and logs each delay.
type recordSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordSleep) sleep(ctx context.Context, d time.Duration) bool {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err() == nil
}

func (r *recordSleep) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}

func waitConn(t *testing.T, d *fakeDialer) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func waitEvent(t *testing.T, tr *Transport) model.Event {
	t.Helper()
	select {
	case ev, ok := <-tr.Events():
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return model.Event{}
	}
}

func waitState(t *testing.T, tr *Transport, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for tr.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for state %s, still %s", want, tr.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitClosed(t *testing.T, tr *Transport) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-tr.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for shutdown")
		}
	}
}

func TestTransport_SubscribeOnConnect(t *testing.T) {
	d := newFakeDialer()
	tr := New("ws://feed", "BTCUSDT", "15m", d)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	conn := waitConn(t, d)
	sub := conn.sentSubscribe(t)
	if sub.Type != "subscribe" || sub.Symbol != "BTCUSDT" || sub.Timeframe != "15m" {
		t.Errorf("unexpected subscribe: %+v", sub)
	}

	conn.frames <- []byte(`{"type":"connected","message":"hello"}`)
	ev := waitEvent(t, tr)
	if ev.Kind != model.KindConnected {
		t.Errorf("expected connected event, got %s", ev.Kind)
	}
	if tr.State() != StateConnected {
		t.Errorf("expected connected state, got %s", tr.State())
	}
}

func TestTransport_BackoffScheduleThenGiveUp(t *testing.T) {
	d := newFakeDialer()
	d.failAll = true
	rec := &recordSleep{}

	var giveUps int
	tr := New("ws://feed", "BTCUSDT", "15m", d)
	tr.sleep = rec.sleep
	tr.OnGiveUp = func() { giveUps++ }
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	waitState(t, tr, StateFailed)

	if !errors.Is(tr.Err(), ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", tr.Err())
	}
	if giveUps != 1 {
		t.Errorf("give-up must be surfaced exactly once, got %d", giveUps)
	}

	// Initial dial plus exactly MaxRetries retries.
	if got := d.dialCount(); got != MaxRetries+1 {
		t.Errorf("expected %d dials, got %d", MaxRetries+1, got)
	}

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second,
		30 * time.Second, 30 * time.Second,
	}
	got := rec.all()
	if len(got) != len(want) {
		t.Fatalf("expected %d backoff waits, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("backoff[%d]: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestTransport_ReconnectResetsBackoff(t *testing.T) {
	d := newFakeDialer()
	rec := &recordSleep{}
	tr := New("ws://feed", "BTCUSDT", "15m", d)
	tr.sleep = rec.sleep
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	conn1 := waitConn(t, d)
	conn1.sentSubscribe(t)
	conn1.Close() // simulated remote drop

	conn2 := waitConn(t, d)
	sub := conn2.sentSubscribe(t)
	if sub.Symbol != "BTCUSDT" {
		t.Errorf("resubscribe lost the pair: %+v", sub)
	}

	delays := rec.all()
	if len(delays) != 1 || delays[0] != time.Second {
		t.Errorf("first retry after a healthy connection must wait the 1s floor: %v", delays)
	}
}

func TestTransport_SwitchRedialsImmediately(t *testing.T) {
	d := newFakeDialer()
	rec := &recordSleep{}
	tr := New("ws://feed", "BTCUSDT", "15m", d)
	tr.sleep = rec.sleep
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	conn1 := waitConn(t, d)
	conn1.sentSubscribe(t)

	tr.Switch("ETHUSDT", "1h")

	conn2 := waitConn(t, d)
	sub := conn2.sentSubscribe(t)
	if sub.Symbol != "ETHUSDT" || sub.Timeframe != "1h" {
		t.Errorf("expected fresh subscribe for new pair, got %+v", sub)
	}

	select {
	case <-conn1.closed:
	default:
		t.Error("old connection must be closed on switch")
	}
	if delays := rec.all(); len(delays) != 0 {
		t.Errorf("switch must not wait out a backoff: %v", delays)
	}
}

func TestTransport_SwitchRevivesFailedTransport(t *testing.T) {
	d := newFakeDialer()
	d.failAll = true
	rec := &recordSleep{}
	tr := New("ws://feed", "BTCUSDT", "15m", d)
	tr.sleep = rec.sleep
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	waitState(t, tr, StateFailed)
	dialsAtFailure := d.dialCount()

	d.mu.Lock()
	d.failAll = false
	d.mu.Unlock()

	tr.Switch("ETHUSDT", "1h")

	conn := waitConn(t, d)
	sub := conn.sentSubscribe(t)
	if sub.Symbol != "ETHUSDT" || sub.Timeframe != "1h" {
		t.Errorf("expected fresh subscribe for new pair, got %+v", sub)
	}
	waitState(t, tr, StateConnected)
	if tr.Err() != nil {
		t.Errorf("revived transport must clear the terminal error: %v", tr.Err())
	}
	if got := d.dialCount(); got != dialsAtFailure+1 {
		t.Errorf("expected one redial after revival, got %d (was %d)", got, dialsAtFailure)
	}

	// A later drop retries from the 1s floor again: the old exhausted
	// budget does not carry over.
	conn.Close()
	conn2 := waitConn(t, d)
	conn2.sentSubscribe(t)
	delays := rec.all()
	if len(delays) == 0 || delays[len(delays)-1] != time.Second {
		t.Errorf("retry budget must be fresh after revival: %v", delays)
	}
}

func TestTransport_MalformedFramesDropped(t *testing.T) {
	d := newFakeDialer()
	var decodeErrs int
	tr := New("ws://feed", "BTCUSDT", "15m", d)
	tr.OnDecodeError = func() { decodeErrs++ }
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	conn := waitConn(t, d)
	conn.frames <- []byte(`{not json`)
	conn.frames <- []byte(`{"type":"signal","data":{"bad":`)
	conn.frames <- []byte(`{"type":"subscribed","symbol":"BTCUSDT"}`)

	ev := waitEvent(t, tr)
	if ev.Kind != model.KindSubscribed {
		t.Fatalf("expected the valid frame to survive, got %s", ev.Kind)
	}
	if decodeErrs != 2 {
		t.Errorf("expected 2 decode errors, got %d", decodeErrs)
	}
}

func TestTransport_CloseStopsLoop(t *testing.T) {
	d := newFakeDialer()
	tr := New("ws://feed", "BTCUSDT", "15m", d)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	conn := waitConn(t, d)
	conn.sentSubscribe(t)

	tr.Close()
	waitClosed(t, tr)

	if tr.State() != StateIdle {
		t.Errorf("expected idle after close, got %s", tr.State())
	}
	if tr.Err() != nil {
		t.Errorf("clean shutdown must not set a terminal error: %v", tr.Err())
	}
}

func TestTransport_CloseImmediatelyAfterStart(t *testing.T) {
	d := newFakeDialer()
	tr := New("ws://feed", "BTCUSDT", "15m", d)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Must not deadlock even with no delay between start and close.
	tr.Close()
	waitClosed(t, tr)
}

func TestTransport_DoubleStartRejected(t *testing.T) {
	d := newFakeDialer()
	tr := New("ws://feed", "BTCUSDT", "15m", d)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if err := tr.Start(context.Background()); err == nil {
		t.Error("second Start must fail")
	}
}
