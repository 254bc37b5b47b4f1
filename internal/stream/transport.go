// Package stream maintains the live feed connection: an explicit
// connection state machine with exponential-backoff reconnects, the
// subscribe handshake, and decoding of inbound frames into events.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"signalboard/internal/model"
)

// State of the transport connection.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// ErrRetriesExhausted is the terminal error after MaxRetries failed
// reconnect attempts. Callers branch on it with errors.Is.
var ErrRetriesExhausted = errors.New("stream: reconnect attempts exhausted")

// Conn is one established feed connection. Implementations must make
// Close unblock a concurrent ReadMessage.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens feed connections. Tests inject a fake; production uses
// the gorilla-backed WSDialer.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

const eventBuffer = 256

// Transport owns the feed connection lifecycle for one subscription.
// Decoded events are delivered on Events; the channel is closed when
// the run loop exits on cancellation. After the retry budget is
// exhausted the transport parks in StateFailed until a Switch revives
// it with a fresh budget.
type Transport struct {
	url    string
	dialer Dialer

	// Optional counters, wired to metrics by the caller.
	OnReconnect   func()
	OnDecodeError func()
	OnGiveUp      func()

	events chan model.Event

	mu        sync.Mutex
	state     State
	sub       model.SubscribeMsg
	conn      Conn
	switching bool
	termErr   error
	started   bool

	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}

	// sleep waits for the backoff delay; tests replace it. Returns
	// false when the context is cancelled mid-wait.
	sleep func(ctx context.Context, d time.Duration) bool
}

// New returns an idle transport for the given feed URL and initial
// (symbol, timeframe) subscription.
func New(url, symbol, timeframe string, d Dialer) *Transport {
	return &Transport{
		url:    url,
		dialer: d,
		events: make(chan model.Event, eventBuffer),
		state:  StateIdle,
		sub: model.SubscribeMsg{
			Type:      "subscribe",
			Symbol:    symbol,
			Timeframe: timeframe,
		},
		done:  make(chan struct{}),
		wake:  make(chan struct{}, 1),
		sleep: sleepCtx,
	}
}

// Events returns the decoded event stream. Closed on shutdown.
func (t *Transport) Events() <-chan model.Event { return t.events }

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the terminal error, non-nil only in StateFailed.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.termErr
}

// Start launches the connection loop. It returns immediately; progress
// is observable via State, Events, and Err.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("stream: transport already started")
	}
	t.started = true
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	go t.run(ctx)
	return nil
}

// Switch retargets the subscription. The current connection is torn
// down and the loop redials immediately with the new pair. A transport
// parked in StateFailed is revived with a fresh retry budget; if no
// connection is up otherwise, the new pair simply takes effect on the
// next successful connect.
func (t *Transport) Switch(symbol, timeframe string) {
	t.mu.Lock()
	t.sub.Symbol = symbol
	t.sub.Timeframe = timeframe
	conn := t.conn
	failed := t.state == StateFailed
	if conn != nil {
		t.switching = true
	}
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
		return
	}
	if failed {
		select {
		case t.wake <- struct{}{}:
		default:
		}
	}
}

// Close tears down the connection and stops the loop. Safe to call
// more than once; blocks until the loop has exited.
func (t *Transport) Close() {
	t.mu.Lock()
	started := t.started
	cancel := t.cancel
	conn := t.conn
	t.mu.Unlock()

	if !started {
		return
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	<-t.done
}

func (t *Transport) run(ctx context.Context) {
	defer close(t.done)
	defer close(t.events)

	bo := newBackoff()
	t.setState(StateConnecting)

	for {
		conn, err := t.dialer.Dial(ctx, t.url)
		if err != nil {
			if ctx.Err() != nil {
				t.finish(StateIdle, nil)
				return
			}
			if bo.Attempt() >= MaxRetries {
				slog.Error("stream: giving up", "attempts", MaxRetries, "err", err)
				if t.OnGiveUp != nil {
					t.OnGiveUp()
				}
				t.finish(StateFailed, fmt.Errorf("%w: last dial: %v", ErrRetriesExhausted, err))
				select {
				case <-t.wake:
				case <-ctx.Done():
					return
				}
				slog.Info("stream: revived by switch")
				bo.Reset()
				t.finish(StateConnecting, nil)
				continue
			}
			delay := bo.Next()
			slog.Warn("stream: dial failed",
				"attempt", bo.Attempt(), "retry_in", delay, "err", err)
			t.setState(StateReconnecting)
			if t.OnReconnect != nil {
				t.OnReconnect()
			}
			if !t.sleep(ctx, delay) {
				t.finish(StateIdle, nil)
				return
			}
			continue
		}

		if ctx.Err() != nil {
			conn.Close()
			t.finish(StateIdle, nil)
			return
		}

		bo.Reset()
		sub := t.attach(conn)
		slog.Info("stream: connected", "symbol", sub.Symbol, "timeframe", sub.Timeframe)

		if err := conn.WriteJSON(sub); err != nil {
			slog.Warn("stream: subscribe failed", "err", err)
			conn.Close()
		} else {
			t.setState(StateConnected)
			t.readLoop(ctx, conn)
		}

		switched := t.detach(conn)
		if ctx.Err() != nil {
			t.finish(StateIdle, nil)
			return
		}
		if switched {
			// Deliberate teardown, not a failure: redial at once.
			t.setState(StateConnecting)
			continue
		}

		delay := bo.Next()
		slog.Warn("stream: connection lost", "retry_in", delay)
		t.setState(StateReconnecting)
		if t.OnReconnect != nil {
			t.OnReconnect()
		}
		if !t.sleep(ctx, delay) {
			t.finish(StateIdle, nil)
			return
		}
	}
}

func (t *Transport) readLoop(ctx context.Context, conn Conn) {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := model.DecodeEvent(raw)
		if err != nil {
			// Malformed frames are dropped; the stream goes on.
			slog.Warn("stream: bad frame", "err", err)
			if t.OnDecodeError != nil {
				t.OnDecodeError()
			}
			continue
		}
		select {
		case t.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// attach records the live connection and returns the subscription to
// send, both under one lock so a concurrent Switch cannot slip between.
func (t *Transport) attach(conn Conn) model.SubscribeMsg {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = conn
	t.switching = false
	return t.sub
}

// detach clears the connection and reports whether it was closed by a
// Switch rather than a network failure.
func (t *Transport) detach(conn Conn) bool {
	conn.Close()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = nil
	switched := t.switching
	t.switching = false
	return switched
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *Transport) finish(s State, err error) {
	t.mu.Lock()
	t.state = s
	t.termErr = err
	t.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
