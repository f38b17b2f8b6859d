package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entrhq/htmlshot/pkg/logging"
	"github.com/gorilla/websocket"
)

// DefaultTimeout is the caller-side budget for one round trip.
const DefaultTimeout = 5 * time.Second

// State is the lifecycle stage of a Multiplexer. Transitions are linear.
type State int32

const (
	StateOpen State = iota
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateShuttingDown:
		return "shutting-down"
	default:
		return "closed"
	}
}

// Direction tells an Observer which way a frame travelled.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// Observer sees every text frame written to or read from the socket. It runs
// on the dispatch goroutine and must not block.
type Observer func(dir Direction, frame []byte)

// Options configures a Multiplexer.
type Options struct {
	// Timeout bounds each round trip (default 5s)
	Timeout time.Duration

	// Logger receives connection diagnostics (nil discards)
	Logger *logging.Logger

	// Observer optionally traces raw frames
	Observer Observer
}

type requestKind int

const (
	reqSend requestKind = iota
	reqExpect
	reqForget
	reqPending
)

// request is the only way callers reach the dispatch loop.
type request struct {
	kind    requestKind
	payload []byte
	waiter  *Waiter
	count   chan int
}

// outcome resolves a Waiter. Exactly one field is meaningful.
type outcome struct {
	reply  *Reply
	nested *NestedReply
	err    error
}

// Waiter is a one-shot slot registered under an id in the pending table.
// Waiters created by Expect are resolved only by nested replies; those created
// by Send only by outer replies.
type Waiter struct {
	id     uint64
	nested bool
	ch     chan outcome
	mux    *Multiplexer
}

func newWaiter(m *Multiplexer, id uint64, nested bool) *Waiter {
	return &Waiter{id: id, nested: nested, ch: make(chan outcome, 1), mux: m}
}

// resolve delivers the outcome. The pending table guarantees it is called at
// most once per Waiter.
func (w *Waiter) resolve(out outcome) {
	w.ch <- out
}

// ID returns the id the Waiter is registered under.
func (w *Waiter) ID() uint64 {
	return w.id
}

// Wait blocks until the nested reply arrives, the connection fails, ctx is
// done, or budget elapses (budget <= 0 uses the multiplexer's timeout). A reply
// carrying an error object is returned as is; mapping it is up to the caller.
func (w *Waiter) Wait(ctx context.Context, budget time.Duration) (*NestedReply, error) {
	out, err := w.await(ctx, "", budget)
	if err != nil {
		return nil, err
	}
	return out.nested, nil
}

// Cancel removes the registration if it is still pending.
func (w *Waiter) Cancel() {
	w.mux.forget(w)
}

func (w *Waiter) await(ctx context.Context, method string, budget time.Duration) (outcome, error) {
	if budget <= 0 {
		budget = w.mux.timeout
	}
	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case out := <-w.ch:
		return out, out.err
	case <-timer.C:
		go w.mux.forget(w)
		return outcome{}, &TimeoutError{ID: w.id, Method: method, After: budget}
	case <-ctx.Done():
		go w.mux.forget(w)
		return outcome{}, ctx.Err()
	}
}

// Multiplexer carries any number of concurrent command streams over one
// browser connection.
type Multiplexer struct {
	conn    Conn
	timeout time.Duration
	log     *logging.Logger
	observe Observer

	requests chan request
	frames   chan []byte
	readErr  chan error

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	state        atomic.Int32

	// pending is owned by run; no other goroutine touches it
	pending map[uint64]*Waiter
}

// New starts the dispatch loop over an established connection.
func New(conn Conn, opts Options) *Multiplexer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	m := &Multiplexer{
		conn:     conn,
		timeout:  opts.Timeout,
		log:      logging.OrDiscard(opts.Logger),
		observe:  opts.Observer,
		requests: make(chan request),
		frames:   make(chan []byte),
		readErr:  make(chan error, 1),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		pending:  make(map[uint64]*Waiter),
	}

	go m.readLoop()
	go m.run()
	return m
}

// Send writes cmd and waits for the outer reply with the same id. A reply
// carrying an error object is returned together with a *ProtocolError.
func (m *Multiplexer) Send(ctx context.Context, cmd Command) (*Reply, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("cdp: encode %s: %w", cmd.Method, err)
	}

	w := newWaiter(m, cmd.ID, false)
	if err := m.submit(ctx, request{kind: reqSend, payload: payload, waiter: w}); err != nil {
		return nil, err
	}

	out, err := w.await(ctx, cmd.Method, m.timeout)
	if err != nil {
		return nil, err
	}
	if out.reply.Error != nil {
		return out.reply, &ProtocolError{
			Method:  cmd.Method,
			Code:    out.reply.Error.Code,
			Message: out.reply.Error.Message,
		}
	}
	return out.reply, nil
}

// Expect registers a waiter for the nested reply with the given id. The
// registration is in place when Expect returns, so a command sent afterwards
// from the same goroutine cannot be answered before it.
func (m *Multiplexer) Expect(ctx context.Context, id uint64) (*Waiter, error) {
	w := newWaiter(m, id, true)
	if err := m.submit(ctx, request{kind: reqExpect, waiter: w}); err != nil {
		return nil, err
	}
	return w, nil
}

// AwaitNested registers for the nested reply with the given id and waits for
// it with the default budget.
func (m *Multiplexer) AwaitNested(ctx context.Context, id uint64) (*NestedReply, error) {
	w, err := m.Expect(ctx, id)
	if err != nil {
		return nil, err
	}
	return w.Wait(ctx, 0)
}

// Pending reports how many waiters are registered. Meant for diagnostics.
func (m *Multiplexer) Pending(ctx context.Context) (int, error) {
	count := make(chan int, 1)
	if err := m.submit(ctx, request{kind: reqPending, count: count}); err != nil {
		return 0, err
	}
	select {
	case n := <-count:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Shutdown asks the browser to close, closes the socket and blocks until the
// dispatch loop has exited and failed every remaining waiter with ErrClosed.
// Calling it again, or concurrently, only waits for the same exit.
func (m *Multiplexer) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.shutdown)
	})
	<-m.done
}

// Done is closed once the dispatch loop has exited.
func (m *Multiplexer) Done() <-chan struct{} {
	return m.done
}

// State returns the current lifecycle stage.
func (m *Multiplexer) State() State {
	return State(m.state.Load())
}

func (m *Multiplexer) submit(ctx context.Context, req request) error {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case m.requests <- req:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		var id uint64
		if req.waiter != nil {
			id = req.waiter.id
		}
		return &TimeoutError{ID: id, After: m.timeout}
	}
}

func (m *Multiplexer) forget(w *Waiter) {
	select {
	case m.requests <- request{kind: reqForget, waiter: w}:
	case <-m.done:
	}
}

func (m *Multiplexer) readLoop() {
	for {
		typ, data, err := m.conn.ReadMessage()
		if err != nil {
			m.readErr <- err
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		select {
		case m.frames <- data:
		case <-m.done:
			return
		}
	}
}

func (m *Multiplexer) run() {
	defer m.finish()

	for {
		select {
		case data := <-m.frames:
			m.dispatch(data)

		case err := <-m.readErr:
			m.log.Warnf("read failed, closing connection: %v", err)
			m.fail(&ConnectionError{Op: "read", Err: err})
			_ = m.conn.Close()
			return

		case req := <-m.requests:
			if err := m.handle(req); err != nil {
				m.log.Warnf("write failed, closing connection: %v", err)
				m.fail(err)
				_ = m.conn.Close()
				return
			}

		case <-m.shutdown:
			m.state.Store(int32(StateShuttingDown))
			m.closeGracefully()
			return
		}
	}
}

// finish fails whatever is still pending and releases Shutdown.
func (m *Multiplexer) finish() {
	m.fail(ErrClosed)
	m.state.Store(int32(StateClosed))
	close(m.done)
	m.log.Debugf("dispatch loop exited")
}

func (m *Multiplexer) fail(err error) {
	for id, w := range m.pending {
		delete(m.pending, id)
		w.resolve(outcome{err: err})
	}
}

// handle applies one caller request. A non-nil return is a connection error
// that must terminate the loop.
func (m *Multiplexer) handle(req request) error {
	switch req.kind {
	case reqSend:
		w := req.waiter
		if _, taken := m.pending[w.id]; taken {
			w.resolve(outcome{err: fmt.Errorf("cdp: id %d already has a waiter", w.id)})
			return nil
		}
		if err := m.write(req.payload); err != nil {
			cerr := &ConnectionError{Op: "write", Err: err}
			w.resolve(outcome{err: cerr})
			return cerr
		}
		m.pending[w.id] = w

	case reqExpect:
		w := req.waiter
		if _, taken := m.pending[w.id]; taken {
			w.resolve(outcome{err: fmt.Errorf("cdp: id %d already has a waiter", w.id)})
			return nil
		}
		m.pending[w.id] = w

	case reqForget:
		if w, ok := m.pending[req.waiter.id]; ok && w == req.waiter {
			delete(m.pending, w.id)
		}

	case reqPending:
		req.count <- len(m.pending)
	}
	return nil
}

func (m *Multiplexer) write(payload []byte) error {
	if m.observe != nil {
		m.observe(Outbound, payload)
	}
	return m.conn.WriteMessage(websocket.TextMessage, payload)
}

func (m *Multiplexer) dispatch(data []byte) {
	if m.observe != nil {
		m.observe(Inbound, data)
	}

	f, err := classify(data)
	if err != nil {
		m.log.Debugf("dropping undecodable frame: %v", err)
		return
	}

	switch f.kind {
	case frameReply:
		w, ok := m.pending[f.reply.ID]
		if !ok || w.nested {
			// acknowledgements of sendMessageToTarget whose caller already
			// timed out land here too
			return
		}
		delete(m.pending, f.reply.ID)
		w.resolve(outcome{reply: f.reply})

	case frameNested:
		w, ok := m.pending[f.nested.ID]
		if !ok || !w.nested {
			m.log.Debugf("dropping nested reply %d from session %s: no waiter", f.nested.ID, f.nested.SessionID)
			return
		}
		delete(m.pending, f.nested.ID)
		w.resolve(outcome{nested: f.nested})
	}
}

func (m *Multiplexer) closeGracefully() {
	payload, err := json.Marshal(NewCommand(MethodBrowserClose, nil))
	if err == nil {
		if err := m.write(payload); err != nil {
			m.log.Debugf("browser close command not delivered: %v", err)
		}
	}
	closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := m.conn.WriteMessage(websocket.CloseMessage, closeFrame); err != nil {
		m.log.Debugf("close frame not delivered: %v", err)
	}
	if err := m.conn.Close(); err != nil {
		m.log.Debugf("socket close: %v", err)
	}
}
