// Package reactor implements the single-threaded event-demultiplexing loop
// the rest of the core runs on: one dispatcher goroutine owns every piece
// of mutable state, and every other goroutine — the accept loop, the
// per-connection readers, async-client/db completions, timers — only ever
// sends values onto its event channel. This is the Go-idiomatic reading of
// "single-threaded reactor with socket/timer callbacks": one goroutine is
// the thread, channels are the event queue. It follows the
// background-goroutine-plus-ticker idiom, generalized from "one cleanup
// ticker" to "the full event loop."
package reactor

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// WatchdogInterval is the pending-response sweep period.
const WatchdogInterval = 100 * time.Millisecond

// readBufferSize is the chunk size used by per-connection reader
// goroutines.
const readBufferSize = 64 * 1024

// eventKind tags the union carried on the fan-in channel.
type eventKind int

const (
	eventAccept eventKind = iota
	eventData
	eventConnError
	eventTick
	eventTimer
	eventFunc
)

type event struct {
	kind eventKind
	conn *Conn
	data []byte
	err  error
	fn   func()
}

// Conn wraps an accepted connection with the bookkeeping the dispatcher
// needs: a stable identity for matching events to connections, and a
// closed flag so late events from a dying read goroutine are ignored.
type Conn struct {
	ID     uint64
	Raw    net.Conn
	closed atomic.Bool
}

// Write writes directly to the underlying socket. Only ever called from
// the dispatcher goroutine.
func (c *Conn) Write(b []byte) (int, error) {
	return c.Raw.Write(b)
}

// Close closes the underlying socket exactly once.
func (c *Conn) Close() {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.Raw.Close()
	}
}

// Handlers groups the callbacks the dispatcher invokes for each event
// kind. All of them run on the dispatcher goroutine.
type Handlers struct {
	// OnAccept is called once per newly accepted connection.
	OnAccept func(c *Conn)
	// OnData is called whenever a chunk of bytes arrives for a connection.
	OnData func(c *Conn, data []byte)
	// OnConnError is called on read error/EOF/peer reset; the connection's
	// read goroutine has exited by the time this fires. The reactor keeps
	// no connection table and does not close the connection itself.
	OnConnError func(c *Conn, err error)
	// OnTick is called on every watchdog sweep.
	OnTick func()
}

// Reactor owns the listener, the dispatcher goroutine, and the fan-in
// channel every other goroutine posts events onto.
type Reactor struct {
	listener net.Listener
	handlers Handlers

	events  chan event
	done    chan struct{}
	closeWG sync.WaitGroup

	nextConnID atomic.Uint64
}

// New constructs a Reactor bound to addr ("host:port" or ":port"). Bind
// failure is fatal to the caller — it returns the error rather than
// exiting directly, leaving the exit-code decision to cmd/server.
func New(addr string, handlers Handlers) (*Reactor, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Reactor{
		listener: l,
		handlers: handlers,
		events:   make(chan event, 256),
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the bound listener address.
func (r *Reactor) Addr() net.Addr {
	return r.listener.Addr()
}

// Post enqueues an arbitrary function to run on the dispatcher goroutine.
// Used by async-client/db completions and timers to cross back onto the
// single thread that owns ServerContext-shaped state.
func (r *Reactor) Post(fn func()) {
	select {
	case r.events <- event{kind: eventFunc, fn: fn}:
	case <-r.done:
	}
}

// AfterFunc registers a one-shot timer whose callback runs on the
// dispatcher goroutine, preserving the "only the dispatcher mutates
// state" rule even for timer-driven code.
func (r *Reactor) AfterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		r.Post(fn)
	})
}

// Run starts the accept loop and blocks, running the dispatcher loop on
// the calling goroutine until Shutdown is called.
func (r *Reactor) Run() {
	r.closeWG.Add(1)
	go r.acceptLoop()

	ticker := time.NewTicker(WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-r.events:
			r.dispatch(ev)
		case <-ticker.C:
			if r.handlers.OnTick != nil {
				r.handlers.OnTick()
			}
		case <-r.done:
			return
		}
	}
}

// Shutdown stops the accept loop and the dispatcher loop. It does not wait
// for in-flight connections to drain.
func (r *Reactor) Shutdown() {
	select {
	case <-r.done:
		return
	default:
	}

	close(r.done)
	_ = r.listener.Close()
	r.closeWG.Wait()
}

func (r *Reactor) dispatch(ev event) {
	switch ev.kind {
	case eventAccept:
		if r.handlers.OnAccept != nil {
			r.handlers.OnAccept(ev.conn)
		}
	case eventData:
		if r.handlers.OnData != nil && !ev.conn.closed.Load() {
			r.handlers.OnData(ev.conn, ev.data)
		}
	case eventConnError:
		if r.handlers.OnConnError != nil {
			r.handlers.OnConnError(ev.conn, ev.err)
		}
	case eventFunc:
		ev.fn()
	}
}

func (r *Reactor) acceptLoop() {
	defer r.closeWG.Done()

	for {
		raw, err := r.listener.Accept()
		if err != nil {
			select {
			case <-r.done:
				return
			default:
				log.Warn().Err(err).Msg("reactor: accept error")

				return
			}
		}

		conn := &Conn{ID: r.nextConnID.Add(1), Raw: raw}

		select {
		case r.events <- event{kind: eventAccept, conn: conn}:
		case <-r.done:
			_ = raw.Close()

			return
		}

		go r.readLoop(conn)
	}
}

func (r *Reactor) readLoop(conn *Conn) {
	buf := make([]byte, readBufferSize)

	for {
		n, err := conn.Raw.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)

			select {
			case r.events <- event{kind: eventData, conn: conn, data: chunk}:
			case <-r.done:
				return
			}
		}

		if err != nil {
			select {
			case r.events <- event{kind: eventConnError, conn: conn, err: err}:
			case <-r.done:
			}

			return
		}
	}
}
