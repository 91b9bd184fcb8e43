// Package server holds the per-process scoped context every request runs
// against — the Go substitute for the original's global mutable state:
// one struct, constructed once at startup, handed explicitly to every
// handler instead of living behind file-scope globals.
package server

import (
	"time"

	"github.com/netresearch/cweb-go/internal/asyncdb"
	"github.com/netresearch/cweb-go/internal/asynchttp"
	"github.com/netresearch/cweb-go/internal/filecache"
	"github.com/netresearch/cweb-go/internal/httpwire"
	"github.com/netresearch/cweb-go/internal/reactor"
	"github.com/netresearch/cweb-go/internal/router"
	"github.com/netresearch/cweb-go/internal/session"
)

// HandlerFunc is the concrete signature every route's handler implements.
// Synchronous handlers set resp.State = httpwire.Processed before
// returning; handlers that suspend on an async operation set it to
// Processing and register a completion that eventually flips it, to be
// picked up by the pending-response watch.
type HandlerFunc func(ctx *Context, req *httpwire.Request, resp *httpwire.Response)

// SpeedSample is one debug-only timing record for a completed request.
type SpeedSample struct {
	Path     string
	Started  time.Time
	Duration time.Duration
}

// speedRingSize bounds the in-memory ring of recent timing samples.
const speedRingSize = 2048

// Context is the scoped replacement for global mutable state: every
// component a handler might need, constructed once and passed down
// explicitly.
type Context struct {
	Routes   *router.Table
	Files    *filecache.Cache
	Sessions *session.Store
	HTTP     *asynchttp.Client
	DB       *asyncdb.Client
	Reactor  *reactor.Reactor

	Debug bool

	speedRing  [speedRingSize]SpeedSample
	speedNext  int
	speedCount int
}

// New constructs a Context. httpClient and dbClient may be nil if no
// handler issues outbound requests or queries, respectively.
func New(routes *router.Table, files *filecache.Cache, sessions *session.Store, httpClient *asynchttp.Client, dbClient *asyncdb.Client, r *reactor.Reactor, debug bool) *Context {
	return &Context{
		Routes:   routes,
		Files:    files,
		Sessions: sessions,
		HTTP:     httpClient,
		DB:       dbClient,
		Reactor:  r,
		Debug:    debug,
	}
}

// RunOnDispatcher runs fn on the reactor's dispatcher goroutine, the only
// goroutine allowed to touch Context-owned state. If no reactor is wired
// (as in unit tests that construct a Context without one), fn runs
// immediately on the calling goroutine instead.
func (c *Context) RunOnDispatcher(fn func()) {
	if c.Reactor == nil {
		fn()

		return
	}

	c.Reactor.Post(fn)
}

// RecordSpeedSample appends a timing sample to the ring, overwriting the
// oldest entry once full. Only called when Debug is set.
func (c *Context) RecordSpeedSample(s SpeedSample) {
	c.speedRing[c.speedNext] = s
	c.speedNext = (c.speedNext + 1) % speedRingSize

	if c.speedCount < speedRingSize {
		c.speedCount++
	}
}

// SpeedSamples returns the recorded samples, oldest first.
func (c *Context) SpeedSamples() []SpeedSample {
	out := make([]SpeedSample, 0, c.speedCount)

	start := c.speedNext - c.speedCount
	for i := 0; i < c.speedCount; i++ {
		idx := (start + i + speedRingSize) % speedRingSize
		out = append(out, c.speedRing[idx])
	}

	return out
}
