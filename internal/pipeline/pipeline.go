// Package pipeline wires the reactor, parser, session store, route table,
// file cache, and post-processor into the per-connection request flow.
package pipeline

import (
	"bytes"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netresearch/cweb-go/internal/filecache"
	"github.com/netresearch/cweb-go/internal/httpwire"
	"github.com/netresearch/cweb-go/internal/postprocess"
	"github.com/netresearch/cweb-go/internal/reactor"
	"github.com/netresearch/cweb-go/internal/server"
)

// pendingEntry is a (request, response, connection) triple waiting for an
// async operation to flip its response to Processed.
type pendingEntry struct {
	conn      *reactor.Conn
	req       *httpwire.Request
	resp      *httpwire.Response
	startedAt time.Time
	path      string
}

// Pending tracks in-flight async responses across the whole reactor; the
// watchdog tick drains entries that reached Processed and cancels entries
// whose connection has closed.
type Pending struct {
	entries map[uint64][]*pendingEntry
}

// NewPending returns an empty pending-response tracker.
func NewPending() *Pending {
	return &Pending{entries: make(map[uint64][]*pendingEntry)}
}

func (p *Pending) add(e *pendingEntry) {
	p.entries[e.conn.ID] = append(p.entries[e.conn.ID], e)
}

// Sweep drains every entry whose response reached Processed, writing it to
// the wire, and is called on every watchdog tick.
func (p *Pending) Sweep(ctx *server.Context) {
	for connID, list := range p.entries {
		remaining := list[:0]

		for _, e := range list {
			if e.resp.State == httpwire.Processed {
				finish(ctx, e)

				continue
			}

			remaining = append(remaining, e)
		}

		if len(remaining) == 0 {
			delete(p.entries, connID)
		} else {
			p.entries[connID] = remaining
		}
	}
}

// CancelConn cancels every pending entry bound to connID — invoked when
// that connection closes.
func (p *Pending) CancelConn(connID uint64) {
	for _, e := range p.entries[connID] {
		e.resp.Cancel()
	}

	delete(p.entries, connID)
}

// Handle runs one request through the full pipeline: parse, resolve
// session, resolve handler or static asset, run (or suspend), post-process,
// serialize, write.
func Handle(ctx *server.Context, pending *Pending, conn *reactor.Conn, raw []byte) {
	req, err := httpwire.ParseRequest(raw)
	if err != nil {
		log.Warn().Err(err).Msg("pipeline: malformed request, connection left open")

		return
	}

	start := time.Now()

	resp := httpwire.NewResponse()

	path := req.PathOnly()

	route, usedFallback, found := ctx.Routes.Lookup(req.Path)

	if found && !usedFallback && route.RequiresSession {
		applySession(ctx, req, resp)
	}

	switch {
	case found && !usedFallback:
		invokeHandler(ctx, route.Handler, req, resp)

	default:
		if !serveStatic(ctx, req, resp) {
			if found && usedFallback {
				invokeHandler(ctx, route.Handler, req, resp)
			} else {
				notFound(resp)
			}
		}
	}

	if resp.State != httpwire.Processed {
		pending.add(&pendingEntry{conn: conn, req: req, resp: resp, startedAt: start, path: path})

		return
	}

	finishTimed(ctx, conn, req, resp, start, path)
}

func applySession(ctx *server.Context, req *httpwire.Request, resp *httpwire.Response) {
	now := time.Now()

	rec, minted := ctx.Sessions.GetOrCreate(req.SessionID, now)
	req.Session = &httpwire.Session{ID: rec.ID}

	if minted {
		resp.Set("Set-Cookie", httpwire.SetCookieValue(rec.ID, int(rec.Expires.Sub(now).Seconds())))
	}
}

func invokeHandler(ctx *server.Context, handler any, req *httpwire.Request, resp *httpwire.Response) {
	h, ok := handler.(server.HandlerFunc)
	if !ok || h == nil {
		notFound(resp)

		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("pipeline: recovered panic in handler")

			resp.Status = 500
			resp.Set("Content-Type", "text/plain")
			resp.Body = []byte("500 Internal Server Error")
			resp.State = httpwire.Processed
		}
	}()

	h(ctx, req, resp)
}

func notFound(resp *httpwire.Response) {
	resp.Status = 404
	resp.Set("Content-Type", "text/html")
	resp.Body = []byte("<h1>404 Not Found</h1>")
	resp.State = httpwire.Processed
}

// looksLikeStaticAsset applies the static-asset URL predicate: the path
// must fall under the configured asset prefix AND carry a recognized MIME
// extension, mirroring the original's is_static_file.
func looksLikeStaticAsset(rawPath, prefix string) bool {
	if prefix != "" && prefix != "/" && !strings.HasPrefix(rawPath, prefix) {
		return false
	}

	return filecache.HasKnownExtension(rawPath)
}

func serveStatic(ctx *server.Context, req *httpwire.Request, resp *httpwire.Response) bool {
	if ctx.Files == nil {
		return false
	}

	rawPath := req.PathOnly()

	if !looksLikeStaticAsset(rawPath, ctx.Files.URLPrefix()) {
		return false
	}

	logical := ctx.Files.NormalizeURL(rawPath)

	f, err := ctx.Files.Get(logical)
	switch {
	case err == nil:
		resp.Status = 200
		resp.Set("Content-Type", f.MIMEType)
		resp.Set("Cache-Control", "public, max-age=31536000")
		resp.Body = f.Data
		resp.State = httpwire.Processed

		return true

	case err == filecache.ErrForbidden:
		resp.Status = 403
		resp.Set("Content-Type", "text/plain")
		resp.Body = []byte("Forbidden")
		resp.State = httpwire.Processed

		return true

	case err == filecache.ErrNotFound:
		resp.Status = 404
		resp.Set("Content-Type", "text/plain")
		resp.Body = []byte("404 Not Found")
		resp.State = httpwire.Processed

		return true

	default:
		return false
	}
}

func finish(ctx *server.Context, e *pendingEntry) {
	finishTimed(ctx, e.conn, e.req, e.resp, e.startedAt, e.path)
}

func finishTimed(ctx *server.Context, conn *reactor.Conn, req *httpwire.Request, resp *httpwire.Response, start time.Time, path string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("pipeline: recovered panic while finishing response")

			resp.Status = 500
			resp.Body = []byte("500 Internal Server Error")
			resp.State = httpwire.Error
		}

		writeResponse(conn, resp)

		if ctx.Debug {
			ctx.RecordSpeedSample(server.SpeedSample{Path: path, Started: start, Duration: time.Since(start)})
		}
	}()

	postprocess.Run(req, resp)
}

func writeResponse(conn *reactor.Conn, resp *httpwire.Response) {
	var buf bytes.Buffer

	err := httpwire.WriteResponse(&buf, resp)
	if err == nil {
		_, err = conn.Write(buf.Bytes())
	}

	if err != nil {
		log.Warn().Err(err).Msg("pipeline: write error, closing connection")

		conn.Close()
	}
}
