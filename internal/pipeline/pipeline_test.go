package pipeline

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/cweb-go/internal/filecache"
	"github.com/netresearch/cweb-go/internal/httpwire"
	"github.com/netresearch/cweb-go/internal/reactor"
	"github.com/netresearch/cweb-go/internal/router"
	"github.com/netresearch/cweb-go/internal/server"
	"github.com/netresearch/cweb-go/internal/session"
)

// pipedConn returns a *reactor.Conn backed by one end of an in-memory
// net.Pipe, plus the other end for reading what the pipeline wrote.
func pipedConn(t *testing.T) (*reactor.Conn, net.Conn) {
	t.Helper()

	srvSide, client := net.Pipe()
	t.Cleanup(func() { _ = srvSide.Close(); _ = client.Close() })

	return &reactor.Conn{ID: 1, Raw: srvSide}, client
}

func readAll(t *testing.T, c net.Conn) string {
	t.Helper()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))

	buf := make([]byte, 4096)
	n, err := c.Read(buf)
	require.NoError(t, err)

	return string(buf[:n])
}

func newTestContext(routes *router.Table, files *filecache.Cache) *server.Context {
	return server.New(routes, files, session.New(0), nil, nil, nil, false)
}

func rawGET(path string) []byte {
	return []byte("GET " + path + " HTTP/1.1\r\nHost: test\r\n\r\n")
}

func TestHandleExactRouteMatch(t *testing.T) {
	routes := router.NewTable()
	routes.AddRoute("/hello", server.HandlerFunc(func(ctx *server.Context, req *httpwire.Request, resp *httpwire.Response) {
		resp.SetBody(200, "text/plain", []byte("hi"))
	}), false)

	ctx := newTestContext(routes, nil)
	conn, client := pipedConn(t)

	go Handle(ctx, NewPending(), conn, rawGET("/hello"))

	out := readAll(t, client)
	assert.Contains(t, out, "200")
	assert.Contains(t, out, "hi")
}

func TestHandleStaticAsset(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{color:red}"), 0o644))

	files, err := filecache.New(filecache.Config{RootDir: dir, Mode: filecache.Memory})
	require.NoError(t, err)

	ctx := newTestContext(router.NewTable(), files)
	conn, client := pipedConn(t)

	go Handle(ctx, NewPending(), conn, rawGET("/app.css"))

	out := readAll(t, client)
	assert.Contains(t, out, "200")
	assert.Contains(t, out, "body{color:red}")
}

func TestHandleFallbackHandler(t *testing.T) {
	routes := router.NewTable()
	routes.SetFallback(server.HandlerFunc(func(ctx *server.Context, req *httpwire.Request, resp *httpwire.Response) {
		resp.SetBody(200, "text/plain", []byte("caught by fallback"))
	}))

	ctx := newTestContext(routes, nil)
	conn, client := pipedConn(t)

	go Handle(ctx, NewPending(), conn, rawGET("/nothing/registered"))

	out := readAll(t, client)
	assert.Contains(t, out, "caught by fallback")
}

func TestHandleDefault404(t *testing.T) {
	ctx := newTestContext(router.NewTable(), nil)
	conn, client := pipedConn(t)

	go Handle(ctx, NewPending(), conn, rawGET("/missing"))

	out := readAll(t, client)
	assert.Contains(t, out, "404")
	assert.Contains(t, out, "<h1>404 Not Found</h1>")
}

func TestHandleStaticAssetTraversalRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{color:red}"), 0o644))

	files, err := filecache.New(filecache.Config{RootDir: dir, Mode: filecache.Memory})
	require.NoError(t, err)

	ctx := newTestContext(router.NewTable(), files)
	conn, client := pipedConn(t)

	go Handle(ctx, NewPending(), conn, rawGET("/../app.css"))

	out := readAll(t, client)
	assert.Contains(t, out, "403")
	assert.Contains(t, out, "Forbidden")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nForbidden"), "body must be exactly %q, got %q", "Forbidden", out)
}

// TestHandleDynamicParamMatchesQueryCarryingPath proves C4's dynamic-param
// operation is actually reachable from Handle: a route that opted into
// HasDynamicParam must match a request whose path carries a query string,
// and an exact route that did NOT opt in must not.
func TestHandleDynamicParamMatchesQueryCarryingPath(t *testing.T) {
	routes := router.NewTable()
	routes.AddRoute("/home", server.HandlerFunc(func(ctx *server.Context, req *httpwire.Request, resp *httpwire.Response) {
		resp.SetBody(200, "text/plain", []byte("exact home"))
	}), false)
	routes.SetDynamicParam("/home", true)

	ctx := newTestContext(routes, nil)
	conn, client := pipedConn(t)

	go Handle(ctx, NewPending(), conn, rawGET("/home?x=1"))

	out := readAll(t, client)
	assert.Contains(t, out, "exact home")
}

func TestHandleExactRouteWithoutDynamicParamMissesQueryCarryingPath(t *testing.T) {
	routes := router.NewTable()
	routes.AddRoute("/home", server.HandlerFunc(func(ctx *server.Context, req *httpwire.Request, resp *httpwire.Response) {
		resp.SetBody(200, "text/plain", []byte("exact home"))
	}), false)

	ctx := newTestContext(routes, nil)
	conn, client := pipedConn(t)

	go Handle(ctx, NewPending(), conn, rawGET("/home?x=1"))

	out := readAll(t, client)
	assert.NotContains(t, out, "exact home")
	assert.Contains(t, out, "404")
}

func TestHandlePanicRecoversTo500(t *testing.T) {
	routes := router.NewTable()
	routes.AddRoute("/boom", server.HandlerFunc(func(ctx *server.Context, req *httpwire.Request, resp *httpwire.Response) {
		panic("handler exploded")
	}), false)

	ctx := newTestContext(routes, nil)
	conn, client := pipedConn(t)

	go Handle(ctx, NewPending(), conn, rawGET("/boom"))

	out := readAll(t, client)
	assert.Contains(t, out, "500")
}

func TestPendingSweepDrainsProcessedEntry(t *testing.T) {
	ctx := newTestContext(router.NewTable(), nil)
	conn, client := pipedConn(t)

	resp := httpwire.NewResponse()
	pending := NewPending()
	pending.add(&pendingEntry{
		conn:      conn,
		req:       &httpwire.Request{},
		resp:      resp,
		startedAt: time.Now(),
		path:      "/async",
	})

	resp.SetBody(200, "text/plain", []byte("async done"))

	// net.Pipe writes block until read, so Sweep runs in its own goroutine.
	swept := make(chan struct{})
	go func() {
		pending.Sweep(ctx)
		close(swept)
	}()

	out := readAll(t, client)
	<-swept
	assert.Contains(t, out, "async done")
	assert.Empty(t, pending.entries)
}

func TestPendingCancelConnInvokesCancelHookOnce(t *testing.T) {
	conn, _ := pipedConn(t)

	calls := 0
	resp := httpwire.NewResponse()
	resp.AsyncCancel = func(data any) { calls++ }

	pending := NewPending()
	pending.add(&pendingEntry{conn: conn, req: &httpwire.Request{}, resp: resp, startedAt: time.Now(), path: "/x"})

	pending.CancelConn(conn.ID)
	pending.CancelConn(conn.ID)

	assert.Equal(t, 1, calls)
	assert.Empty(t, pending.entries)
}
