package handlers

import (
	"github.com/netresearch/cweb-go/internal/httpwire"
	"github.com/netresearch/cweb-go/internal/server"
)

// HelloWorld is the minimal synchronous handler: it completes before
// returning, never touching the pending-response watch list.
func HelloWorld(_ *server.Context, _ *httpwire.Request, resp *httpwire.Response) {
	resp.SetBody(200, "text/plain", []byte("Hello World!"))
}

// NotFound is the process-wide fallback handler, installed when no route
// (exact or dynamic) matches and the path did not resolve to a static
// asset either.
func NotFound(_ *server.Context, _ *httpwire.Request, resp *httpwire.Response) {
	resp.SetBody(404, "text/html", []byte("<h1>404 Not Found</h1>"))
}
