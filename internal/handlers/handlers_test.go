package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/netresearch/cweb-go/internal/httpwire"
	"github.com/netresearch/cweb-go/internal/router"
	"github.com/netresearch/cweb-go/internal/server"
	"github.com/netresearch/cweb-go/internal/session"
)

func newTestContext() *server.Context {
	return server.New(router.NewTable(), nil, session.New(0), nil, nil, nil, true)
}

func TestHelloWorldRespondsSynchronously(t *testing.T) {
	resp := httpwire.NewResponse()
	HelloWorld(newTestContext(), &httpwire.Request{}, resp)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, httpwire.Processed, resp.State)
	assert.Equal(t, "Hello World!", string(resp.Body))
}

func TestNotFoundRendersHTML(t *testing.T) {
	resp := httpwire.NewResponse()
	NotFound(newTestContext(), &httpwire.Request{}, resp)

	assert.Equal(t, 404, resp.Status)
	assert.Contains(t, string(resp.Body), "404")
}

func TestHomeRendersUsernameAndStylesheetLink(t *testing.T) {
	resp := httpwire.NewResponse()
	Home(newTestContext(), &httpwire.Request{}, resp)

	assert.Equal(t, httpwire.Processed, resp.State)
	assert.Contains(t, string(resp.Body), "John Developer")
	assert.Contains(t, string(resp.Body), "/home/styles.css")
}

func TestHomeStylesServesCSS(t *testing.T) {
	resp := httpwire.NewResponse()
	HomeStyles(newTestContext(), &httpwire.Request{}, resp)

	ct, _ := resp.Get("Content-Type")
	assert.Equal(t, "text/css", ct)
	assert.Contains(t, string(resp.Body), "font-family")
}

func TestFetchRejectsPOST(t *testing.T) {
	resp := httpwire.NewResponse()
	Fetch(Config{})(newTestContext(), &httpwire.Request{Method: "POST"}, resp)

	assert.Equal(t, 403, resp.Status)
	assert.Equal(t, httpwire.Processed, resp.State)
}

func TestFetchWithoutHTTPClientReturns500(t *testing.T) {
	resp := httpwire.NewResponse()
	Fetch(Config{})(newTestContext(), &httpwire.Request{Method: "GET"}, resp)

	assert.Equal(t, 500, resp.Status)
	assert.Equal(t, httpwire.Processed, resp.State)
}

func TestDatahubWithoutCollaboratorsStillSettlesViaGithubError(t *testing.T) {
	resp := httpwire.NewResponse()
	Datahub(Config{})(newTestContext(), &httpwire.Request{Method: "GET"}, resp)

	// No HTTP client configured: the github op completes immediately with
	// an error and, since no DB client is configured either, the gate
	// settles synchronously within Start. ctx.Reactor is nil in this test
	// context, so the completion runs inline via RunOnDispatcher instead
	// of panicking on a nil reactor.
	assert.Equal(t, httpwire.Processed, resp.State)
}

func TestSpeedtestRejectsPOST(t *testing.T) {
	resp := httpwire.NewResponse()
	Speedtest(newTestContext(), &httpwire.Request{Method: "POST"}, resp)

	assert.Equal(t, 403, resp.Status)
}

func TestSpeedtestReportsRecordedSamples(t *testing.T) {
	ctx := newTestContext()
	ctx.RecordSpeedSample(server.SpeedSample{Path: "/x", Duration: 5 * time.Millisecond})

	resp := httpwire.NewResponse()
	Speedtest(ctx, &httpwire.Request{Method: "GET", Path: "/speedtest"}, resp)

	assert.Contains(t, string(resp.Body), "/x")
}

func TestRegisterInstallsEveryRoute(t *testing.T) {
	ctx := newTestContext()
	Register(ctx, Config{GitHubUsername: "octocat"})

	for _, path := range []string{"/helloworld", "/home", "/home/styles.css", "/fetch", "/datahub", "/speedtest"} {
		_, _, ok := ctx.Routes.Lookup(path)
		assert.Truef(t, ok, "expected route %s to resolve", path)
	}
}
