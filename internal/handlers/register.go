// Package handlers ships the sample route handlers that exercise every
// core component from a real call site: helloworld (the minimal
// synchronous handler), home (dynamic-param routing plus
// the template-engine collaborator contract), fetch (the async HTTP
// client), datahub (the async HTTP and DB clients aggregated by the
// fan-in gate), and speedtest (the debug-only speed-sample ring). These
// are collaborators, not core — spec section 1 scopes them out of the
// framework itself, but the framework is untestable end-to-end without
// something registered on its route table.
package handlers

import (
	"github.com/netresearch/cweb-go/internal/server"
)

// Config carries the handler-level collaborator settings named in spec
// section 6 (GITHUB_USERNAME; MYSQL_* are read directly from ctx.DB's
// presence).
type Config struct {
	GitHubUsername string
}

// Register installs every sample handler onto ctx.Routes.
func Register(ctx *server.Context, cfg Config) {
	ctx.Routes.AddRoute("/helloworld", server.HandlerFunc(HelloWorld), false)

	ctx.Routes.AddRoute("/home", server.HandlerFunc(Home), false)
	ctx.Routes.SetDynamicParam("/home", true)
	ctx.Routes.AddRoute("/home/styles.css", server.HandlerFunc(HomeStyles), false)

	ctx.Routes.AddRoute("/fetch", server.HandlerFunc(Fetch(cfg)), false)
	ctx.Routes.AddRoute("/datahub", server.HandlerFunc(Datahub(cfg)), false)
	ctx.Routes.AddRoute("/speedtest", server.HandlerFunc(Speedtest), true)

	ctx.Routes.SetFallback(server.HandlerFunc(NotFound))
}
