// Package router implements a bounded route table: exact-path matching
// with an opt-in dynamic-subpath/dynamic-param fallback, plus a single
// process-wide fallback handler.
package router

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// MaxRoutes bounds the number of routes a Table may hold.
const MaxRoutes = 128

// Handler is the function a route (or the fallback slot) dispatches to.
// The concrete request/response types live in internal/httpwire; router
// stays generic over `any` so it has no import-cycle on httpwire, keeping
// routing concerns decoupled from handler bodies.
type Handler any

// Route is one entry of the table.
type Route struct {
	Path              string
	Handler           Handler
	RequiresSession   bool
	HasDynamicSubpath bool
	HasDynamicParam   bool
}

// Table is a bounded, linear-scanned route table — deliberately not a map,
// since MaxRoutes is small and exact-match order (first added, first
// matched) must be deterministic: an exact match always wins over a
// dynamic match, which always wins over the fallback.
type Table struct {
	routes   []Route
	fallback Handler
}

// NewTable returns an empty route table.
func NewTable() *Table {
	return &Table{routes: make([]Route, 0, MaxRoutes)}
}

// AddRoute appends a new route. Returns false (and logs a warning) if the
// table is already at MaxRoutes capacity — callers decide whether that is
// fatal.
func (t *Table) AddRoute(path string, handler Handler, requiresSession bool) bool {
	if len(t.routes) >= MaxRoutes {
		log.Warn().Str("path", path).Msg("route table full, route not added")

		return false
	}

	t.routes = append(t.routes, Route{Path: path, Handler: handler, RequiresSession: requiresSession})

	return true
}

// SetDynamicSubpath flags an already-added route as matching any subpath
// under its base path. Warns if the route does not exist.
func (t *Table) SetDynamicSubpath(path string, flag bool) {
	for i := range t.routes {
		if t.routes[i].Path == path {
			t.routes[i].HasDynamicSubpath = flag

			return
		}
	}

	log.Warn().Str("path", path).Msg("set_dynamic_subpath: route not found")
}

// SetDynamicParam flags an already-added route as matching any query
// string on its base path. Warns if the route does not exist.
func (t *Table) SetDynamicParam(path string, flag bool) {
	for i := range t.routes {
		if t.routes[i].Path == path {
			t.routes[i].HasDynamicParam = flag

			return
		}
	}

	log.Warn().Str("path", path).Msg("set_dynamic_param: route not found")
}

// SetFallback installs the single process-wide fallback handler.
func (t *Table) SetFallback(h Handler) {
	t.fallback = h
}

// Lookup resolves an incoming request path P to a route, following the
// three-step algorithm: exact match, dynamic match, then fallback. ok is false only when neither
// an exact, dynamic, nor fallback match exists.
func (t *Table) Lookup(p string) (route Route, matchedFallback bool, ok bool) {
	for _, r := range t.routes {
		if r.Path == p {
			return r, false, true
		}
	}

	base := basePath(p)
	hasSub := hasSubpath(p)
	hasQry := hasQuery(p)

	for _, r := range t.routes {
		if r.Path != base {
			continue
		}

		if dynamicMatches(r, hasSub, hasQry) {
			return r, false, true
		}
	}

	if t.fallback != nil {
		return Route{Handler: t.fallback}, true, true
	}

	return Route{}, false, false
}

// dynamicMatches applies the dynamic-subpath/dynamic-param truth table.
func dynamicMatches(r Route, hasSub, hasQry bool) bool {
	switch {
	case r.HasDynamicSubpath && r.HasDynamicParam:
		return hasSub && hasQry
	case r.HasDynamicSubpath && !r.HasDynamicParam:
		return hasSub && !hasQry
	case !r.HasDynamicSubpath && r.HasDynamicParam:
		return !hasSub && hasQry
	default:
		return false
	}
}

// basePath computes the prefix of p up to the first '?' or the second '/',
// whichever comes first.
func basePath(p string) string {
	qIdx := strings.IndexByte(p, '?')

	// Find the second '/' (the first one is the leading path separator).
	slashIdx := -1
	if len(p) > 0 && p[0] == '/' {
		if i := strings.IndexByte(p[1:], '/'); i >= 0 {
			slashIdx = i + 1
		}
	}

	cut := len(p)
	if qIdx >= 0 && qIdx < cut {
		cut = qIdx
	}
	if slashIdx >= 0 && slashIdx < cut {
		cut = slashIdx
	}

	return p[:cut]
}

func hasSubpath(p string) bool {
	path := p
	if qIdx := strings.IndexByte(path, '?'); qIdx >= 0 {
		path = path[:qIdx]
	}

	if len(path) == 0 || path[0] != '/' {
		return false
	}

	return strings.IndexByte(path[1:], '/') >= 0
}

func hasQuery(p string) bool {
	return strings.IndexByte(p, '?') >= 0
}
