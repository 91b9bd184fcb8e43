// Package postprocess runs the two-step pipeline applied to every response
// after the handler completes and before it is serialized onto the wire:
// minify, then compress.
package postprocess

import (
	"strings"

	"github.com/netresearch/cweb-go/internal/httpwire"
	"github.com/netresearch/cweb-go/internal/postprocess/compress"
	"github.com/netresearch/cweb-go/internal/postprocess/minify"
)

// Run mutates resp in place: it minifies the body when the content type
// calls for it, then compresses the (possibly minified) body when the
// request's Accept-Encoding and the body size both qualify.
func Run(req *httpwire.Request, resp *httpwire.Response) {
	contentType, _ := resp.Get("Content-Type")

	minifyBody(contentType, resp)
	compressBody(req, contentType, resp)
}

func minifyBody(contentType string, resp *httpwire.Response) {
	kind := minifyKind(contentType)
	if kind == "" {
		return
	}

	var out []byte

	switch kind {
	case "css":
		out = minify.CSS(resp.Body)
	case "js":
		out = minify.JS(resp.Body)
	case "html":
		out = minify.HTML(resp.Body)
	}

	if len(out) > 0 && len(out) < len(resp.Body) {
		resp.Body = out
	}
}

func minifyKind(contentType string) string {
	ct := strings.ToLower(contentType)

	switch {
	case strings.Contains(ct, "html"):
		return "html"
	case strings.Contains(ct, "css"):
		return "css"
	case strings.Contains(ct, "javascript") || strings.Contains(ct, "ecmascript"):
		return "js"
	default:
		return ""
	}
}

func compressBody(req *httpwire.Request, contentType string, resp *httpwire.Response) {
	if len(resp.Body) <= compress.MinBodySize {
		return
	}

	if !compress.Compressible(contentType) {
		return
	}

	acceptEncoding, _ := req.Header("Accept-Encoding")

	coding := compress.Negotiate(acceptEncoding)
	if coding == compress.Identity {
		return
	}

	out, ok := compress.Encode(coding, resp.Body)
	if !ok {
		return
	}

	resp.Body = out
	resp.Set("Content-Encoding", string(coding))
	resp.Set("Vary", "Accept-Encoding")
}
