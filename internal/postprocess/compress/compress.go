// Package compress implements response-body compression with
// Accept-Encoding negotiation: Brotli via andybalholm/brotli, Gzip via
// klauspost/compress/gzip.
package compress

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// Coding names a supported content-coding.
type Coding string

const (
	Brotli   Coding = "br"
	Gzip     Coding = "gzip"
	Identity Coding = "identity"
)

// MinBodySize is the size in bytes a body must exceed to be eligible for
// compression.
const MinBodySize = 4096

var compressibleTypes = map[string]bool{
	"html": true, "htm": true, "css": true, "js": true, "mjs": true,
	"json": true, "txt": true, "xml": true, "svg": true,
	"plain": true, "javascript": true,
}

// Compressible reports whether contentType (e.g. "text/html; charset=utf-8")
// names a compressible kind, per the subtype or a recognizable suffix.
func Compressible(contentType string) bool {
	ct := contentType
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}

	ct = strings.TrimSpace(strings.ToLower(ct))

	parts := strings.SplitN(ct, "/", 2)
	if len(parts) != 2 {
		return false
	}

	subtype := parts[1]
	if idx := strings.LastIndexByte(subtype, '+'); idx >= 0 {
		subtype = subtype[idx+1:]
	}

	return compressibleTypes[subtype]
}

type acceptEntry struct {
	coding Coding
	q      float64
}

// Negotiate parses an Accept-Encoding header value and returns the coding
// to use, or Identity if none qualifies. A q=0 token disqualifies that
// coding; the highest remaining q wins; ties prefer Brotli over Gzip.
func Negotiate(acceptEncoding string) Coding {
	if strings.TrimSpace(acceptEncoding) == "" {
		return Identity
	}

	entries := parseAcceptEncoding(acceptEncoding)

	var best *acceptEntry

	for i := range entries {
		e := &entries[i]
		if e.q <= 0 {
			continue
		}

		if e.coding != Brotli && e.coding != Gzip {
			continue
		}

		if best == nil || e.q > best.q || (e.q == best.q && e.coding == Brotli) {
			best = e
		}
	}

	if best == nil {
		return Identity
	}

	return best.coding
}

func parseAcceptEncoding(header string) []acceptEntry {
	tokens := strings.Split(header, ",")

	entries := make([]acceptEntry, 0, len(tokens))

	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		parts := strings.Split(tok, ";")
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		q := 1.0

		for _, param := range parts[1:] {
			param = strings.TrimSpace(param)
			if v, ok := strings.CutPrefix(param, "q="); ok {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					q = parsed
				}
			}
		}

		entries = append(entries, acceptEntry{coding: Coding(name), q: q})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].q > entries[j].q })

	return entries
}

// Encode compresses body with coding. It returns ok=false if the result is
// not strictly smaller than body, per the "compression must win" rule.
func Encode(coding Coding, body []byte) (compressed []byte, ok bool) {
	var buf bytes.Buffer

	switch coding {
	case Brotli:
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, false
		}

		if err := w.Close(); err != nil {
			return nil, false
		}

	case Gzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, false
		}

		if err := w.Close(); err != nil {
			return nil, false
		}

	default:
		return nil, false
	}

	if buf.Len() >= len(body) {
		return nil, false
	}

	return buf.Bytes(), true
}
