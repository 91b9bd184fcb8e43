package httpwire

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedRequestLine is returned when the first line of a request
	// cannot be split into method, request-target, and version.
	ErrMalformedRequestLine = errors.New("httpwire: malformed request line")
	// ErrTooManyHeaders is returned when header count exceeds MaxHeaders.
	ErrTooManyHeaders = errors.New("httpwire: too many headers")
	// ErrPathTooLong is returned when the request-target is empty or is
	// MaxPathLen bytes or longer.
	ErrPathTooLong = errors.New("httpwire: request-target too long")
	// ErrMethodTooLong is returned when the method token exceeds MaxMethodLen.
	ErrMethodTooLong = errors.New("httpwire: method too long")
	// ErrVersionTooLong is returned when the version token exceeds MaxVersionLen.
	ErrVersionTooLong = errors.New("httpwire: version too long")
	// ErrMalformedHeaderLine is returned when a header line has no colon.
	ErrMalformedHeaderLine = errors.New("httpwire: malformed header line")
)

// ParseRequest parses a single HTTP/1.1 request out of raw, which must
// contain the request line, headers, the blank line, and (optionally) a
// body. Any bytes after the blank line become the body verbatim; a
// declared Content-Length is not re-validated here (the reactor is
// responsible for buffering until enough bytes have arrived).
func ParseRequest(raw []byte) (*Request, error) {
	lineEnd := bytes.Index(raw, []byte("\r\n"))
	if lineEnd < 0 {
		return nil, ErrMalformedRequestLine
	}

	requestLine := raw[:lineEnd]
	rest := raw[lineEnd+2:]

	method, path, version, err := parseRequestLine(requestLine)
	if err != nil {
		return nil, err
	}

	headers, body, err := parseHeaders(rest)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:  method,
		Path:    path,
		Version: version,
		Headers: headers,
		Body:    body,
	}

	if cookie, ok := req.Header("Cookie"); ok {
		if sid, found := extractSessionID(cookie); found {
			req.SessionID = sid
		}
	}

	return req, nil
}

func parseRequestLine(line []byte) (method, path, version string, err error) {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return "", "", "", ErrMalformedRequestLine
	}

	method = string(parts[0])
	path = string(parts[1])
	version = string(parts[2])

	if len(method) == 0 || len(method) > MaxMethodLen {
		return "", "", "", ErrMethodTooLong
	}
	if len(path) == 0 || len(path) > MaxPathLen-1 {
		return "", "", "", ErrPathTooLong
	}
	if len(version) == 0 || len(version) > MaxVersionLen {
		return "", "", "", ErrVersionTooLong
	}

	return method, path, version, nil
}

// parseHeaders reads "Name: Value" lines until a blank line, then returns
// the remaining bytes as the body.
func parseHeaders(rest []byte) ([]Header, []byte, error) {
	headers := make([]Header, 0, 16)

	for {
		lineEnd := bytes.Index(rest, []byte("\r\n"))
		if lineEnd < 0 {
			// No blank-line terminator found; treat everything as headers
			// missing their terminator — malformed.
			return nil, nil, ErrMalformedRequestLine
		}

		line := rest[:lineEnd]
		rest = rest[lineEnd+2:]

		if len(line) == 0 {
			return headers, rest, nil
		}

		if len(headers) >= MaxHeaders {
			return nil, nil, ErrTooManyHeaders
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, nil, ErrMalformedHeaderLine
		}

		name := string(line[:colon])
		value := strings.TrimLeft(string(line[colon+1:]), " \t")

		headers = append(headers, Header{Name: name, Value: value})
	}
}

// extractSessionID tokenizes a Cookie header value on "; " and linearly
// searches for a session_id entry.
func extractSessionID(cookie string) (string, bool) {
	for _, tok := range strings.Split(cookie, "; ") {
		tok = strings.TrimSpace(tok)

		const prefix = "session_id="
		if strings.HasPrefix(tok, prefix) {
			return tok[len(prefix):], true
		}
	}

	return "", false
}

// SetCookieValue builds the Set-Cookie header value for newly minted
// sessions: "session_id=<id>; HttpOnly; Path=/; Max-Age=<ttl>".
func SetCookieValue(id string, ttlSeconds int) string {
	return fmt.Sprintf("session_id=%s; HttpOnly; Path=/; Max-Age=%d", id, ttlSeconds)
}
