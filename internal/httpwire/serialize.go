package httpwire

import (
	"fmt"
	"io"
	"strconv"
)

var reasonPhrases = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	500: "Internal Server Error",
	502: "Bad Gateway",
	503: "Service Unavailable",
}

// ReasonPhrase returns the mandatory reason phrase for 200/404/500 and a
// best-effort phrase for other known codes; unknown codes fall back to the
// literal "Unknown".
func ReasonPhrase(status int) string {
	if phrase, ok := reasonPhrases[status]; ok {
		return phrase
	}

	return "Unknown"
}

// WriteResponse serializes resp onto w as "HTTP/1.1 <status> <reason>",
// all headers, an automatic Content-Length, a blank line, then the body.
func WriteResponse(w io.Writer, resp *Response) error {
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", resp.Status, ReasonPhrase(resp.Status)); err != nil {
		return err
	}

	wroteContentLength := false

	for _, h := range resp.Headers {
		if h.Name == "Content-Length" {
			wroteContentLength = true
		}

		if _, err := fmt.Fprintf(w, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return err
		}
	}

	if !wroteContentLength {
		if _, err := fmt.Fprintf(w, "Content-Length: %s\r\n", strconv.Itoa(len(resp.Body))); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}

	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			return err
		}
	}

	return nil
}
