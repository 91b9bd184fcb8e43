package httpwire

import "strings"

// State is the response-side scheduling signal between handlers and the
// writer (pipeline state).
type State int

const (
	NotProcessed State = iota
	Processing
	Processed
	Error
)

func (s State) String() string {
	switch s {
	case NotProcessed:
		return "NotProcessed"
	case Processing:
		return "Processing"
	case Processed:
		return "Processed"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// AsyncCancelFunc is invoked at most once if the connection dies before the
// response reaches Processed. It must not touch the response or connection
// after the pending node has already cleared it.
type AsyncCancelFunc func(data any)

// Response is mutable during handler execution; once State reaches
// Processed, only the post-processor rewrites its body and headers before
// serialization.
type Response struct {
	Status  int
	Headers []Header
	Body    []byte
	// Literal marks a body that points at a static string not to be
	// mutated in place (matches the source's "do not free" flag; in Go
	// terms it simply means "don't reuse Body's backing array").
	Literal bool
	// Priority is derived from MIME class for static assets; unused for
	// dynamic handler responses.
	Priority int

	State State

	AsyncData   any
	AsyncCancel AsyncCancelFunc
}

// NewResponse returns a Response defaulted to status 404, matching the
// connection pipeline's step 5 default.
func NewResponse() *Response {
	return &Response{
		Status: 404,
		State:  NotProcessed,
	}
}

// Set sets (or appends) a header, case-insensitively replacing an existing
// one with the same name.
func (r *Response) Set(name, value string) {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Name, name) {
			r.Headers[i].Value = value

			return
		}
	}

	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}

// Get returns a header value, case-insensitively.
func (r *Response) Get(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}

	return "", false
}

// SetBody replaces the body with owned bytes and marks the response
// Processed, the common case for synchronous handlers.
func (r *Response) SetBody(status int, contentType string, body []byte) {
	r.Status = status
	r.Body = body
	r.Set("Content-Type", contentType)
	r.State = Processed
}

// Cancel invokes AsyncCancel exactly once and clears both cancellation
// fields, guaranteeing idempotency per the pending-response invariant.
func (r *Response) Cancel() {
	if r.AsyncCancel == nil {
		return
	}

	cancel := r.AsyncCancel
	data := r.AsyncData
	r.AsyncCancel = nil
	r.AsyncData = nil
	cancel(data)
}
