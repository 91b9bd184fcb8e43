package httpwire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResponseBasic(t *testing.T) {
	resp := NewResponse()
	resp.SetBody(200, "text/css", []byte("body{color:red}\n"))

	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, resp))

	out := buf.String()
	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "Content-Type: text/css\r\n")
	assert.Contains(t, out, "Content-Length: 16\r\n")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("body{color:red}\n")))
}

func TestWriteResponseUnknownStatus(t *testing.T) {
	resp := NewResponse()
	resp.Status = 299

	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, resp))
	assert.Contains(t, buf.String(), "HTTP/1.1 299 Unknown\r\n")
}

func TestReasonPhraseMandatory(t *testing.T) {
	assert.Equal(t, "OK", ReasonPhrase(200))
	assert.Equal(t, "Not Found", ReasonPhrase(404))
	assert.Equal(t, "Internal Server Error", ReasonPhrase(500))
	assert.Equal(t, "Unknown", ReasonPhrase(999))
}

func TestResponseSetGetCaseInsensitive(t *testing.T) {
	resp := NewResponse()
	resp.Set("Content-Type", "text/html")
	resp.Set("content-type", "text/plain")

	v, ok := resp.Get("CONTENT-TYPE")
	require.True(t, ok)
	assert.Equal(t, "text/plain", v)
	assert.Len(t, resp.Headers, 1)
}

func TestResponseCancelIdempotent(t *testing.T) {
	calls := 0
	resp := NewResponse()
	resp.AsyncData = "payload"
	resp.AsyncCancel = func(data any) {
		calls++
		assert.Equal(t, "payload", data)
	}

	resp.Cancel()
	resp.Cancel()

	assert.Equal(t, 1, calls)
	assert.Nil(t, resp.AsyncCancel)
	assert.Nil(t, resp.AsyncData)
}

func TestSetCookieValue(t *testing.T) {
	v := SetCookieValue("abc123", 1800)
	assert.Equal(t, "session_id=abc123; HttpOnly; Path=/; Max-Age=1800", v)
}
