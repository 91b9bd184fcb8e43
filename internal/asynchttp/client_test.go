package asynchttp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoCompletesAsynchronously(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(DefaultConfig())
	defer c.Close()

	done := make(chan *Response, 1)

	c.Do(Request{Method: http.MethodGet, URL: srv.URL}, func(r *Response) {
		done <- r
	})

	select {
	case r := <-done:
		require.NoError(t, r.Err)
		assert.Equal(t, http.StatusOK, r.Status)
		assert.Equal(t, `{"ok":true}`, string(r.Body))
	case <-time.After(2 * time.Second):
		t.Fatal("request never completed")
	}
}

func TestDoAppliesQueryParams(t *testing.T) {
	var gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
	}))
	defer srv.Close()

	c := New(DefaultConfig())
	defer c.Close()

	done := make(chan *Response, 1)

	c.Do(Request{
		Method: http.MethodGet,
		URL:    srv.URL,
		Query:  map[string][]string{"q": {"hello"}},
	}, func(r *Response) {
		done <- r
	})

	<-done
	assert.Equal(t, "q=hello", gotQuery)
}

func TestDoSurfacesTransportError(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()

	done := make(chan *Response, 1)

	c.Do(Request{Method: http.MethodGet, URL: "http://127.0.0.1:1"}, func(r *Response) {
		done <- r
	})

	select {
	case r := <-done:
		require.Error(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("request never completed")
	}
}

func TestResponseJSONLazyParse(t *testing.T) {
	r := &Response{Body: []byte(`{"a":1}`)}

	v, err := r.JSON()
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), m["a"])

	// Calling twice must not re-decode or error.
	v2, err2 := r.JSON()
	require.NoError(t, err2)
	assert.Equal(t, v, v2)
}
