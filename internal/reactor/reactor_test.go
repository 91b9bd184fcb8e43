package reactor

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptAndEcho(t *testing.T) {
	var mu sync.Mutex
	received := make(chan string, 1)

	r, err := New("127.0.0.1:0", Handlers{
		OnData: func(c *Conn, data []byte) {
			mu.Lock()
			defer mu.Unlock()
			received <- string(data)
			_, _ = c.Write(data)
		},
	})
	require.NoError(t, err)

	go r.Run()
	defer r.Shutdown()

	conn, err := net.Dial("tcp", r.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, "hello", got)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never received data event")
	}

	buf := make([]byte, 5)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestConnErrorFiresOnPeerClose(t *testing.T) {
	errCh := make(chan error, 1)

	r, err := New("127.0.0.1:0", Handlers{
		OnConnError: func(c *Conn, err error) {
			errCh <- err
		},
	})
	require.NoError(t, err)

	go r.Run()
	defer r.Shutdown()

	conn, err := net.Dial("tcp", r.Addr().String())
	require.NoError(t, err)
	conn.Close()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("connection error event never fired")
	}
}

func TestPostRunsOnDispatcher(t *testing.T) {
	r, err := New("127.0.0.1:0", Handlers{})
	require.NoError(t, err)

	go r.Run()
	defer r.Shutdown()

	done := make(chan struct{})
	r.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posted func never ran")
	}
}

func TestTickFiresOnWatchdog(t *testing.T) {
	ticks := make(chan struct{}, 1)

	r, err := New("127.0.0.1:0", Handlers{
		OnTick: func() {
			select {
			case ticks <- struct{}{}:
			default:
			}
		},
	})
	require.NoError(t, err)

	go r.Run()
	defer r.Shutdown()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog tick never fired")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	r, err := New("127.0.0.1:0", Handlers{})
	require.NoError(t, err)

	go r.Run()

	r.Shutdown()
	r.Shutdown()
}
