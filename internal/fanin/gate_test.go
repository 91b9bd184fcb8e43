package fanin

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateWaitsForAllOps(t *testing.T) {
	var settledCount int32

	done := make(chan struct{})

	g := NewGate(func(results map[string]any, errs map[string]error) {
		atomic.AddInt32(&settledCount, 1)
		assert.Len(t, results, 2)
		assert.Len(t, errs, 0)
		close(done)
	})

	g.Start(
		Op{Name: "a", Launch: func(cb func(any, error)) {
			go cb("resultA", nil)
		}},
		Op{Name: "b", Launch: func(cb func(any, error)) {
			go cb("resultB", nil)
		}},
	)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("gate never settled")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&settledCount))
}

func TestGateFiresExactlyOnceUnderConcurrency(t *testing.T) {
	var fireCount int32

	var wg sync.WaitGroup
	wg.Add(1)

	g := NewGate(func(results map[string]any, errs map[string]error) {
		atomic.AddInt32(&fireCount, 1)
		wg.Done()
	})

	ops := make([]Op, 50)
	for i := range ops {
		ops[i] = Op{Name: string(rune('a' + i%26)), Launch: func(cb func(any, error)) {
			go cb(nil, nil)
		}}
	}

	g.Start(ops...)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fireCount))
}

func TestGateRecordsErrors(t *testing.T) {
	done := make(chan struct{})

	g := NewGate(func(results map[string]any, errs map[string]error) {
		close(done)
	})

	wantErr := errors.New("boom")

	g.Start(Op{Name: "x", Launch: func(cb func(any, error)) {
		cb(nil, wantErr)
	}})

	<-done
}

func TestGateSynchronousLaunchFailure(t *testing.T) {
	done := make(chan struct{})

	var gotErrs map[string]error
	var gotResults map[string]any

	g := NewGate(func(results map[string]any, errs map[string]error) {
		gotResults = results
		gotErrs = errs
		close(done)
	})

	g.Start(
		Op{Name: "ok", Launch: func(cb func(any, error)) {
			cb("fine", nil)
		}},
		Op{Name: "broken", Launch: func(cb func(any, error)) {
			cb(nil, errors.New("could not start"))
		}},
	)

	<-done
	require.Contains(t, gotErrs, "broken")
	require.Contains(t, gotResults, "ok")
}

func TestGateNoOpsSettlesImmediately(t *testing.T) {
	done := make(chan struct{})

	g := NewGate(func(results map[string]any, errs map[string]error) {
		close(done)
	})

	g.Start()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("gate with no ops never settled")
	}
}
