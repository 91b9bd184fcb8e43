// Package fanin implements the fan-in aggregator: a gate that launches a
// set of asynchronous operations and invokes a single completion callback
// exactly once, after every launched operation has settled.
package fanin

import (
	"sync"
	"sync/atomic"
)

// Op is one unit of asynchronous work. launch receives a done callback
// that the op's own completion handler must call exactly once, with its
// result value (possibly nil) and an error (nil on success).
type Op struct {
	Name   string
	Launch func(done func(result any, err error))
}

// Gate aggregates the results of a fixed set of ops launched via Start.
// Completions may arrive from different goroutines (each op typically
// runs on its own async-client worker), but the gate's own bookkeeping
// is made race-free with a mutex, an atomic pending counter and a
// sync.Once-guarded completion.
type Gate struct {
	pending   int32
	once      sync.Once
	mu        sync.Mutex
	results   map[string]any
	errs      map[string]error
	onSettled func(results map[string]any, errs map[string]error)
}

// NewGate constructs a Gate. onSettled fires exactly once, after every op
// started via Start has completed (successfully or with an error).
func NewGate(onSettled func(results map[string]any, errs map[string]error)) *Gate {
	return &Gate{
		results:   make(map[string]any),
		errs:      make(map[string]error),
		onSettled: onSettled,
	}
}

// Start launches every op concurrently. A launch failure — Launch itself
// panicking or returning without ever calling done — is not distinguished
// here; callers that can detect launch failure synchronously should call
// done with an error immediately instead of deferring it into Launch.
func (g *Gate) Start(ops ...Op) {
	if len(ops) == 0 {
		g.settle()

		return
	}

	atomic.AddInt32(&g.pending, int32(len(ops)))

	for _, op := range ops {
		op := op

		op.Launch(func(result any, err error) {
			g.mu.Lock()
			if err != nil {
				g.errs[op.Name] = err
			} else {
				g.results[op.Name] = result
			}
			g.mu.Unlock()

			if atomic.AddInt32(&g.pending, -1) == 0 {
				g.settle()
			}
		})
	}
}

func (g *Gate) settle() {
	g.once.Do(func() {
		g.mu.Lock()
		results := g.results
		errs := g.errs
		g.mu.Unlock()

		g.onSettled(results, errs)
	})
}
