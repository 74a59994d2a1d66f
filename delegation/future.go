package delegation

import (
	"sync"

	"github.com/orchestra-run/orchestra/agenttree"
)

// futureState is a helper task's lifecycle state.
type futureState string

const (
	futureCreated    futureState = "created"
	futureRunning    futureState = "running"
	futureReassigned futureState = "reassigned"
	futureCompleted  futureState = "completed"
	futureFailed     futureState = "failed"
)

// helperFuture tracks one in-flight (or finished) delegated task: the
// helper agent working it, and the eventual result or error, signalled
// once on done.
type helperFuture struct {
	mu    sync.Mutex
	state futureState

	helperName string
	agent      *agenttree.Agent
	task       string
	consumed   bool

	done   chan struct{}
	result string
	err    error
}

func newHelperFuture(helperName, task string, agent *agenttree.Agent) *helperFuture {
	return &helperFuture{
		state:      futureCreated,
		helperName: helperName,
		agent:      agent,
		task:       task,
		done:       make(chan struct{}),
	}
}

func (f *helperFuture) setState(s futureState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *helperFuture) State() futureState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// finish records the final outcome and unblocks every waiter. Must be
// called exactly once.
func (f *helperFuture) finish(result string, err error) {
	f.mu.Lock()
	f.result = result
	f.err = err
	if err != nil {
		f.state = futureFailed
	} else {
		f.state = futureCompleted
	}
	f.mu.Unlock()
	close(f.done)
}

// outcome blocks until the future is finished and returns its result.
func (f *helperFuture) outcome() (string, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

// markConsumed reports whether this future had not yet been returned
// by a previous wait("next") call, and marks it consumed either way -
// used so wait("next") advances through helpers in delegation order
// instead of returning the same finished helper repeatedly.
func (f *helperFuture) markConsumed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	wasUnconsumed := !f.consumed
	f.consumed = true
	return wasUnconsumed
}
