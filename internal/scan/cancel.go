package scan

import (
	"context"
	"sync"
)

type cancelState struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *Runner) setCancel(fn context.CancelFunc) {
	r.muCancel.mu.Lock()
	defer r.muCancel.mu.Unlock()
	r.muCancel.cancel = fn
}

func (r *Runner) clearCancel() {
	r.muCancel.mu.Lock()
	defer r.muCancel.mu.Unlock()
	r.muCancel.cancel = nil
}

// IsRunning stays true until the last in-flight probe of a cancelled
// session has returned.
func (r *Runner) IsRunning() bool {
	r.muCancel.mu.Lock()
	defer r.muCancel.mu.Unlock()
	return r.muCancel.cancel != nil
}

// CancelRunning stops dispatch of the current session. It reports false
// when nothing is running.
func (r *Runner) CancelRunning() bool {
	r.muCancel.mu.Lock()
	defer r.muCancel.mu.Unlock()

	if r.muCancel.cancel == nil {
		return false
	}
	r.muCancel.cancel()
	return true
}
