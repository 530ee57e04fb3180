package scan

import (
	"context"

	"github.com/L1nMay/rangeprobe/internal/logger"
	"github.com/L1nMay/rangeprobe/internal/model"
)

// Start launches a session in the background and returns it in the running
// state. Only one session runs at a time. An empty candidate set returns
// ErrNothingToScan and leaves the current session untouched. Provider ranges
// are resolved before r.mu is taken.
func (r *Runner) Start(ctx context.Context, req ScanRequest) (*Session, error) {
	if r.IsRunning() {
		return nil, ErrAlreadyRunning
	}

	orch, err := r.orchestrator(req)
	if err != nil {
		return nil, err
	}
	candidates, err := r.Candidates(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNothingToScan
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.IsRunning() {
		return nil, ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.setCancel(cancel)

	s := r.newSession(len(candidates))
	s.start()
	r.current = s
	r.hub.Publish(Event{Type: EventState, Session: s.ID, State: StateRunning, Total: s.Total})
	logger.Infof("scan %s started: %d addresses", s.ID, len(candidates))

	go func() {
		defer cancel()
		defer r.clearCancel()
		r.runSession(runCtx, orch, s, candidates)
	}()

	return s, nil
}

func (r *Runner) runSession(ctx context.Context, orch *Orchestrator, s *Session, candidates []string) {
	sink := func(res model.ProbeResult, probed int) {
		r.hub.Publish(Event{Type: EventResult, Session: s.ID, Result: &res, Probed: probed, Total: s.Total})
	}

	state, err := orch.drive(ctx, s, candidates, sink)
	if err != nil {
		logger.Errorf("scan %s: %v", s.ID, err)
	}

	online, offline := s.Results().Counts()
	r.hub.Publish(Event{Type: EventState, Session: s.ID, State: state, Probed: s.Probed(), Total: s.Total})
	logger.Infof("scan %s %s: %d online, %d offline", s.ID, state, online, offline)
}
