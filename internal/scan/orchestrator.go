package scan

import (
	"context"
	"errors"
	"fmt"

	syncutil "github.com/projectdiscovery/utils/sync"

	"github.com/L1nMay/rangeprobe/internal/model"
)

const DefaultBatchSize = 50

var ErrSessionStarted = errors.New("session already started")

type ProbeFunc func(ctx context.Context, ip string) model.ProbeResult

// Sink receives every result as it is produced. It is called from probe
// goroutines and must be safe for concurrent use.
type Sink func(res model.ProbeResult, probed int)

// Orchestrator runs candidates through Probe in fixed-size batches. Batches
// run one after another; addresses within a batch run concurrently, at most
// Concurrency at a time.
type Orchestrator struct {
	Probe       ProbeFunc
	BatchSize   int
	Concurrency int
}

func (o *Orchestrator) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

func (o *Orchestrator) concurrency() int {
	n := o.Concurrency
	if n <= 0 || n > o.batchSize() {
		n = o.batchSize()
	}
	return n
}

// Run probes every candidate once. Cancelling ctx stops dispatch at the next
// batch boundary; probes already in flight finish on their own timeout and
// their results are kept. The returned state is stopped when ctx was
// cancelled before the last batch returned, completed otherwise.
func (o *Orchestrator) Run(ctx context.Context, s *Session, candidates []string, sink Sink) (State, error) {
	if !s.start() {
		return s.State(), ErrSessionStarted
	}
	return o.drive(ctx, s, candidates, sink)
}

// drive runs an already started session to its terminal state.
func (o *Orchestrator) drive(ctx context.Context, s *Session, candidates []string, sink Sink) (State, error) {
	awg, err := syncutil.New(syncutil.WithSize(o.concurrency()))
	if err != nil {
		s.finish(true)
		return StateStopped, fmt.Errorf("could not create wait group: %w", err)
	}

	probeCtx := context.WithoutCancel(ctx)
	size := o.batchSize()
	cancelled := false

	for start := 0; start < len(candidates); start += size {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		end := min(start+size, len(candidates))

		for _, ip := range candidates[start:end] {
			awg.Add()
			go func(ip string) {
				defer awg.Done()
				res := o.Probe(probeCtx, ip)
				n := s.record(res)
				if sink != nil {
					sink(res, n)
				}
			}(ip)
		}
		awg.Wait()
	}
	if ctx.Err() != nil {
		cancelled = true
	}

	return s.finish(cancelled), nil
}
