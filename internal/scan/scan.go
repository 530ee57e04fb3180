package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/L1nMay/rangeprobe/internal/config"
	"github.com/L1nMay/rangeprobe/internal/logger"
	"github.com/L1nMay/rangeprobe/internal/model"
	"github.com/L1nMay/rangeprobe/internal/probe"
	"github.com/L1nMay/rangeprobe/internal/sampler"
)

var (
	ErrAlreadyRunning = errors.New("scan already running")
	ErrNothingToScan  = errors.New("nothing to scan")
	ErrInvalidPort    = errors.New("invalid port")
	ErrUnknownProfile = errors.New("unknown port profile")
)

// ProfileCDN selects probe.CDNPorts.
const ProfileCDN = "cdn"

// RangeSource returns the CIDR text published for a provider.
type RangeSource interface {
	Ranges(ctx context.Context, provider string) (string, error)
}

// ScanRequest describes one scan. CIDRs, Text and the provider's ranges are
// combined. The port list is the first of Port, Ports and Profile that is
// set, falling back to the configured list.
type ScanRequest struct {
	CIDRs    []string `json:"cidrs"`
	Text     string   `json:"text"`
	Provider string   `json:"provider"`
	Port     int      `json:"port"`
	Ports    []int    `json:"ports"`
	Profile  string   `json:"profile"`
}

// PortList resolves the ports a request probes. nil means the prober's
// configured list.
func (req ScanRequest) PortList() ([]int, error) {
	switch {
	case req.Port != 0:
		if !probe.ValidPort(req.Port) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidPort, req.Port)
		}
		return []int{req.Port}, nil
	case len(req.Ports) > 0:
		for _, p := range req.Ports {
			if !probe.ValidPort(p) {
				return nil, fmt.Errorf("%w: %d", ErrInvalidPort, p)
			}
		}
		return append([]int(nil), req.Ports...), nil
	case req.Profile == "":
		return nil, nil
	case req.Profile == ProfileCDN:
		return append([]int(nil), probe.CDNPorts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, req.Profile)
	}
}

type Runner struct {
	cfg     *config.Config
	prober  *probe.Prober
	sampler *sampler.Sampler
	ranges  RangeSource

	mu      sync.Mutex
	current *Session

	muCancel cancelState
	hub      *Hub
}

func NewRunner(cfg *config.Config, prober *probe.Prober, ranges RangeSource) *Runner {
	return &Runner{
		cfg:    cfg,
		prober: prober,
		sampler: sampler.New(sampler.Options{
			Budget:      cfg.Scan.Budget,
			Threshold:   cfg.Scan.Threshold,
			MinPerBlock: cfg.Scan.MinPerBlock,
		}),
		ranges: ranges,
		hub:    NewHub(),
	}
}

// Current returns the most recent session, or nil.
func (r *Runner) Current() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Candidates expands a request into the addresses to probe.
func (r *Runner) Candidates(ctx context.Context, req ScanRequest) ([]string, error) {
	tokens := append([]string(nil), req.CIDRs...)
	tokens = append(tokens, sampler.SplitTokens(req.Text)...)

	if req.Provider != "" {
		if r.ranges == nil {
			return nil, fmt.Errorf("no range source for provider %q", req.Provider)
		}
		text, err := r.ranges.Ranges(ctx, req.Provider)
		if err != nil {
			return nil, fmt.Errorf("could not load ranges for %s: %w", req.Provider, err)
		}
		tokens = append(tokens, sampler.SplitTokens(text)...)
	}

	return r.sampler.Sample(tokens), nil
}

func (r *Runner) orchestrator(req ScanRequest) (*Orchestrator, error) {
	ports, err := req.PortList()
	if err != nil {
		return nil, err
	}
	fn := r.prober.Probe
	if ports != nil {
		fn = func(ctx context.Context, ip string) model.ProbeResult {
			return r.prober.ProbePorts(ctx, ip, ports)
		}
	}
	return &Orchestrator{
		Probe:       fn,
		BatchSize:   r.cfg.Scan.BatchSize,
		Concurrency: r.cfg.Scan.Concurrency,
	}, nil
}

func (r *Runner) newSession(total int) *Session {
	return NewSession(total, r.cfg.Scan.OfflineView != config.ViewCount)
}

// Run scans synchronously and does not touch the runner's current session.
func (r *Runner) Run(ctx context.Context, req ScanRequest, sink Sink) (*Session, error) {
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

	s := r.newSession(len(candidates))
	logger.Infof("scan %s: probing %d addresses", s.ID, len(candidates))
	state, err := orch.Run(ctx, s, candidates, sink)
	if err != nil {
		return s, err
	}
	online, offline := s.Results().Counts()
	logger.Infof("scan %s %s: %d online, %d offline", s.ID, state, online, offline)
	return s, nil
}
