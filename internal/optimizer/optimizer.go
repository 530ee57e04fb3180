package optimizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/L1nMay/rangeprobe/internal/config"
	"github.com/L1nMay/rangeprobe/internal/logger"
	"github.com/L1nMay/rangeprobe/internal/model"
	"github.com/L1nMay/rangeprobe/internal/providers"
	"github.com/L1nMay/rangeprobe/internal/sampler"
	"github.com/L1nMay/rangeprobe/internal/scan"
)

type Catalog interface {
	Providers(ctx context.Context) ([]string, error)
	Ranges(ctx context.Context, id string) (string, error)
}

type Notifier interface {
	NotifyOptimalIPs(ips []model.OptimalIP) error
}

type Snapshot struct {
	IPs     []model.OptimalIP `json:"optimalIPs"`
	LastRun *time.Time        `json:"lastOptimization,omitempty"`
	Total   int               `json:"totalCount"`
}

// Optimizer keeps a short list of the lowest-latency reachable addresses
// across the first few ranges of each provider.
type Optimizer struct {
	cfg      config.OptimizerConfig
	catalog  Catalog
	orch     *scan.Orchestrator
	notifier Notifier

	mu      sync.RWMutex
	ips     []model.OptimalIP
	lastRun time.Time
}

func New(cfg config.OptimizerConfig, catalog Catalog, probe scan.ProbeFunc, batchSize int) *Optimizer {
	return &Optimizer{
		cfg:     cfg,
		catalog: catalog,
		orch:    &scan.Orchestrator{Probe: probe, BatchSize: batchSize},
	}
}

func (o *Optimizer) SetNotifier(n Notifier) {
	o.notifier = n
}

func (o *Optimizer) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := Snapshot{
		IPs:   append([]model.OptimalIP{}, o.ips...),
		Total: len(o.ips),
	}
	if !o.lastRun.IsZero() {
		t := o.lastRun
		snap.LastRun = &t
	}
	return snap
}

// candidates picks base+1..base+IPsPerCIDR from the first ranges of the
// first providers. IPv6 ranges are skipped.
func (o *Optimizer) candidates(ctx context.Context) ([]string, map[string]string, error) {
	ids, err := o.catalog.Providers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list providers: %w", err)
	}
	if len(ids) > o.cfg.MaxProviders {
		ids = ids[:o.cfg.MaxProviders]
	}

	var out []string
	owner := make(map[string]string)
	for _, id := range ids {
		text, err := o.catalog.Ranges(ctx, id)
		if err != nil {
			logger.Debugf("optimizer: skip %s: %v", id, err)
			continue
		}
		cidrs := providers.CIDRs(text)
		if len(cidrs) > o.cfg.CIDRsPerProvider {
			cidrs = cidrs[:o.cfg.CIDRsPerProvider]
		}
		for _, cidr := range cidrs {
			block, ok := sampler.ParseBlock(cidr)
			if !ok {
				continue
			}
			for i := 1; i <= o.cfg.IPsPerCIDR; i++ {
				addr, ok := sampler.Add(block.Base, uint64(i))
				if !ok {
					break
				}
				ip := sampler.Format(addr)
				if _, dup := owner[ip]; dup {
					continue
				}
				owner[ip] = id
				out = append(out, ip)
			}
		}
	}
	return out, owner, nil
}

// Run performs one optimization pass. A cancelled pass keeps the previous
// result.
func (o *Optimizer) Run(ctx context.Context) error {
	candidates, owner, err := o.candidates(ctx)
	if err != nil {
		return err
	}
	logger.Infof("optimizer: probing %d addresses", len(candidates))

	s := scan.NewSession(len(candidates), false)
	state, err := o.orch.Run(ctx, s, candidates, nil)
	if err != nil {
		return err
	}
	if state == scan.StateStopped {
		return ctx.Err()
	}

	online := s.Results().Online()
	if len(online) > o.cfg.Keep {
		online = online[:o.cfg.Keep]
	}
	ips := make([]model.OptimalIP, 0, len(online))
	for _, r := range online {
		ips = append(ips, model.OptimalIP{IP: r.IP, Latency: r.Latency(), Provider: owner[r.IP]})
	}

	o.mu.Lock()
	o.ips = ips
	o.lastRun = time.Now().UTC()
	o.mu.Unlock()
	logger.Infof("optimizer: %d online addresses kept", len(ips))

	if o.notifier != nil {
		if err := o.notifier.NotifyOptimalIPs(ips); err != nil {
			logger.Errorf("optimizer: notify: %v", err)
		}
	}
	return nil
}

// OnRefresh adapts Run to the catalog refresh hook.
func (o *Optimizer) OnRefresh(ctx context.Context) {
	if err := o.Run(ctx); err != nil {
		logger.Warnf("optimizer: %v", err)
	}
}
