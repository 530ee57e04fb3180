package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/projectdiscovery/gcache"

	"github.com/L1nMay/rangeprobe/internal/logger"
)

// Source is where the catalog loads data from. *Client implements it.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Range(ctx context.Context, id string) (string, error)
	Merged(ctx context.Context) (string, error)
}

// Catalog owns the provider list and the merged range text. Data is
// replaced only by a successful Refresh; a failed refresh keeps serving the
// previous data and marks it stale. Per-provider range files live in an LRU
// that expires after one refresh interval.
type Catalog struct {
	src      Source
	interval time.Duration
	ranges   gcache.Cache[string, string]

	mu         sync.RWMutex
	providers  []string
	merged     string
	lastUpdate time.Time
	lastErr    error
	failed     bool
}

func NewCatalog(src Source, interval time.Duration, cacheSize int) *Catalog {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Catalog{
		src:      src,
		interval: interval,
		ranges: gcache.New[string, string](cacheSize).
			LRU().
			Expiration(interval).
			Build(),
	}
}

// Refresh reloads the provider list and merged ranges together.
func (c *Catalog) Refresh(ctx context.Context) error {
	providers, err := c.src.List(ctx)
	if err == nil {
		var merged string
		merged, err = c.src.Merged(ctx)
		if err == nil {
			c.mu.Lock()
			c.providers = providers
			c.merged = merged
			c.lastUpdate = time.Now().UTC()
			c.lastErr = nil
			c.failed = false
			c.mu.Unlock()
			logger.Infof("provider catalog refreshed: %d providers", len(providers))
			return nil
		}
	}

	c.mu.Lock()
	c.lastErr = err
	c.failed = true
	c.mu.Unlock()
	logger.Warnf("provider catalog refresh failed, serving cached data: %v", err)
	return fmt.Errorf("refresh provider catalog: %w", err)
}

// Providers returns the cached list, fetching it once if nothing was ever
// loaded.
func (c *Catalog) Providers(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	providers := c.providers
	c.mu.RUnlock()
	if len(providers) > 0 {
		return append([]string(nil), providers...), nil
	}

	providers, err := c.src.List(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if len(c.providers) == 0 {
		c.providers = providers
	}
	c.mu.Unlock()
	return append([]string(nil), providers...), nil
}

// Merged returns the merged range text and the time of the last successful
// refresh (zero when the text was fetched on demand).
func (c *Catalog) Merged(ctx context.Context) (string, time.Time, error) {
	c.mu.RLock()
	merged, updated := c.merged, c.lastUpdate
	c.mu.RUnlock()
	if merged != "" {
		return merged, updated, nil
	}

	merged, err := c.src.Merged(ctx)
	if err != nil {
		return "", time.Time{}, err
	}
	c.mu.Lock()
	if c.merged == "" {
		c.merged = merged
	}
	c.mu.Unlock()
	return merged, time.Time{}, nil
}

// Ranges returns the CIDR text for one provider.
func (c *Catalog) Ranges(ctx context.Context, id string) (string, error) {
	if !ValidID(id) {
		return "", ErrInvalidProvider
	}
	if text, err := c.ranges.Get(id); err == nil {
		return text, nil
	}

	text, err := c.src.Range(ctx, id)
	if err != nil {
		return "", err
	}
	_ = c.ranges.Set(id, text)
	return text, nil
}

type Status struct {
	Providers  int        `json:"providersCount"`
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
	NextUpdate *time.Time `json:"nextUpdate,omitempty"`
	Stale      bool       `json:"stale"`
	LastError  string     `json:"lastError,omitempty"`
}

// Status reports the catalog state. Data is stale after a failed refresh
// or once it is older than one interval.
func (c *Catalog) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{Providers: len(c.providers), Stale: c.failed}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if !c.lastUpdate.IsZero() {
		last := c.lastUpdate
		next := last.Add(c.interval)
		st.LastUpdate = &last
		st.NextUpdate = &next
		if time.Now().After(next) {
			st.Stale = true
		}
	}
	return st
}

// Run refreshes immediately and then on every interval until ctx is done.
// onRefresh, when set, runs after each successful refresh.
func (c *Catalog) Run(ctx context.Context, onRefresh func(context.Context)) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Refresh(ctx); err == nil && onRefresh != nil {
			onRefresh(ctx)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
