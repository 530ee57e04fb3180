package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/L1nMay/rangeprobe/internal/model"
)

var (
	DefaultPorts = []int{80, 443, 22, 445}
	// CDNPorts are the HTTP/HTTPS ports fronted by the large CDNs.
	CDNPorts = []int{80, 8080, 8880, 2052, 2082, 2086, 2095, 443, 2053, 2083, 2087, 2096, 8443}
)

const DefaultTimeout = 1500 * time.Millisecond

// Dialer is the reachability primitive. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Options struct {
	Ports   []int
	Timeout time.Duration
	Dialer  Dialer
}

type Prober struct {
	ports   []int
	timeout time.Duration
	dialer  Dialer
}

func New(opts Options) *Prober {
	p := &Prober{ports: opts.Ports, timeout: opts.Timeout, dialer: opts.Dialer}
	if len(p.ports) == 0 {
		p.ports = DefaultPorts
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.dialer == nil {
		p.dialer = &net.Dialer{}
	}
	return p
}

func (p *Prober) Ports() []int {
	return append([]int(nil), p.ports...)
}

func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// Probe checks ip against the configured port list.
func (p *Prober) Probe(ctx context.Context, ip string) model.ProbeResult {
	return p.ProbePorts(ctx, ip, p.ports)
}

// ProbePorts tries ports one after another and reports the first that
// accepts a TCP connection. Every failure mode ends up as an offline result.
func (p *Prober) ProbePorts(ctx context.Context, ip string, ports []int) model.ProbeResult {
	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}
		if latency, ok := p.dial(ctx, ip, port); ok {
			return model.Online(ip, port, latency)
		}
	}
	return model.Offline(ip)
}

func (p *Prober) dial(ctx context.Context, ip string, port int) (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return 0, false
	}
	latency := time.Since(start)
	_ = conn.Close()
	return latency, true
}

// ValidPort reports whether port is usable as a single-port override.
func ValidPort(port int) bool {
	return port > 0 && port <= 65535
}
