package model

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// ProbeResult is the outcome of one liveness probe. Online results always
// carry a latency, offline results never do.
type ProbeResult struct {
	IP        string `json:"ip"`
	Status    Status `json:"status"`
	LatencyMs *int64 `json:"latency"`
	Port      int    `json:"port,omitempty"`
}

func Online(ip string, port int, latency time.Duration) ProbeResult {
	ms := latency.Milliseconds()
	return ProbeResult{IP: ip, Status: StatusOnline, LatencyMs: &ms, Port: port}
}

func Offline(ip string) ProbeResult {
	return ProbeResult{IP: ip, Status: StatusOffline}
}

func (r ProbeResult) IsOnline() bool {
	return r.Status == StatusOnline
}

// Latency returns the latency in milliseconds, or -1 for offline results.
func (r ProbeResult) Latency() int64 {
	if r.LatencyMs == nil {
		return -1
	}
	return *r.LatencyMs
}

// OptimalIP is one entry of the background latency ranking.
type OptimalIP struct {
	IP       string `json:"ip"`
	Latency  int64  `json:"latency"`
	Provider string `json:"provider"`
}

// InterfaceStatus describes a fetched third-party interface configuration URL.
type InterfaceStatus struct {
	Status     Status          `json:"status"`
	StatusCode int             `json:"statusCode,omitempty"`
	IsJSON     bool            `json:"isJson"`
	HasSites   bool            `json:"hasSites"`
	Content    json.RawMessage `json:"content,omitempty"`
	Size       int             `json:"size,omitempty"`
	Error      string          `json:"error,omitempty"`
}
