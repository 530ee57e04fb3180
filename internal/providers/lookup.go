package providers

import (
	"net/netip"
	"strings"
)

const providerHeader = "# Provider:"

type Match struct {
	Provider string `json:"provider"`
	Network  string `json:"network"`
}

// Lookup returns every network in the merged ranges text that contains ip.
// Networks listed before the first provider header are ignored.
func Lookup(ip netip.Addr, text string) []Match {
	ip = ip.Unmap()
	var (
		matches  []Match
		provider string
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if name, ok := strings.CutPrefix(line, providerHeader); ok {
			provider = strings.TrimSpace(name)
			continue
		}
		if provider == "" || !strings.Contains(line, "/") {
			continue
		}
		prefix, err := netip.ParsePrefix(line)
		if err != nil {
			continue
		}
		if prefix.Contains(ip) {
			matches = append(matches, Match{Provider: provider, Network: line})
		}
	}
	return matches
}

// CIDRs returns the non-comment lines of a provider range file.
func CIDRs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
