package scan

import (
	"sort"
	"sync"

	"github.com/L1nMay/rangeprobe/internal/model"
)

// ResultSet accumulates probe results from concurrent workers. Online
// results stay ordered by ascending latency after every Add; ties keep
// arrival order. Offline results are either kept in arrival order or only
// counted.
type ResultSet struct {
	mu           sync.Mutex
	online       []model.ProbeResult
	offline      []model.ProbeResult
	offlineCount int
	keepOffline  bool
}

func NewResultSet(includeOffline bool) *ResultSet {
	return &ResultSet{keepOffline: includeOffline}
}

func (s *ResultSet) Add(r model.ProbeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !r.IsOnline() {
		s.offlineCount++
		if s.keepOffline {
			s.offline = append(s.offline, r)
		}
		return
	}

	lat := r.Latency()
	i := sort.Search(len(s.online), func(i int) bool {
		return s.online[i].Latency() > lat
	})
	s.online = append(s.online, model.ProbeResult{})
	copy(s.online[i+1:], s.online[i:])
	s.online[i] = r
}

func (s *ResultSet) Online() []model.ProbeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ProbeResult(nil), s.online...)
}

func (s *ResultSet) Offline() []model.ProbeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ProbeResult(nil), s.offline...)
}

// All returns the online results followed by the kept offline ones.
func (s *ResultSet) All() []model.ProbeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ProbeResult, 0, len(s.online)+len(s.offline))
	out = append(out, s.online...)
	return append(out, s.offline...)
}

func (s *ResultSet) Counts() (online, offline int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.online), s.offlineCount
}

func (s *ResultSet) IncludesOffline() bool {
	return s.keepOffline
}
