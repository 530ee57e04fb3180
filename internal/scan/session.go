package scan

import (
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/L1nMay/rangeprobe/internal/model"
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateStopped   State = "stopped"
	StateCompleted State = "completed"
)

func (s State) Terminal() bool {
	return s == StateStopped || s == StateCompleted
}

// Session is one orchestrated pass over a candidate set.
// idle -> running -> stopped | completed; no other transitions.
type Session struct {
	ID      string
	Total   int
	results *ResultSet

	mu         sync.Mutex
	state      State
	probed     int
	startedAt  time.Time
	finishedAt time.Time
}

func NewSession(total int, includeOffline bool) *Session {
	return &Session{
		ID:      xid.New().String(),
		Total:   total,
		results: NewResultSet(includeOffline),
		state:   StateIdle,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Probed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probed
}

func (s *Session) Results() *ResultSet {
	return s.results
}

func (s *Session) start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return false
	}
	s.state = StateRunning
	s.startedAt = time.Now().UTC()
	return true
}

func (s *Session) finish(cancelled bool) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return s.state
	}
	s.state = StateCompleted
	if cancelled {
		s.state = StateStopped
	}
	s.finishedAt = time.Now().UTC()
	return s.state
}

func (s *Session) record(r model.ProbeResult) int {
	s.results.Add(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probed++
	return s.probed
}

type Snapshot struct {
	ID         string              `json:"id"`
	State      State               `json:"state"`
	StartedAt  *time.Time          `json:"startedAt,omitempty"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
	Total      int                 `json:"total"`
	Probed     int                 `json:"probed"`
	Online     int                 `json:"online"`
	Offline    int                 `json:"offline"`
	Results    []model.ProbeResult `json:"results"`
}

func (s *Session) Snapshot() Snapshot {
	online, offline := s.results.Counts()
	snap := Snapshot{
		ID:      s.ID,
		Total:   s.Total,
		Online:  online,
		Offline: offline,
		Results: s.results.All(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap.State = s.state
	snap.Probed = s.probed
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	if !s.finishedAt.IsZero() {
		t := s.finishedAt
		snap.FinishedAt = &t
	}
	return snap
}
