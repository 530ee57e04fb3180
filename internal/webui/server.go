package webui

import (
	"embed"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/L1nMay/rangeprobe/internal/aggregate"
	"github.com/L1nMay/rangeprobe/internal/config"
	"github.com/L1nMay/rangeprobe/internal/logger"
	"github.com/L1nMay/rangeprobe/internal/model"
	"github.com/L1nMay/rangeprobe/internal/optimizer"
	"github.com/L1nMay/rangeprobe/internal/probe"
	"github.com/L1nMay/rangeprobe/internal/providers"
	"github.com/L1nMay/rangeprobe/internal/scan"
	"github.com/L1nMay/rangeprobe/internal/storage"
)

//go:embed assets/*
var assetsFS embed.FS

// Deps are the components the HTTP surface fronts. Optimizer may be nil.
type Deps struct {
	Store     storage.AggregationStore
	Runner    *scan.Runner
	Prober    *probe.Prober
	Catalog   *providers.Catalog
	Optimizer *optimizer.Optimizer
	Checker   *aggregate.Checker
}

type Server struct {
	cfg *config.Config
	Deps
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	return &Server{cfg: cfg, Deps: deps}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// ---------- Static ----------
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		b, err := assetsFS.ReadFile("assets/index.html")
		if err != nil {
			http.Error(w, "index not found", 500)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(b)
	})

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{
			"ok": true,
			"ts": time.Now().UTC(),
		})
	})
	mux.HandleFunc("GET /api/status", s.handleStatus)

	// ---------- Providers ----------
	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("GET /api/providers/{id}", s.handleProviderRanges)
	mux.HandleFunc("GET /api/check-ip", s.handleCheckIP)
	mux.HandleFunc("GET /api/lookup", s.handleLookup)
	mux.HandleFunc("GET /api/optimal-ips", s.handleOptimalIPs)

	// ---------- Scanning ----------
	mux.HandleFunc("GET /api/scan-ip", s.handleScanIP)
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("GET /api/scan/results", s.handleScanResults)
	mux.HandleFunc("GET /api/scan/stream", s.handleScanStream)
	mux.HandleFunc("POST /api/scan/cancel", func(w http.ResponseWriter, r *http.Request) {
		ok := s.Runner.CancelRunning()
		writeJSON(w, 200, map[string]any{"cancelled": ok})
	})

	// ---------- Aggregation ----------
	mux.HandleFunc("GET /api/check-interface", s.handleCheckInterface)
	mux.HandleFunc("POST /api/aggregate/save", s.handleAggregateSave)
	mux.HandleFunc("GET /api/config/{id}", s.handleConfig)

	return withCORS(withLogging(mux))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Catalog.Status()
	resp := map[string]any{
		"status":         "online",
		"providersCount": st.Providers,
		"lastUpdate":     timeOrLabel(st.LastUpdate, "never"),
		"nextUpdate":     timeOrLabel(st.NextUpdate, "pending"),
		"stale":          st.Stale,
		"scanRunning":    s.Runner.IsRunning(),
	}
	if st.LastError != "" {
		resp["lastError"] = st.LastError
	}
	if s.Optimizer != nil {
		snap := s.Optimizer.Snapshot()
		resp["lastOptimization"] = timeOrLabel(snap.LastRun, "never")
		resp["optimalIPsCount"] = snap.Total
	}
	writeJSON(w, 200, resp)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Catalog.Providers(r.Context())
	if err != nil {
		logger.Errorf("providers: %v", err)
		http.Error(w, "failed to fetch providers", http.StatusBadGateway)
		return
	}
	writeJSON(w, 200, ids)
}

func (s *Server) handleProviderRanges(w http.ResponseWriter, r *http.Request) {
	text, err := s.Catalog.Ranges(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, providers.ErrInvalidProvider):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, providers.ErrNotFound):
		http.Error(w, "provider not found", http.StatusNotFound)
		return
	case err != nil:
		logger.Errorf("provider ranges: %v", err)
		http.Error(w, "failed to fetch provider ranges", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleCheckIP(w http.ResponseWriter, r *http.Request) {
	text, updated, err := s.Catalog.Merged(r.Context())
	if err != nil {
		logger.Errorf("merged ranges: %v", err)
		http.Error(w, "failed to fetch IP ranges", http.StatusBadGateway)
		return
	}
	resp := map[string]any{"data": text}
	if !updated.IsZero() {
		resp["lastUpdate"] = updated
	}
	writeJSON(w, 200, resp)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ip")
	if raw == "" {
		http.Error(w, "ip is required", http.StatusBadRequest)
		return
	}
	ip, err := netip.ParseAddr(raw)
	if err != nil {
		http.Error(w, "invalid ip", http.StatusBadRequest)
		return
	}

	text, _, err := s.Catalog.Merged(r.Context())
	if err != nil {
		logger.Errorf("merged ranges: %v", err)
		http.Error(w, "failed to fetch IP ranges", http.StatusBadGateway)
		return
	}
	matches := providers.Lookup(ip, text)
	if matches == nil {
		matches = []providers.Match{}
	}
	writeJSON(w, 200, map[string]any{"ip": ip.String(), "matches": matches})
}

func (s *Server) handleOptimalIPs(w http.ResponseWriter, r *http.Request) {
	var snap optimizer.Snapshot
	if s.Optimizer != nil {
		snap = s.Optimizer.Snapshot()
	}
	if snap.IPs == nil {
		snap.IPs = []model.OptimalIP{}
	}
	writeJSON(w, 200, snap)
}

func (s *Server) handleScanIP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("ip")
	if raw == "" {
		http.Error(w, "ip is required", http.StatusBadRequest)
		return
	}
	ip, err := netip.ParseAddr(raw)
	if err != nil {
		http.Error(w, "invalid ip", http.StatusBadRequest)
		return
	}

	ports := s.Prober.Ports()
	if p := q.Get("port"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || !probe.ValidPort(port) {
			http.Error(w, "invalid port", http.StatusBadRequest)
			return
		}
		ports = []int{port}
	}

	writeJSON(w, 200, s.Prober.ProbePorts(r.Context(), ip.Unmap().String(), ports))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scan.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := s.Runner.Start(r.Context(), req)
	switch {
	case errors.Is(err, scan.ErrAlreadyRunning):
		http.Error(w, "scan already running", http.StatusConflict)
		return
	case errors.Is(err, scan.ErrNothingToScan):
		writeJSON(w, 200, map[string]any{"status": "empty"})
		return
	case errors.Is(err, scan.ErrInvalidPort), errors.Is(err, scan.ErrUnknownProfile),
		errors.Is(err, providers.ErrInvalidProvider):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, providers.ErrNotFound):
		http.Error(w, "provider not found", http.StatusNotFound)
		return
	case err != nil:
		logger.Errorf("scan start: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, 200, map[string]any{
		"status": "started",
		"id":     sess.ID,
		"total":  sess.Total,
	})
}

func (s *Server) handleScanResults(w http.ResponseWriter, r *http.Request) {
	cur := s.Runner.Current()
	if cur == nil {
		writeJSON(w, 200, scan.Snapshot{State: scan.StateIdle, Results: []model.ProbeResult{}})
		return
	}
	snap := cur.Snapshot()
	if snap.Results == nil {
		snap.Results = []model.ProbeResult{}
	}
	writeJSON(w, 200, snap)
}

// handleScanStream ends the stream when the client falls behind; clients
// reconnect and reload /api/scan/results.
func (s *Server) handleScanStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", 500)
		return
	}

	ch := s.Runner.HubSubscribe()
	defer s.Runner.HubUnsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case b, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(b)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func (s *Server) handleCheckInterface(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	if !aggregate.ValidURL(target) {
		http.Error(w, "url must be absolute http(s)", http.StatusBadRequest)
		return
	}
	writeJSON(w, 200, s.Checker.Check(r.Context(), target))
}

func (s *Server) handleAggregateSave(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Aggregate.MaxBodyBytes))

	var body struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.Content) == 0 || string(body.Content) == "null" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	id, err := s.Store.SaveAggregation(body.Content)
	if err != nil {
		logger.Errorf("save aggregation: %v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, map[string]any{"id": id})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	content, ok, err := s.Store.GetAggregation(r.PathValue("id"))
	if err != nil {
		logger.Errorf("get aggregation: %v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	if !ok {
		http.Error(w, "config not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(content)
}

func timeOrLabel(t *time.Time, label string) any {
	if t == nil {
		return label
	}
	return t.Format(time.RFC3339)
}

// ---------- Middleware ----------
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debugf("webui %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
