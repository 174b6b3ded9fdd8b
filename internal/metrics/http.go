package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Monitor holds the most recent run summary for the monitoring endpoints.
type Monitor struct {
	mu   sync.RWMutex
	last *Summary
}

func NewMonitor() *Monitor { return &Monitor{} }

func (m *Monitor) Record(s Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &s
}

// Last returns the latest summary, if any run has finished.
func (m *Monitor) Last() (Summary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Summary{}, false
	}
	return *m.last, true
}

// Handler serves /health and /metrics.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", m.healthHandler)
	mux.HandleFunc("/metrics", m.metricsHandler)
	return mux
}

func (m *Monitor) healthHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := m.Last()

	status := "ok"
	response := map[string]interface{}{}
	switch {
	case !ok:
		status = "starting"
	case !s.RunSuccess:
		status = "error"
	}
	if ok {
		response["last_run"] = s.FinishedAt.Format(time.RFC3339)
		response["last_error"] = s.RunError
		response["run_id"] = s.RunID
	}
	response["status"] = status

	w.Header().Set("Content-Type", "application/json")
	if status == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}

func (m *Monitor) metricsHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := m.Last()
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_ = json.NewEncoder(w).Encode(s)
}
