package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const maxRecentSkips = 20

// HealthChecker tracks how far a run has progressed
type HealthChecker struct {
	mu        sync.RWMutex
	startedAt time.Time
	steps     int
	lastStep  time.Time
	lastFill  time.Time
	finished  bool
	failure   string
	skips     []string
}

type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Steps       int       `json:"steps"`
	SimTime     time.Time `json:"sim_time"`
	LastFill    time.Time `json:"last_fill"`
	Uptime      string    `json:"uptime"`
	Failure     string    `json:"failure,omitempty"`
	RecentSkips []string  `json:"recent_skips,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		startedAt: time.Now(),
		skips:     make([]string, 0),
	}
}

// RecordStep marks simulation step idx at simulated time ts as done
func (h *HealthChecker) RecordStep(idx int, ts time.Time) {
	h.mu.Lock()
	h.steps = idx + 1
	h.lastStep = ts
	h.mu.Unlock()
}

// RecordFill notes the simulated time of the latest fill
func (h *HealthChecker) RecordFill(ts time.Time) {
	h.mu.Lock()
	h.lastFill = ts
	h.mu.Unlock()
}

// RecordSkip keeps the most recent skipped entries
func (h *HealthChecker) RecordSkip(symbol string, barIndex int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.skips = append(h.skips, fmt.Sprintf("%s@%d: %v", symbol, barIndex, err))
	if len(h.skips) > maxRecentSkips {
		h.skips = h.skips[len(h.skips)-maxRecentSkips:]
	}
}

// Finish marks the run done; a non-nil err marks it failed
func (h *HealthChecker) Finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = true
	if err != nil {
		h.failure = err.Error()
	}
}

// Status returns a snapshot of the run
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "running"
	switch {
	case h.failure != "":
		status = "failed"
	case h.finished:
		status = "finished"
	}
	return HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		Steps:       h.steps,
		SimTime:     h.lastStep,
		LastFill:    h.lastFill,
		Uptime:      time.Since(h.startedAt).String(),
		Failure:     h.failure,
		RecentSkips: append([]string(nil), h.skips...),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "failed" {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(health)
}
