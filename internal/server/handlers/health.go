// Package handlers implements the HTTP API: health probes, dataset
// upload and inspection, cell edits, AI proposals, and export.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/gridwright/gridwright/internal/errors"
	"github.com/gridwright/gridwright/internal/observability"
)

const checkTimeout = 5 * time.Second

// HealthChecker reports the health of one dependency.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthResponse is the body of a successful health probe.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthManager runs registered checkers and serves the probe endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	version  string
	checkers map[string]HealthChecker
	started  time.Time
}

// NewHealthManager creates a manager reporting the given version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		checkers: make(map[string]HealthChecker),
		started:  time.Now(),
	}
}

// RegisterChecker adds a named dependency check.
func (m *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	checkers := make(map[string]HealthChecker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()

	results := make(map[string]string, len(checkers))
	for name, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checker.CheckHealth(checkCtx)
		cancel()

		switch {
		case err == nil:
			results[name] = "healthy"
		case checkCtx.Err() == context.DeadlineExceeded:
			results[name] = "timeout"
		default:
			results[name] = "unhealthy"
			observability.ServerLogger.Warn("health check failed",
				zap.String("check", name), zap.Error(err))
		}
	}
	return results
}

// determineOverallStatus folds per-check results into one status.
// Timeouts degrade rather than fail so a slow dependency does not flap
// the whole service out of rotation.
func (m *HealthManager) determineOverallStatus(checks map[string]string) string {
	status := "healthy"
	for _, result := range checks {
		switch result {
		case "unhealthy":
			return "unhealthy"
		case "timeout":
			status = "degraded"
		}
	}
	return status
}

// HealthHandler serves GET /health with check details.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks := m.runChecks(r.Context())
	status := m.determineOverallStatus(checks)

	if status == "unhealthy" {
		details := map[string]any{"checks": checks}
		envelope, _ := apperrors.NewErrorEnvelope(
			apperrors.CodeServiceUnavailable,
			"one or more health checks failed",
		).WithContext(details)
		envelope.WriteJSON(w, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  status,
		Version: m.version,
		Checks:  checks,
	})
}

// LivenessHandler serves GET /health/live. The process answering at all
// means it is live.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: m.version})
}

// ReadinessHandler serves GET /health/ready. Readiness runs the full
// check set since traffic should not route to a degraded dependency.
func (m *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	m.HealthHandler(w, r)
}

// StartupHandler serves GET /health/startup.
func (m *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: m.version})
}

var globalHealthManager *HealthManager

// InitHealthManager installs the process-wide health manager.
func InitHealthManager(version string) *HealthManager {
	globalHealthManager = NewHealthManager(version)
	return globalHealthManager
}

// GetHealthManager returns the installed manager, or nil before init.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

// HealthHandler serves /health via the global manager.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		writeUninitialized(w)
		return
	}
	globalHealthManager.HealthHandler(w, r)
}

// LivenessHandler serves /health/live via the global manager.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		writeUninitialized(w)
		return
	}
	globalHealthManager.LivenessHandler(w, r)
}

// ReadinessHandler serves /health/ready via the global manager.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		writeUninitialized(w)
		return
	}
	globalHealthManager.ReadinessHandler(w, r)
}

// StartupHandler serves /health/startup via the global manager.
func StartupHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		writeUninitialized(w)
		return
	}
	globalHealthManager.StartupHandler(w, r)
}

func writeUninitialized(w http.ResponseWriter) {
	apperrors.NewErrorEnvelope(
		apperrors.CodeServiceUnavailable,
		"health manager not initialized",
	).WriteJSON(w, http.StatusServiceUnavailable)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
