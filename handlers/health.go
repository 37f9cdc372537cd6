package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"multigateway-api/utils"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks    map[string]Check
	startTime time.Time
	timeout   time.Duration
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	if checks == nil {
		checks = map[string]Check{}
	}
	return &HealthHandler{
		checks:    checks,
		startTime: time.Now(),
		timeout:   500 * time.Millisecond,
	}
}

type healthResponse struct {
	Status       string            `json:"status"`
	Time         string            `json:"time"`
	Dependencies map[string]string `json:"dependencies"`
	Uptime       string            `json:"uptime"`
	GoVersion    string            `json:"go_version"`
}

// Health reports ok, or degraded with 503 when any dependency fails.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := healthResponse{
		Status:       "ok",
		Time:         time.Now().Format(time.RFC3339),
		Dependencies: make(map[string]string, len(h.checks)),
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			health.Status = "degraded"
			health.Dependencies[name] = "error"
			continue
		}
		health.Dependencies[name] = "connected"
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	utils.SendJSON(w, status, health)
}
