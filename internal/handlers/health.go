package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/storefront/customizer/internal/domain"
	"github.com/storefront/customizer/internal/platform/requestctx"
	"github.com/storefront/customizer/internal/repositories"
)

// BuildInfo identifies the running binary in health payloads.
type BuildInfo struct {
	Version   string
	CommitSHA string
	StartedAt time.Time
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	health repositories.HealthRepository
	build  BuildInfo
	now    func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthRepository sets the dependency prober used by /readyz.
func WithHealthRepository(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) {
		h.health = repo
	}
}

// WithHealthBuildInfo sets the version metadata reported by /healthz.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock overrides the clock used for uptime and timestamps.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.now = clock
		}
	}
}

// NewHealthHandlers constructs health handlers. Without a repository /readyz reports ok.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.now()
	}
	return h
}

type healthzResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	CommitSHA string `json:"commitSha,omitempty"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

type readyzCheck struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readyzResponse struct {
	Status      string                 `json:"status"`
	Checks      map[string]readyzCheck `json:"checks"`
	Details     []string               `json:"details,omitempty"`
	GeneratedAt string                 `json:"generatedAt"`
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	writeJSONResponse(w, http.StatusOK, healthzResponse{
		Status:    domain.HealthStatusOK,
		Version:   h.build.Version,
		CommitSHA: h.build.CommitSHA,
		Uptime:    now.Sub(h.build.StartedAt).Round(time.Second).String(),
		Timestamp: now.Format(time.RFC3339),
	})
}

// Readyz probes dependencies and answers 503 unless every check is ok.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now().UTC()

	if h.health == nil {
		writeJSONResponse(w, http.StatusOK, readyzResponse{
			Status:      domain.HealthStatusOK,
			Checks:      map[string]readyzCheck{},
			GeneratedAt: now.Format(time.RFC3339),
		})
		return
	}

	report, err := h.health.Collect(ctx)
	if err != nil {
		requestctx.Logger(ctx).Error("readiness collection failed", zap.Error(err))
		writeJSONResponse(w, http.StatusServiceUnavailable, readyzResponse{
			Status:      domain.HealthStatusError,
			Checks:      map[string]readyzCheck{},
			Details:     []string{err.Error()},
			GeneratedAt: now.Format(time.RFC3339),
		})
		return
	}

	resp := readyzResponse{
		Status:      report.Status,
		Checks:      make(map[string]readyzCheck, len(report.Checks)),
		GeneratedAt: formatTime(report.GeneratedAt, now),
	}
	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := report.Checks[name]
		resp.Checks[name] = readyzCheck{
			Status:    check.Status,
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
			CheckedAt: formatTime(check.CheckedAt, time.Time{}),
		}
		if check.Status != domain.HealthStatusOK {
			reason := strings.TrimSpace(check.Error)
			if reason == "" {
				reason = check.Detail
			}
			resp.Details = append(resp.Details, fmt.Sprintf("%s: %s", name, reason))
		}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, resp)
}

func formatTime(t time.Time, fallback time.Time) string {
	if t.IsZero() {
		t = fallback
	}
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
