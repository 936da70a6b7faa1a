package api

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	redis     *redis.Client
	upstreams map[string]string
	client    *http.Client
	env       string
	version   string
}

func NewHealthHandler(rdb *redis.Client, upstreams map[string]string, env, version string) *HealthHandler {
	return &HealthHandler{
		redis:     rdb,
		upstreams: upstreams,
		client:    &http.Client{Timeout: time.Second},
		env:       env,
		version:   version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Readiness pings Redis and each upstream service. Redis being down degrades
// but does not fail readiness: the gateway still serves reads, only the
// session verification state is unavailable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	redisCtx, redisCancel := context.WithTimeout(ctx, time.Second)
	err := h.redis.Ping(redisCtx).Err()
	redisCancel()
	if err != nil {
		deps["redis"] = "down"
		status = "degraded"
	} else {
		deps["redis"] = "ok"
	}

	for name, base := range h.upstreams {
		if h.pingUpstream(ctx, base) {
			deps[name] = "ok"
		} else {
			deps[name] = "down"
			status = "error"
		}
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}

func (h *HealthHandler) pingUpstream(ctx context.Context, base string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
