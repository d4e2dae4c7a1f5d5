package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Slot lock modes reported by Readiness.
const (
	lockModeRedis        = "redis"
	lockModeBypassed     = "bypassed"
	lockModeDatabaseOnly = "database_only"
)

// SlotLockStats is the part of the booking service the readiness probe reads.
type SlotLockStats interface {
	HasSlotLock() bool
	LockBypasses() int64
}

type HealthHandler struct {
	pgPool   *pgxpool.Pool
	redis    *redis.Client
	locks    SlotLockStats
	inMemory bool
	env      string
	version  string
}

func NewHealthHandler(cfg RouterConfig) *HealthHandler {
	h := &HealthHandler{
		pgPool:   cfg.PgPool,
		redis:    cfg.Redis,
		inMemory: cfg.InMemory,
		env:      cfg.Env,
		version:  cfg.Version,
	}
	if cfg.Service != nil {
		h.locks = cfg.Service
	}
	return h
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
	SlotLock     string            `json:"slot_lock"`
	LockBypasses int64             `json:"lock_bypasses"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness reports "error" when the appointment store is unreachable and
// "degraded" when only Redis is. slot_lock tells whether bookings currently
// take the Redis lock or rely on the live-slot index alone.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadinessResponse{
		Status:       "ok",
		Version:      h.version,
		Env:          h.env,
		Dependencies: map[string]string{"postgres": h.checkPostgres(ctx)},
	}
	switch resp.Dependencies["postgres"] {
	case "ok", "in_memory":
	default:
		resp.Status = "error"
	}

	redisState := h.checkRedis(ctx)
	resp.Dependencies["redis"] = redisState
	if redisState != "ok" && resp.Status == "ok" {
		resp.Status = "degraded"
	}

	resp.SlotLock = lockModeDatabaseOnly
	if h.locks != nil {
		resp.LockBypasses = h.locks.LockBypasses()
		if h.locks.HasSlotLock() {
			resp.SlotLock = lockModeRedis
			if redisState != "ok" {
				resp.SlotLock = lockModeBypassed
			}
		}
	}

	httpStatus := http.StatusOK
	if resp.Status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, resp)
}

func (h *HealthHandler) checkPostgres(ctx context.Context) string {
	if h.inMemory {
		return "in_memory"
	}
	if h.pgPool == nil {
		return "not_configured"
	}
	pgCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := h.pgPool.Ping(pgCtx); err != nil {
		return "down"
	}
	return "ok"
}

func (h *HealthHandler) checkRedis(ctx context.Context) string {
	if h.redis == nil {
		return "not_configured"
	}
	redisCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := h.redis.Ping(redisCtx).Err(); err != nil {
		return "down"
	}
	return "ok"
}
