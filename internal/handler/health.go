package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness and, for readiness, the state of MySQL
// and Redis.
type HealthHandler struct {
	env string
	db  *sql.DB
	rdb *redis.Client
	now func() time.Time
}

func NewHealthHandler(env string, db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{env: env, db: db, rdb: rdb, now: time.Now}
}

type healthResp struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	Timestamp   string            `json:"timestamp"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// Health: GET /health. Liveness only; touches no dependency.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResp{
		Success:     true,
		Message:     "Cafe Backend API is running",
		Timestamp:   h.now().UTC().Format(time.RFC3339Nano),
		Environment: h.env,
	})
}

// Ready: GET /health/ready. MySQL is required; Redis is optional and only
// reported.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"mysql": "up", "redis": "disabled"}
	status := http.StatusOK
	if h.db == nil || h.db.PingContext(ctx) != nil {
		checks["mysql"] = "down"
		status = http.StatusServiceUnavailable
	}
	if h.rdb != nil {
		checks["redis"] = "up"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
		}
	}

	msg := "Cafe Backend API is ready"
	if status != http.StatusOK {
		msg = "Cafe Backend API is not ready"
	}
	return c.JSON(status, healthResp{
		Success:     status == http.StatusOK,
		Message:     msg,
		Timestamp:   h.now().UTC().Format(time.RFC3339Nano),
		Environment: h.env,
		Checks:      checks,
	})
}
