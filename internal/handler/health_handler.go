package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teerapat-ch/eventhub/pkg/database"
	pkgredis "github.com/teerapat-ch/eventhub/pkg/redis"
)

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	db    *database.PostgresDB
	redis *pkgredis.Client
}

// NewHealthHandler creates a new health handler. Either dependency may be
// nil when the corresponding backend is not configured.
func NewHealthHandler(db *database.PostgresDB, redis *pkgredis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready; it fails when a configured backend is down
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	checks := gin.H{}
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": healthy, "checks": checks})
}

// Pool handles GET /debug/pool
func (h *HealthHandler) Pool(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	stats := h.db.Stats()
	c.JSON(http.StatusOK, gin.H{
		"db_pool": gin.H{
			"total_conns":        stats.TotalConns(),
			"acquired_conns":     stats.AcquiredConns(),
			"idle_conns":         stats.IdleConns(),
			"max_conns":          stats.MaxConns(),
			"constructing_conns": stats.ConstructingConns(),
		},
	})
}
