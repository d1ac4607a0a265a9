package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arbsim/ledgerd/internal/database"
)

// HealthResponse reports the overall service status and the status of each
// dependency.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db    HealthChecker
	redis *database.RedisClient
}

func NewHealthHandler(db HealthChecker, redis *database.RedisClient) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// HealthCheck reports dependency status; a degraded dependency flips the
// response to 503 so load balancers rotate the instance out.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := map[string]string{}
	healthy := true

	if h.db != nil && h.db.HealthCheck(ctx) == nil {
		services["database"] = "up"
	} else {
		services["database"] = "down"
		healthy = false
	}

	if h.redis == nil {
		services["redis"] = "disabled"
	} else if h.redis.HealthCheck(ctx) == nil {
		services["redis"] = "up"
	} else {
		services["redis"] = "down"
		healthy = false
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Services:  services,
	})
}

// LivenessCheck always succeeds while the process is running.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// ReadinessCheck succeeds once the database answers.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if h.db == nil || h.db.HealthCheck(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
