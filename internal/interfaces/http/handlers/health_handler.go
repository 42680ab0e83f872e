package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/pushgate/pkg/logger"
)

// HealthCheckFunc probes one dependency.
type HealthCheckFunc func(ctx context.Context) error

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checks  map[string]HealthCheckFunc
	timeout time.Duration
	log     logger.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checks map[string]HealthCheckFunc, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 3 * time.Second,
		log:     log.WithComponent("health"),
	}
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Checks the health of the service and its dependencies.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := "healthy"
	checks := h.performChecks(c.Request.Context())

	httpStatus := http.StatusOK
	for name, checkStatus := range checks {
		if checkStatus != "ok" {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			h.log.Warn(c.Request.Context(), "health check failed", logger.String("check", name), logger.String("status", checkStatus))
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// LivenessCheck answers as long as the process serves requests.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (h *HealthHandler) performChecks(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var wg sync.WaitGroup
	checks := make(map[string]string, len(h.checks))
	mu := &sync.Mutex{}

	wg.Add(len(h.checks))
	for name, check := range h.checks {
		go func(name string, f HealthCheckFunc) {
			defer wg.Done()
			status := "ok"
			if err := f(ctx); err != nil {
				status = "error: " + err.Error()
			}
			mu.Lock()
			checks[name] = status
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	return checks
}
