package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"bucketstream/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	subscribers func() int
	checks      map[string]HealthCheck
}

// NewHealthHandler reports subscriber counts from subscribers. Failing checks
// mark the service degraded; only the "store" check makes it unhealthy.
func NewHealthHandler(subscribers func() int, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{subscribers: subscribers, checks: checks}
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ServiceInfoResponse{
		Message: "S3 Event Stream",
		Version: Version,
		Endpoints: map[string]string{
			"webhook":   "/webhook/lambda",
			"websocket": "/ws",
			"events":    "/events",
			"download":  "/s3/download",
			"presign":   "/s3/presigned-url/{key}",
			"files":     "/files",
			"health":    "/health",
			"metrics":   "/metrics",
		},
	}))
}

func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			if name == "store" {
				status = "unhealthy"
			} else if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		results[name] = "ok"
	}

	resp := httpdto.HealthResponse{
		Status:                     status,
		Timestamp:                  time.Now().UTC(),
		ActiveWebsocketConnections: h.subscribers(),
		Checks:                     results,
	}
	if status == "unhealthy" {
		c.JSON(http.StatusServiceUnavailable, httpdto.Response[httpdto.HealthResponse]{
			Success: false,
			Data:    resp,
			Error:   "store unavailable",
			Code:    httpdto.CodeUnhealthy,
		})
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}
