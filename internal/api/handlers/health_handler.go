package handlers

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// HealthHandler handles health check HTTP requests
type HealthHandler struct {
	db          *gorm.DB
	storageRoot string
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *gorm.DB, storageRoot string) *HealthHandler {
	return &HealthHandler{db: db, storageRoot: storageRoot}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	services := map[string]string{
		"database": "healthy",
		"storage":  "healthy",
	}
	status := "healthy"

	if h.checkDatabase() != "" {
		services["database"] = "unhealthy"
		status = "unhealthy"
	}

	if h.checkStorage() != "" {
		services["storage"] = "unhealthy"
		status = "unhealthy"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, HealthResponse{
		Status:   status,
		Services: services,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c echo.Context) error {
	for _, check := range []func() string{h.checkDatabase, h.checkStorage} {
		if reason := check(); reason != "" {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": reason,
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// checkDatabase returns a failure reason, or "" when the database answers
func (h *HealthHandler) checkDatabase() string {
	sqlDB, err := h.db.DB()
	if err != nil {
		return "database connection failed"
	}
	if err := sqlDB.Ping(); err != nil {
		return "database ping failed"
	}
	return ""
}

// checkStorage returns a failure reason, or "" when the storage root is a directory
func (h *HealthHandler) checkStorage() string {
	info, err := os.Stat(h.storageRoot)
	if err != nil || !info.IsDir() {
		return "storage root unavailable"
	}
	return ""
}
