package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthHandler handles GET /health — liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HealthDependenciesHandler handles GET /health/ready — readiness probe.
// Checks the portal database, the realm database, and the session store
// before declaring the gateway ready to resolve identities.
type HealthDependenciesHandler struct {
	portal *mongo.Database
	realm  *mongo.Database
	redis  *redis.Client
}

func NewHealthDependenciesHandler(portal, realm *mongo.Database, rdb *redis.Client) *HealthDependenciesHandler {
	return &HealthDependenciesHandler{
		portal: portal,
		realm:  realm,
		redis:  rdb,
	}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

func (h *HealthDependenciesHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus)
	healthy := true

	// --- Portal database ping ---
	if err := h.portal.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		deps["portal_db"] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
		healthy = false
	} else {
		deps["portal_db"] = dependencyStatus{Status: "ok"}
	}

	// --- Realm database ping ---
	if err := h.realm.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		deps["realm_db"] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
		healthy = false
	} else {
		deps["realm_db"] = dependencyStatus{Status: "ok"}
	}

	// --- Session store ping ---
	if _, err := h.redis.Ping(ctx).Result(); err != nil {
		deps["session_store"] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
		healthy = false
	} else {
		deps["session_store"] = dependencyStatus{Status: "ok"}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
