// Package handler provides HTTP handlers for the console API.
package handler

import (
	"net/http"
	"time"

	"github.com/consentdesk/console/internal/api/models"
	"github.com/consentdesk/console/internal/api/response"
	"github.com/consentdesk/console/internal/resilience"
	"github.com/consentdesk/console/internal/view"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	views     []view.StatusReporter
}

// NewOpsHandler creates a new OpsHandler. registry may be nil when the
// console runs without a backend.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, views []view.StatusReporter) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		views:     views,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The console is
// ready once every view has loaded at least once or the backend breakers are
// all closed.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !h.viewsLoaded() && !h.backendHealthy() {
		response.ServiceUnavailable(w, r, "views have not loaded and the backend is unhealthy")
		return
	}
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

func (h *OpsHandler) viewsLoaded() bool {
	for _, v := range h.views {
		if !v.Status().Loaded {
			return false
		}
	}
	return true
}

func (h *OpsHandler) backendHealthy() bool {
	return h.registry == nil || h.registry.Healthy()
}

// SystemStatus handles GET /v1/ops/status - backend resource and view status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Resources: make([]models.ResourceStatus, 0),
		Views:     make([]view.Status, 0, len(h.views)),
	}

	if h.registry != nil {
		for _, rh := range h.registry.GetAllHealth() {
			rs := models.ResourceStatus{
				Resource:      rh.Name,
				Status:        resourceHealthStatus(rh),
				CircuitState:  rh.State,
				LastSuccessAt: models.NewTimestamp(rh.LastSuccessAt),
				LastFailureAt: models.NewTimestamp(rh.LastFailureAt),
			}
			if rh.LastError != "" {
				msg := rh.LastError
				rs.Message = &msg
			}
			status.Resources = append(status.Resources, rs)
			status.Status = worst(status.Status, rs.Status)
		}
	}

	for _, v := range h.views {
		vs := v.Status()
		status.Views = append(status.Views, vs)
		if vs.Error != "" {
			status.Status = worst(status.Status, models.HealthStatusDegraded)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func resourceHealthStatus(rh *resilience.ResourceHealth) models.HealthStatus {
	switch {
	case rh.IsUnhealthy():
		return models.HealthStatusFail
	case rh.IsDegraded():
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

var healthRank = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if healthRank[b] > healthRank[a] {
		return b
	}
	return a
}
