package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
	"github.com/timeplus-io/tp-monitor-engine/pkg/services"
)

// APIHandler handles HTTP API requests
type APIHandler struct {
	monitorService *services.MonitorService
	alertService   *services.AlertService
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(monitorService *services.MonitorService, alertService *services.AlertService) *APIHandler {
	return &APIHandler{
		monitorService: monitorService,
		alertService:   alertService,
	}
}

// RegisterRoutes attaches all API routes to the router.
func (h *APIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/monitors", h.GetMonitors).Methods(http.MethodGet)
	r.HandleFunc("/api/monitors", h.CreateMonitor).Methods(http.MethodPost)
	r.HandleFunc("/api/monitors/{id}", h.GetMonitor).Methods(http.MethodGet)
	r.HandleFunc("/api/monitors/{id}", h.UpdateMonitor).Methods(http.MethodPut)
	r.HandleFunc("/api/monitors/{id}", h.DeleteMonitor).Methods(http.MethodDelete)
	r.HandleFunc("/api/monitors/{id}/execute", h.ExecuteMonitor).Methods(http.MethodPost)
	r.HandleFunc("/api/monitors/{id}/alerts", h.GetAlerts).Methods(http.MethodGet)
	r.HandleFunc("/api/monitors/{id}/alerts/{alertId}/acknowledge", h.AcknowledgeAlert).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Error encoding response: %v", err)
	}
}

// GetMonitors returns all monitors
func (h *APIHandler) GetMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := h.monitorService.GetMonitors(r.Context())
	if err != nil {
		logrus.Errorf("Error getting monitors: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get monitors"})
		return
	}
	writeJSON(w, http.StatusOK, monitors)
}

// GetMonitor returns a monitor by ID
func (h *APIHandler) GetMonitor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	monitor, err := h.monitorService.GetMonitor(r.Context(), id)
	if err != nil {
		logrus.Errorf("Error getting monitor %s: %v", id, err)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Monitor with ID %s not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, monitor)
}

// CreateMonitor creates a new monitor
func (h *APIHandler) CreateMonitor(w http.ResponseWriter, r *http.Request) {
	var req models.MonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logrus.Errorf("Error decoding create monitor request: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
		return
	}
	monitor, err := req.ToMonitor(time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	created, err := h.monitorService.CreateMonitor(r.Context(), monitor)
	if err != nil {
		logrus.Errorf("Error creating monitor: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to create monitor: %v", err)})
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateMonitor updates a monitor
func (h *APIHandler) UpdateMonitor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req models.MonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logrus.Errorf("Error decoding update monitor request: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
		return
	}
	monitor, err := req.ToMonitor(time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	updated, err := h.monitorService.UpdateMonitor(r.Context(), id, monitor)
	if err != nil {
		logrus.Errorf("Error updating monitor %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to update monitor: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteMonitor deletes a monitor
func (h *APIHandler) DeleteMonitor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.monitorService.DeleteMonitor(r.Context(), id); err != nil {
		logrus.Errorf("Error deleting monitor %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to delete monitor: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ExecuteMonitor runs a monitor immediately. With ?dryrun=true the run
// evaluates everything but writes no alerts and sends no notifications.
func (h *APIHandler) ExecuteMonitor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	dryrun := r.URL.Query().Get("dryrun") == "true"

	monitor, err := h.monitorService.GetMonitor(r.Context(), id)
	if err != nil {
		logrus.Errorf("Error getting monitor %s: %v", id, err)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Monitor with ID %s not found", id)})
		return
	}
	result := h.monitorService.ExecuteMonitor(r.Context(), monitor, dryrun)
	writeJSON(w, http.StatusOK, result)
}

// GetAlerts returns the live alerts for a monitor
func (h *APIHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	found, err := h.alertService.ListAlerts(r.Context(), id)
	if err != nil {
		logrus.Errorf("Error getting alerts for monitor %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get alerts"})
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// AcknowledgeAlert acknowledges an active alert
func (h *APIHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	monitorID, alertID := vars["id"], vars["alertId"]

	acked, err := h.alertService.AcknowledgeAlert(r.Context(), monitorID, alertID)
	if err != nil {
		logrus.Errorf("Error acknowledging alert %s: %v", alertID, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Failed to acknowledge alert: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, acked)
}
