package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/primisapp/primis-backend/internal/broadcast"
	"github.com/primisapp/primis-backend/internal/device"
)

// handleHealth reports the state of the backend's dependencies.
//
// Returns 200 when storage is reachable; the MQTT field is informational
// and does not fail the check, since the broker may legitimately be down
// while the API keeps serving stored data.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	dbStatus := "ok"
	if err := s.db.HealthCheck(r.Context()); err != nil {
		dbStatus = "unavailable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	mqttStatus := "disabled"
	if s.mqtt != nil {
		mqttStatus = "ok"
		if err := s.mqtt.HealthCheck(r.Context()); err != nil {
			mqttStatus = "disconnected"
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":      status,
		"database":    dbStatus,
		"mqtt":        mqttStatus,
		"subscribers": s.hub.Count(),
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		writeInternalError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

type createDeviceRequest struct {
	IMEI   string `json:"imei"`
	Status string `json:"status"`
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.IMEI == "" {
		writeBadRequest(w, "imei is required")
		return
	}

	status := device.Status(req.Status)
	if req.Status == "" {
		status = device.StatusOffline
	}
	if !status.Valid() {
		writeBadRequest(w, "status must be online or offline")
		return
	}

	d, err := s.devices.Create(r.Context(), req.IMEI, status)
	switch {
	case errors.Is(err, device.ErrDeviceExists):
		writeConflict(w, "device already exists")
		return
	case err != nil:
		writeInternalError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")

	d, err := s.devices.GetByIMEI(r.Context(), imei)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
		return
	case err != nil:
		writeInternalError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// handleUpdateDeviceStatus changes a device's status and broadcasts the
// transition to WebSocket clients, same as a status report over MQTT.
func (s *Server) handleUpdateDeviceStatus(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	status := device.Status(req.Status)
	if !status.Valid() {
		writeBadRequest(w, "status must be online or offline")
		return
	}

	d, err := s.devices.UpdateStatus(r.Context(), imei, status)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
		return
	case err != nil:
		writeInternalError(w, s.logger, err)
		return
	}

	s.hub.Broadcast(broadcast.NewDeviceStatus(imei, string(status)))

	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")

	d, err := s.devices.GetByIMEI(r.Context(), imei)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
		return
	case err != nil:
		writeInternalError(w, s.logger, err)
		return
	}

	if err := s.devices.Delete(r.Context(), d.ID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, s.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeviceData(w http.ResponseWriter, r *http.Request) {
	imei := chi.URLParam(r, "imei")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	// An unknown IMEI is served as an empty list, not a 404; consumers
	// poll this endpoint before the device has ever spoken.
	records, err := s.devices.DataByIMEI(r.Context(), imei, limit)
	if err != nil {
		writeInternalError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"count": len(records),
	})
}
