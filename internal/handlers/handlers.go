// Package handlers implements the REST facade for out-of-band meeting
// creation and point mutations. Every mutation flows through the
// registry, so duplex-connected clients see REST changes through the
// same broadcast path as WebSocket updates.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/zoneclock/meeting-sync/internal/locations"
	"github.com/zoneclock/meeting-sync/internal/models"
	"github.com/zoneclock/meeting-sync/internal/registry"
)

// Handlers holds the dependencies required by HTTP handler functions.
//
// Note there is deliberately no ownership check anywhere: any caller may
// rewrite any meeting or flip any participant's attendance. That trust
// boundary matches the collaborative editing model.
type Handlers struct {
	Registry *registry.Registry
	Catalog  *locations.Catalog

	// ShareURLBase prefixes the shareable locator returned on create,
	// e.g. "https://zoneclock.example". Used as-is without validation.
	ShareURLBase string
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondFailure writes the {success:false, message} failure shape.
func respondFailure(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"success": false, "message": msg})
}

// CreateMeeting handles POST /api/meetings.
func (h *Handlers) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var record models.MeetingRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		respondFailure(w, http.StatusBadRequest, "meeting id is required")
		return
	}

	// Participants submitted without an id get one assigned here; ids
	// are immutable afterwards.
	for i := range record.Participants {
		if record.Participants[i].ID == "" {
			record.Participants[i].ID = uuid.NewString()
		}
	}

	if err := h.Registry.Create(record); err != nil {
		switch {
		case errors.Is(err, registry.ErrAlreadyExists):
			respondFailure(w, http.StatusConflict, "meeting already exists")
		case errors.Is(err, registry.ErrInvalidID):
			respondFailure(w, http.StatusBadRequest, "meeting id is required")
		default:
			log.Printf("handler: create meeting: %v", err)
			respondFailure(w, http.StatusInternalServerError, "failed to create meeting")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"meetingId": record.ID,
		"shareUrl":  h.ShareURLBase + "/meeting/" + record.ID,
	})
}

// GetMeeting handles GET /api/meetings/{id}.
func (h *Handlers) GetMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := mux.Vars(r)["id"]

	record, err := h.Registry.Get(meetingID)
	if err != nil {
		respondFailure(w, http.StatusNotFound, "meeting not found")
		return
	}

	h.Catalog.EnrichParticipants(&record, time.Now())
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "meeting": record})
}

// UpdatePrivacy handles PATCH /api/meetings/{id}/privacy. Only the
// fields present in the request change; the merged pair replaces the
// stored settings atomically via the registry.
func (h *Handlers) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	meetingID := mux.Vars(r)["id"]

	var req struct {
		HideParticipantNames     *bool `json:"hideParticipantNames"`
		HideParticipantLocations *bool `json:"hideParticipantLocations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.Registry.Get(meetingID)
	if err != nil {
		respondFailure(w, http.StatusNotFound, "meeting not found")
		return
	}

	merged := models.PrivacySettings{}
	if record.PrivacySettings != nil {
		merged = *record.PrivacySettings
	}
	if req.HideParticipantNames != nil {
		merged.HideParticipantNames = *req.HideParticipantNames
	}
	if req.HideParticipantLocations != nil {
		merged.HideParticipantLocations = *req.HideParticipantLocations
	}
	record.PrivacySettings = &merged

	if _, err := h.Registry.Replace(meetingID, record); err != nil {
		respondFailure(w, http.StatusNotFound, "meeting not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "privacySettings": merged})
}

// UpdateAttendance handles
// PATCH /api/meetings/{id}/participants/{participantId}/attendance.
func (h *Handlers) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	meetingID := vars["id"]
	participantID := vars["participantId"]

	var req struct {
		ConfirmedAttendance bool `json:"confirmedAttendance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	participant, err := h.Registry.PatchParticipant(meetingID, participantID, req.ConfirmedAttendance)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrParticipantNotFound):
			respondFailure(w, http.StatusNotFound, "participant not found")
		case errors.Is(err, registry.ErrNotFound):
			respondFailure(w, http.StatusNotFound, "meeting not found")
		default:
			log.Printf("handler: update attendance: %v", err)
			respondFailure(w, http.StatusInternalServerError, "failed to update attendance")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "participant": participant})
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
