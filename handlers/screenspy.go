package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/services"
	"github.com/gorilla/mux"
)

// ScreenspyHandler lets users share their task list with coworkers
type ScreenspyHandler struct {
	screenspy *services.ScreenspyService
	baseURL   string
}

// NewScreenspyHandler builds invitation links against baseURL, or against
// the request host when baseURL is empty.
func NewScreenspyHandler(screenspy *services.ScreenspyService, baseURL string) *ScreenspyHandler {
	return &ScreenspyHandler{
		screenspy: screenspy,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// SetSharing sets the caller's sharing flag
func (h *ScreenspyHandler) SetSharing(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if err := h.screenspy.SetSharing(r.Context(), id.AccountID, *req.Enabled); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

// ToggleSharing flips the caller's sharing flag
func (h *ScreenspyHandler) ToggleSharing(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	enabled, err := h.screenspy.ToggleSharing(r.Context(), id.AccountID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// CoworkerTasks returns another user's tasks if they share them
func (h *ScreenspyHandler) CoworkerTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.screenspy.CoworkerTasks(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// Coworkers lists the caller's coworkers
func (h *ScreenspyHandler) Coworkers(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	coworkers, err := h.screenspy.Coworkers(r.Context(), id.AccountID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coworkers": coworkers})
}

// AddCoworker adds an existing user by username
func (h *ScreenspyHandler) AddCoworker(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	acct, err := h.screenspy.AddCoworker(r.Context(), id.AccountID, req.Username)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// InviteCoworker registers an email if needed, adds it as a coworker and
// sends it a sign-in link
func (h *ScreenspyHandler) InviteCoworker(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	email, ok := decodeEmail(w, r)
	if !ok {
		return
	}

	acct, magicLink, err := h.screenspy.InviteCoworker(r.Context(), id.AccountID, email, requestBaseURL(h.baseURL, r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   "Invitation sent to " + acct.Email,
		"coworker":  acct,
		"magicLink": magicLink,
	})
}

// RemoveCoworker drops a coworker from the caller's list
func (h *ScreenspyHandler) RemoveCoworker(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	if err := h.screenspy.RemoveCoworker(r.Context(), id.AccountID, mux.Vars(r)["id"]); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScreenspyHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSelfCoworker):
		writeJSONError(w, http.StatusBadRequest, "You cannot add yourself as a coworker")
	case errors.Is(err, database.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "Coworker not found")
	case errors.Is(err, services.ErrSharingDisabled):
		writeJSONError(w, http.StatusForbidden, "Screen sharing is disabled")
	default:
		log.Printf("Screenspy error: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Server error")
	}
}
