package handlers

import (
	"log"
	"net/http"

	"github.com/CrowderSoup/bizniz-quest/services"
)

type ArchiveHandler struct {
	archive *services.ArchiveService
}

func NewArchiveHandler(archive *services.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{archive: archive}
}

// Tasks returns the caller's completed-task archive, newest first
func (h *ArchiveHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	tasks, err := h.archive.Tasks(r.Context(), id.AccountID)
	if err != nil {
		log.Printf("Error getting archived tasks for %s: %v", id.AccountID, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to get archived tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}
