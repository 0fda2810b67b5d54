package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/CrowderSoup/bizniz-quest/services"
)

// ResetHandler exposes the all-accounts daily reset for a cron caller.
type ResetHandler struct {
	daily  *services.DailyReset
	secret string
}

// NewResetHandler requires "Authorization: Bearer <secret>" when secret is set.
func NewResetHandler(daily *services.DailyReset, secret string) *ResetHandler {
	return &ResetHandler{daily: daily, secret: secret}
}

func (h *ResetHandler) ResetDailyTasks(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		token, _ := bearerToken(r)
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}

	res, err := h.daily.RunOnce(r.Context())
	if err != nil {
		log.Printf("Error in reset-daily-tasks: %v", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   res.Success,
		"message":   res.Message,
		"timestamp": res.Timestamp,
	})
}
