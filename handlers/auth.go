package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/services"
)

// AuthHandler handles authentication-related endpoints
type AuthHandler struct {
	authService *services.AuthService
	baseURL     string
}

// NewAuthHandler builds login links against baseURL, or against the request
// host when baseURL is empty.
func NewAuthHandler(authService *services.AuthService, baseURL string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

func decodeEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return "", false
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		http.Error(w, "Invalid email address", http.StatusBadRequest)
		return "", false
	}
	return email, true
}

// requestBaseURL returns configured, or the scheme and host r arrived on.
func requestBaseURL(configured string, r *http.Request) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// Signup creates the account for an email if needed and sends a magic link
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	email, ok := decodeEmail(w, r)
	if !ok {
		return
	}

	acct, magicLink, err := h.authService.Signup(r.Context(), email, requestBaseURL(h.baseURL, r))
	if err != nil {
		log.Printf("Error signing up %s: %v", email, err)
		http.Error(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "Magic link has been sent",
		"accountId": acct.ID,
		"username":  acct.Username,
		"magicLink": magicLink, // For development only
	})
}

// Login handles the login request (sending a magic link)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email, ok := decodeEmail(w, r)
	if !ok {
		return
	}

	magicLink, err := h.authService.Login(r.Context(), email, requestBaseURL(h.baseURL, r))
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "No account for this email, sign up first", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Error generating magic link: %v", err)
		http.Error(w, "Failed to generate login link", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "Magic link has been sent",
		"magicLink": magicLink, // For development only
	})
}

// HandleMagicLink processes a magic link token and redirects to the frontend
func (h *AuthHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	acct, jwtToken, err := h.authService.ExchangeMagicLink(r.Context(), token)
	if errors.Is(err, services.ErrInvalidMagicLink) || errors.Is(err, database.ErrNotFound) {
		http.Error(w, "Invalid or expired token", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("Error creating JWT: %v", err)
		http.Error(w, "Authentication error", http.StatusInternalServerError)
		return
	}

	redirectURL := fmt.Sprintf("/?token=%s&email=%s", url.QueryEscape(jwtToken), url.QueryEscape(acct.Email))
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// VerifyToken reports the account behind a valid session token
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"accountId": id.AccountID,
		"email":     id.Email,
		"status":    "valid",
	})
}
