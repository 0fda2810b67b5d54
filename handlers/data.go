package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/quest"
	"github.com/CrowderSoup/bizniz-quest/services"
	"github.com/gorilla/websocket"
)

const sessionStartTimeout = 15 * time.Second

// DataHandler handles data-related endpoints
type DataHandler struct {
	store     quest.SnapshotStore
	gateway   *quest.Gateway
	scheduler *quest.ResetScheduler
	hub       *services.Hub
	sync      services.SyncConfig
	logger    *log.Logger
}

func NewDataHandler(store quest.SnapshotStore, scheduler *quest.ResetScheduler, hub *services.Hub, syncConfig services.SyncConfig, logger *log.Logger) *DataHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &DataHandler{
		store:     store,
		gateway:   quest.NewGateway(store, logger),
		scheduler: scheduler,
		hub:       hub,
		sync:      syncConfig,
		logger:    logger,
	}
}

// GetData returns the account's snapshot, seeding defaults for new accounts
func (h *DataHandler) GetData(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, nil)
}

// LoadData is GetData with an optional legacy cache migrated first
func (h *DataHandler) LoadData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Legacy json.RawMessage `json:"legacy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	var legacy quest.LegacyCache
	if len(req.Legacy) > 0 && string(req.Legacy) != "null" {
		legacy = &quest.MemoryLegacyCache{Data: req.Legacy}
	}
	h.load(w, r, legacy)
}

func (h *DataHandler) load(w http.ResponseWriter, r *http.Request, legacy quest.LegacyCache) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	res, err := h.gateway.Load(r.Context(), id.AccountID, legacy)
	if err != nil {
		log.Printf("Error loading tasks for %s: %v", id.AccountID, err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   res.Snapshot,
		"source": res.Source,
	})
}

// SyncData replaces the account's snapshot with the request body
func (h *DataHandler) SyncData(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	var snap database.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if snap == nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if err := h.gateway.Save(r.Context(), id.AccountID, snap); err != nil {
		log.Printf("Error saving tasks for %s: %v", id.AccountID, err)
		http.Error(w, "Failed to save data", http.StatusInternalServerError)
		return
	}

	// Last write wins; open views are told so they can reload.
	h.hub.NotifyAccount(id.AccountID, services.WebSocketMessage{Type: "sync"}, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   snap,
	})
}

// HandleWebSocket upgrades the connection and mounts a session on it
func (h *DataHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Origins are enforced by the CORS layer
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	debounce := h.sync.DesktopDebounce
	if r.URL.Query().Get("mobile") == "1" {
		debounce = h.sync.MobileDebounce
	}

	client := services.NewClient(h.hub, conn, id.AccountID)
	session := services.NewSession(services.SessionConfig{
		AccountID: id.AccountID,
		Gateway:   quest.NewGateway(h.store, h.logger),
		Scheduler: h.scheduler,
		Out:       client,
		Debounce:  debounce,
		Logger:    h.logger,
		OnSaved: func() {
			go h.hub.NotifyAccount(id.AccountID, services.WebSocketMessage{Type: "sync"}, client)
		},
	})
	client.OnMessage = session.HandleMessage

	h.hub.Register(client)
	go client.WritePump()

	ctx, cancel := context.WithTimeout(context.Background(), sessionStartTimeout)
	defer cancel()
	if err := session.Start(ctx); err != nil {
		log.Printf("Error starting session for %s: %v", id.AccountID, err)
		client.SendMessage(services.WebSocketMessage{
			Type: "status",
			Data: map[string]string{"status": "Error loading tasks: " + err.Error()},
		})
		session.Close()
		h.hub.Unregister(client)
		return
	}

	go func() {
		client.ReadPump()
		session.Close()
	}()
}
