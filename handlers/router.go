package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes groups the handlers mounted by NewRouter.
type Routes struct {
	Auth       *AuthHandler
	Data       *DataHandler
	Reset      *ResetHandler
	Screenspy  *ScreenspyHandler
	Archive    *ArchiveHandler
	Middleware *AuthMiddleware
}

func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()
	r.Use(Recover)

	// Auth routes
	r.HandleFunc("/api/auth/signup", rt.Auth.Signup).Methods("POST")
	r.HandleFunc("/api/auth/login", rt.Auth.Login).Methods("POST")
	r.HandleFunc("/api/auth/magic-link", rt.Auth.HandleMagicLink).Methods("GET")
	r.Handle("/api/auth/verify", rt.Middleware.Auth(http.HandlerFunc(rt.Auth.VerifyToken))).Methods("GET")

	// Cron entry point, guarded by its own secret
	r.HandleFunc("/reset-daily-tasks", rt.Reset.ResetDailyTasks).Methods("GET")

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(rt.Middleware.Auth)
	api.HandleFunc("/data/get", rt.Data.GetData).Methods("GET")
	api.HandleFunc("/data/load", rt.Data.LoadData).Methods("POST")
	api.HandleFunc("/data/sync", rt.Data.SyncData).Methods("POST")
	api.HandleFunc("/ws", rt.Data.HandleWebSocket)
	api.HandleFunc("/screenspy/sharing", rt.Screenspy.SetSharing).Methods("PUT")
	api.HandleFunc("/screenspy/sharing/toggle", rt.Screenspy.ToggleSharing).Methods("POST")
	api.HandleFunc("/screenspy/{username}", rt.Screenspy.CoworkerTasks).Methods("GET")
	api.HandleFunc("/coworkers", rt.Screenspy.Coworkers).Methods("GET")
	api.HandleFunc("/coworkers", rt.Screenspy.AddCoworker).Methods("POST")
	api.HandleFunc("/coworkers/invite", rt.Screenspy.InviteCoworker).Methods("POST")
	api.HandleFunc("/coworkers/{id}", rt.Screenspy.RemoveCoworker).Methods("DELETE")
	api.HandleFunc("/archive/tasks", rt.Archive.Tasks).Methods("GET")

	return r
}
