package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/handlers"
	"github.com/CrowderSoup/bizniz-quest/quest"
	"github.com/CrowderSoup/bizniz-quest/services"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "bizquest",
		Short:         "Bizniz Quest - quest-themed task buckets with daily resets",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("env-file", ".env", "path to a .env file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(resetDailyCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(renameCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServer(cfg, staticDir)
		},
	}
	cmd.Flags().StringVar(&staticDir, "static", "./", "directory served at / (empty to disable)")
	return cmd
}

func runServer(cfg *services.Config, staticDir string) error {
	logger := log.Default()

	// Initialize database
	db, err := database.InitDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Initialize services
	dataService := database.NewDataService(db)
	authService := services.NewAuthService(cfg.Auth, cfg.SMTP, dataService)
	scheduler := quest.NewResetScheduler(nil, dataService, logger)
	scheduler.SetInterval(cfg.Reset.CheckInterval)

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Open views reload after the nightly reset instead of saving stale state.
	daily := services.NewDailyReset(dataService, nil, logger)
	daily.OnReset(func(services.ResetResult) {
		hub.NotifyAll(services.WebSocketMessage{Type: "sync"})
	})

	r := handlers.NewRouter(handlers.Routes{
		Auth:       handlers.NewAuthHandler(authService, cfg.BaseURL),
		Data:       handlers.NewDataHandler(dataService, scheduler, hub, cfg.Sync, logger),
		Reset:      handlers.NewResetHandler(daily, cfg.Reset.CronSecret),
		Screenspy:  handlers.NewScreenspyHandler(services.NewScreenspyService(dataService, authService), cfg.BaseURL),
		Archive:    handlers.NewArchiveHandler(services.NewArchiveService(dataService, nil)),
		Middleware: handlers.NewAuthMiddleware(authService),
	})

	// Static file server for frontend
	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Reset.Nightly {
		go daily.Run(ctx)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func resetDailyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-daily",
		Short: "Clear every account's Daily Tasks bucket for today (UTC)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := database.InitDB(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			daily := services.NewDailyReset(database.NewDataService(db), nil, log.Default())
			res, err := daily.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d recurring buckets, %s)\n",
				res.Message, res.Found, res.Timestamp.Format(time.RFC3339))
			return nil
		},
	}
}
