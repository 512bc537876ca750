package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medchat/medchat/internal/config"
	"github.com/medchat/medchat/internal/domain/dialogue"
	"github.com/medchat/medchat/internal/domain/record"
	"github.com/medchat/medchat/internal/platform/db"
	"github.com/medchat/medchat/internal/platform/infermedica"
	"github.com/medchat/medchat/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medchat-server",
		Short: "AI Health Assistant chat server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(recordsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and manage stored medical records",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print a user's medical record as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			if username == "" {
				return fmt.Errorf("--username is required")
			}

			store, cleanup, err := openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := store.Load(context.Background(), username)
			if err != nil {
				return fmt.Errorf("load record for %q: %w", username, err)
			}
			out, err := json.MarshalIndent(rec, "", "    ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	showCmd.Flags().String("username", "", "Username whose record to show")

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a user's medical record and transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			if username == "" {
				return fmt.Errorf("--username is required")
			}

			store, cleanup, err := openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.Delete(context.Background(), username); err != nil {
				return fmt.Errorf("delete record for %q: %w", username, err)
			}
			fmt.Printf("deleted record for %q\n", username)
			return nil
		},
	}
	deleteCmd.Flags().String("username", "", "Username whose record to delete")

	cmd.AddCommand(showCmd)
	cmd.AddCommand(deleteCmd)
	return cmd
}

// openStore builds the record store the CLI subcommands operate on, using
// the same configuration as the server.
func openStore() (record.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	switch cfg.StorageDriver {
	case "postgres":
		pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		return record.NewRecordRepoPG(pool), pool.Close, nil
	default:
		store, err := record.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Record store
	var store record.Store
	switch cfg.StorageDriver {
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		repo := record.NewRecordRepoPG(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure database schema")
		}
		store = repo
		logger.Info().Msg("connected to database")
	default:
		fileStore, err := record.NewFileStore(cfg.DataDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open data directory")
		}
		store = fileStore
		logger.Info().Str("dir", cfg.DataDir).Msg("using file storage")
	}

	// Services
	records := record.NewService(store, logger)
	knowledge := infermedica.NewClient(cfg.InfermedicaURL, cfg.InfermedicaAppID, cfg.InfermedicaAppKey, logger)
	engine := dialogue.NewEngine(knowledge, records, logger)

	registry := dialogue.NewRegistry(time.Duration(cfg.SessionTTLMinutes) * time.Minute)
	go registry.Sweep(ctx, time.Minute)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	// Routes
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	dialogue.NewHandler(registry, engine).RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
