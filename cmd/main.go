package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/competition-engine/config"
	"github.com/Dosada05/competition-engine/db"
	"github.com/Dosada05/competition-engine/handlers"
	"github.com/Dosada05/competition-engine/middleware"
	api "github.com/Dosada05/competition-engine/routes"
	"github.com/Dosada05/competition-engine/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

const (
	dbConnectTimeout = 5 * time.Second
	shutdownTimeout  = 15 * time.Second
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := newRootCommand(logger).Execute(); err != nil {
		logger.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "competition-engine",
		Short:         "Tournament competition engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand(logger))
	cmd.AddCommand(newSweepCommand(logger))
	cmd.AddCommand(newMigrateCommand(logger))
	cmd.AddCommand(newTokenCommand())
	return cmd
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Bool("in_memory", cfg.DatabaseURL == ""))
	return cfg, nil
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket hub and auto-resolution scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate && a.dbConn != nil {
				if err := db.Migrate(ctx, a.dbConn); err != nil {
					return err
				}
				logger.Info("database schema applied")
			}
			return serve(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the embedded schema before serving")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	logger := a.logger

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)
	logger.Info("WebSocket Hub started")

	sweeps, err := scheduler.New(a.sweeper, a.cfg.AutoResolveInterval, logger)
	if err != nil {
		return err
	}
	sweeps.Start()
	defer func() {
		if err := sweeps.Stop(); err != nil {
			logger.Error("failed to stop scheduler", slog.Any("error", err))
		}
	}()

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{JWTSecret: []byte(a.cfg.JWTSecretKey), AllowedOrigins: a.cfg.CORSAllowedOrigins},
		handlers.NewTournamentHandler(a.tournaments, a.fixtures, a.standings),
		handlers.NewParticipantHandler(a.participants, a.tournaments, a.matches),
		handlers.NewMatchHandler(a.matches, a.tournaments),
		handlers.NewAdminHandler(a.tournaments),
		handlers.NewWebSocketHandler(a.hub, a.tournaments, a.cfg.CORSAllowedOrigins, logger),
	)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return err
	}
	logger.Info("server shutdown complete")
	return nil
}

func newSweepCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a single auto-resolution pass over overdue matches",
		Long: "Run a single auto-resolution pass over overdue matches.\n" +
			"Player presence is only known to a running server, so pending matches are skipped;\n" +
			"only unconfirmed submitted scores are accepted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.offlineSweeper().Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d resolved=%d skipped=%d failed=%d\n",
				result.Checked, result.Resolved, result.Skipped, result.Failed)
			return nil
		},
	}
}

func newMigrateCommand(logger *slog.Logger) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if printOnly {
				_, err := fmt.Fprint(cmd.OutOrStdout(), db.Schema())
				return err
			}
			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for migrate")
			}
			dbConn, err := db.Connect(cfg.DatabaseURL, dbConnectTimeout, logger)
			if err != nil {
				return err
			}
			defer dbConn.Close()
			if err := db.Migrate(cmd.Context(), dbConn); err != nil {
				return err
			}
			logger.Info("database schema applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")
	return cmd
}

// newTokenCommand выпускает токен для локальной разработки.
func newTokenCommand() *cobra.Command {
	var (
		name string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a development JWT for the given user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if name == "" {
				name = args[0]
			}
			tok, err := middleware.IssueToken([]byte(cfg.JWTSecretKey), args[0], name, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name claim (defaults to the user id)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
