package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Dosada05/competition-engine/brackets"
	"github.com/Dosada05/competition-engine/config"
	"github.com/Dosada05/competition-engine/db"
	"github.com/Dosada05/competition-engine/repositories"
	"github.com/Dosada05/competition-engine/services"
	"github.com/Dosada05/competition-engine/storage"
)

// app собирает хранилище и сервисы движка. Используется всеми подкомандами.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	dbConn *sql.DB
	store  repositories.Store
	hub    *brackets.Hub

	engineCfg services.EngineConfig
	archiver  services.ResultsArchiver

	tournaments  services.TournamentService
	participants services.ParticipantService
	fixtures     services.FixtureService
	matches      services.MatchService
	standings    services.StandingsService
	sweeper      services.AutoResolveService
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, hub: brackets.NewHub(logger)}

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL is empty, using in-memory store; data is lost on restart")
		a.store = repositories.NewMemoryStore()
	} else {
		dbConn, err := db.Connect(cfg.DatabaseURL, dbConnectTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("database connection established")
		a.dbConn = dbConn
		a.store = repositories.NewPostgresStore(dbConn, logger)
	}

	a.engineCfg = services.EngineConfig{
		StrikeBanThreshold: cfg.StrikeBanThreshold,
		ForfeitScore:       cfg.ForfeitScore,
		MatchWindow:        cfg.MatchWindow,
	}

	a.tournaments = services.NewTournamentService(a.store, logger)
	a.participants = services.NewParticipantService(a.store, logger)
	a.standings = services.NewStandingsService(a.store)
	a.fixtures = services.NewFixtureService(a.store, a.hub, a.engineCfg, logger)

	r2 := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2.AccountID,
		AccessKeyID:     cfg.R2.AccessKeyID,
		SecretAccessKey: cfg.R2.SecretAccessKey,
		BucketName:      cfg.R2.BucketName,
		PublicBaseURL:   cfg.R2.PublicBaseURL,
	}
	if r2.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, r2, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		a.archiver = services.NewArchiveService(a.store, a.standings, uploader, logger)
		logger.Info("results archive enabled", slog.String("bucket", r2.BucketName))
	} else {
		logger.Info("results archive disabled, R2 is not configured")
	}

	a.matches = services.NewMatchService(a.store, a.hub, a.hub, a.archiver, a.engineCfg, logger)
	a.sweeper = services.NewAutoResolveService(a.store, a.matches, cfg.SweepConcurrency, a.engineCfg, logger)
	return a, nil
}

// offlineSweeper обходит просроченные матчи вне сервера. Присутствие игроков здесь
// неизвестно (хаб пуст), поэтому матчи pending пропускаются и разрешаются только
// неподтверждённые счета.
func (a *app) offlineSweeper() services.AutoResolveService {
	matches := services.NewMatchService(a.store, nil, nil, a.archiver, a.engineCfg, a.logger)
	return services.NewAutoResolveService(a.store, matches, a.cfg.SweepConcurrency, a.engineCfg, a.logger)
}

func (a *app) Close() {
	if a.dbConn == nil {
		return
	}
	if err := a.dbConn.Close(); err != nil {
		a.logger.Error("failed to close database connection", slog.Any("error", err))
		return
	}
	a.logger.Info("database connection closed")
}
