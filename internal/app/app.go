package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"monitord/internal/alerts"
	"monitord/internal/cache"
	"monitord/internal/collector"
	"monitord/internal/config"
	"monitord/internal/db"
	"monitord/internal/docker"
	"monitord/internal/engine"
	"monitord/internal/notifier"
	"monitord/internal/retention"
	"monitord/internal/rules"
	"monitord/internal/stream"
	"monitord/internal/telemetry"
	"monitord/internal/web"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db        *db.Repository
	postgres  *db.PostgresProbe
	cache     *cache.Cache
	engine    *engine.Engine
	retention *retention.Service
	web       *web.Server
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	sqldb, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(sqldb); err != nil {
		return nil, err
	}
	repo := db.NewRepository(sqldb)

	ruleSet, err := rules.Load(cfg.RulesFile, logger.With("module", "rules"))
	if err != nil {
		return nil, err
	}

	c := cache.New()
	channels, err := buildChannels(cfg, logger)
	if err != nil {
		return nil, err
	}
	manager := alerts.NewManager(logger.With("module", "alerts"), channels, repo)
	manager.Attempts = cfg.DeliveryAttempts
	manager.HistoryLimit = cfg.HistoryLimit

	metrics := telemetry.New()
	hub := stream.NewHub(logger.With("module", "stream"))
	manager.Subscribe(metrics.AlertEvent)
	manager.Subscribe(hub.AlertEvent)

	a := &App{cfg: cfg, log: logger, db: repo, cache: c}

	var probe collector.DatabaseProbe = db.NewSQLiteProbe(repo)
	if cfg.PostgresDSN != "" {
		pg, err := db.OpenPostgresProbe(cfg.PostgresDSN)
		if err != nil {
			logger.Error("postgres probe unavailable, probing sqlite instead", "err", err)
		} else {
			a.postgres = pg
			probe = pg
		}
	}

	var containers collector.ContainerLister
	dc := docker.NewClient(cfg.DockerSocket)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := dc.Ping(pingCtx); err != nil {
		logger.Info("docker daemon not reachable, container metrics disabled", "socket", cfg.DockerSocket, "err", err)
	} else {
		containers = dc
	}
	cancel()

	collectors := []collector.Collector{
		collector.NewSystemCollector(logger.With("module", "collector", "domain", "system"), cfg.DiskPath, cfg.ProcessName, containers),
		collector.NewDatabaseCollector(logger.With("module", "collector", "domain", "database"), probe),
		collector.NewApplicationCollector(logger.With("module", "collector", "domain", "application"), repo, c),
	}

	a.engine = engine.New(engine.Options{
		Collectors:  collectors,
		Rules:       ruleSet,
		Alerts:      manager,
		Cache:       c,
		Observer:    metrics,
		SnapshotTTL: cfg.SnapshotTTL,
	}, logger.With("module", "engine"))
	a.retention = retention.NewService(repo, c, cfg.RetentionDays, logger.With("module", "retention"))
	a.web = web.NewServer(web.Options{
		Engine:          a.engine,
		Cache:           c,
		Hub:             hub,
		Metrics:         metrics.Handler(),
		JWTSecret:       cfg.JWTSecret,
		DefaultInterval: cfg.MonitorInterval,
	}, logger.With("module", "web"))
	return a, nil
}

func buildChannels(cfg config.Config, logger *slog.Logger) ([]notifier.Channel, error) {
	var mailer notifier.Mailer
	switch cfg.MailTransport {
	case "ses":
		m, err := notifier.NewSESMailer(context.Background(), cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		mailer = m
	case "smtp":
		if cfg.SMTPHost != "" {
			mailer = notifier.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		}
	default:
		return nil, fmt.Errorf("unknown MAIL_TRANSPORT %q", cfg.MailTransport)
	}
	if mailer == nil || len(cfg.EmailTo) == 0 {
		logger.Warn("email channel not configured")
	}
	return []notifier.Channel{
		notifier.NewEmail(cfg.EmailFrom, cfg.EmailTo, mailer),
		notifier.NewSlack(cfg.SlackWebhookURL),
		notifier.NewDiscord(cfg.DiscordWebhookURL),
		notifier.NewWebhook(cfg.AlertWebhookURL),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.web.SetBaseContext(ctx)
	go func() {
		a.log.Info("http server listening", "addr", a.cfg.Addr)
		if err := a.web.Listen(a.cfg.Addr); err != nil {
			a.log.Error("http server failed", "err", err)
		}
	}()

	if a.cfg.MonitorAutostart {
		if err := a.engine.Launch(ctx, a.cfg.MonitorInterval); err != nil {
			a.log.Error("start monitoring", "err", err)
		}
	}

	retentionTicker := time.NewTicker(6 * time.Hour)
	defer retentionTicker.Stop()
	a.retention.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			if err := a.engine.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
				a.log.Warn("stop monitoring", "err", err)
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.web.Shutdown(shutdownCtx)
			if a.postgres != nil {
				_ = a.postgres.Close()
			}
			return a.db.DB().Close()
		case <-retentionTicker.C:
			a.retention.Run(ctx)
		}
	}
}
