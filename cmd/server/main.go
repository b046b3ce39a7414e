package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"enrolld/internal/account"
	"enrolld/internal/audit"
	httpapi "enrolld/internal/http"
	"enrolld/internal/platform/config"
	"enrolld/internal/platform/httpserver"
	"enrolld/internal/platform/logger"
	platformmetrics "enrolld/internal/platform/metrics"
	platformredis "enrolld/internal/platform/redis"
	reghandler "enrolld/internal/registration/handler"
	regmetrics "enrolld/internal/registration/metrics"
	"enrolld/internal/registration/ports"
	regservice "enrolld/internal/registration/service"
	recordstore "enrolld/internal/registration/store/record"
	sessionstore "enrolld/internal/registration/store/session"
	"enrolld/internal/registration/workflow"
	settingshandler "enrolld/internal/settings/handler"
	settingsservice "enrolld/internal/settings/service"
	settingsstore "enrolld/internal/settings/store"
	id "enrolld/pkg/domain"
)

// main wires stores, services, and the HTTP surface, then runs the server and
// the audit worker until a shutdown signal arrives. Business logic lives in
// the internal packages; this file only selects backends and connects them.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	healthChecks := map[string]httpapi.HealthChecker{}

	// Session store: Redis when configured, in-memory otherwise.
	var sessions ports.SessionStore
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = sessionstore.NewRedis(redisClient.Client)
		healthChecks["redis"] = redisClient
		log.Info("session store: redis")
	} else {
		sessions = sessionstore.New()
		log.Info("session store: memory")
	}

	// Record and settings stores: Postgres when configured, in-memory otherwise.
	var (
		records       ports.RecordStore
		settingsStore settingsservice.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		records = recordstore.NewPostgres(db)
		settingsStore = settingsstore.NewPostgres(db)
		healthChecks["postgres"] = dbHealth{db}
		log.Info("record store: postgres")
	} else {
		records = recordstore.New()
		settingsStore = settingsstore.New()
		log.Info("record store: memory")
	}

	// Audit pipeline: the publisher feeds a worker that fans out to the
	// sinks. The in-memory sink always runs; Kafka joins when brokers are
	// configured.
	publisher := audit.NewPublisher(0, log)
	sinks := []audit.Sink{audit.NewInMemoryStore()}
	if kafkaSink := audit.NewKafkaSink(cfg.Kafka); kafkaSink != nil {
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("audit sink: kafka", "topic", cfg.Kafka.AuditTopic)
	}
	worker := audit.NewWorker(publisher.Inbox(), log, sinks...)

	settingsSvc, err := settingsservice.New(settingsStore,
		settingsservice.WithLogger(log),
		settingsservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		log.Error("settings service init failed", "error", err)
		os.Exit(1)
	}
	if cfg.DefaultCutoff != "" {
		cutoff, err := time.Parse("2006-01-02", cfg.DefaultCutoff)
		if err != nil {
			log.Error("invalid benefit cutoff", "value", cfg.DefaultCutoff, "error", err)
			os.Exit(1)
		}
		if _, err := settingsSvc.SetCutoff(context.Background(), workflow.DefaultCutoffScope, cutoff, "boot"); err != nil {
			log.Error("seeding benefit cutoff failed", "error", err)
			os.Exit(1)
		}
	}

	accounts := account.NewInMemoryDirectory()
	for _, acct := range cfg.DevAccounts {
		accounts.Add(id.AccountID(acct))
	}

	rules, err := regservice.New(records,
		regservice.WithLogger(log),
		regservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		log.Error("registration service init failed", "error", err)
		os.Exit(1)
	}

	orchestrator, err := workflow.New(sessions, records, rules, settingsSvc, accounts,
		workflow.WithLogger(log),
		workflow.WithAuditPublisher(publisher),
		workflow.WithMetrics(regmetrics.New()),
		workflow.WithSessionTTL(cfg.SessionTTL),
	)
	if err != nil {
		log.Error("workflow init failed", "error", err)
		os.Exit(1)
	}

	router := httpapi.Router(log, cfg.AdminToken,
		reghandler.New(orchestrator, records, log),
		settingshandler.New(settingsSvc, log),
		platformmetrics.NewHTTP(),
		healthChecks,
	)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(ctx)
	})
	group.Go(func() error {
		log.Info("enrolld listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	log.Info("enrolld stopped")
}

// dbHealth adapts *sql.DB to the router's health check interface.
type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
