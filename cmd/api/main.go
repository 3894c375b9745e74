package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Sam231221/AuraSwift-sub012/internal/config"
	"github.com/Sam231221/AuraSwift-sub012/internal/modules/errlog"
	"github.com/Sam231221/AuraSwift-sub012/internal/modules/payment"
	"github.com/Sam231221/AuraSwift-sub012/internal/modules/terminal"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment")
	}
	cfg := config.Load()

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()
	errLogger := errlog.New(zl)

	// ── Terminal store ──────────────────────────────────────
	var store terminal.Store
	switch cfg.TerminalStore {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatal(err)
		}
		store = terminal.NewPostgresStore(db)
	default:
		store = terminal.NewYAMLStore(cfg.TerminalsFile)
	}

	registry := terminal.NewRegistry(store)
	loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := registry.Load(loadCtx); err != nil {
		zl.Warn("terminal store load failed, starting empty", zap.Error(err))
	}
	cancel()

	// ── Discovery ───────────────────────────────────────────
	client := terminal.NewClient(10 * time.Second)
	scanner := terminal.NewScanner()
	cache := terminal.NewCache(cfg.CacheTTL)
	discoverer := terminal.NewDiscoverer(registry, scanner, client, cache, terminal.ScanConfig{
		Range:        cfg.ScanRange,
		Port:         cfg.TerminalPort,
		ProbeTimeout: cfg.ProbeTimeout,
		Concurrency:  cfg.ScanConcurrency,
	}, zl)
	discoverer.DefaultCredential = cfg.DefaultCredential

	// ── Payment engine ──────────────────────────────────────
	breakers := payment.NewBreakerRegistry(payment.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
		Window:           cfg.BreakerWindow,
	})
	poller := payment.NewPoller(payment.PollingStrategy{
		FastInterval: cfg.PollFastInterval,
		SlowInterval: cfg.PollSlowInterval,
		PendingBase:  cfg.PollFastInterval,
		MaxInterval:  cfg.PollMaxInterval,
		MaxDuration:  cfg.PollMaxDuration,
	}, errLogger)
	manager := payment.NewManager(client, breakers, payment.NewBuilder(), poller, payment.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}, errLogger)
	manager.SetSessionTTL(cfg.SessionTTL)
	defer manager.Close()

	// Terminals with an in-flight transaction cannot be removed.
	registry.SetInUseCheck(manager.HasActiveForTerminal)

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	terminal.NewHandler(registry, discoverer).RegisterRoutes(router)
	payment.NewHandler(manager, registry, errLogger).RegisterRoutes(router)

	fmt.Printf("AuraSwift payment engine starting on :%s\n", cfg.AppPort)
	log.Fatal(http.ListenAndServe(":"+cfg.AppPort, router))
}
