package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/command"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/grant"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/memstore"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/repo"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ranking"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/redemption"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/registration"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/roster"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/scheduler"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/tabular"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/utilities"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// init logger
	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting service-hackbot-go", "backend", cfg.LedgerBackend, "presence", cfg.Presence)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// init ledger store
	var (
		store  ledger.Store
		pinger router.Pinger
	)
	switch cfg.LedgerBackend {
	case config.BackendMemory:
		sugar.Warn("using in-memory ledger; state is lost on exit")
		store = memstore.New()
	default:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			sugar.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		lr := repo.NewLedgerRepo(db)
		if err := lr.EnsureTable(ctx); err != nil {
			sugar.Fatalf("ensure tables: %v", err)
		}
		store, pinger = lr, db
	}

	catalogSrc := openSource(ctx, sugar, cfg.CatalogSource, cfg.S3)
	rosterSrc := openSource(ctx, sugar, cfg.RosterSource, cfg.S3)

	people := roster.New(rosterSrc, cfg.Devs)
	if rosterSrc != nil {
		if n, err := people.Reload(ctx); err != nil {
			sugar.Warnw("initial roster load failed", "err", err)
		} else {
			sugar.Infow("roster loaded", "people", n)
		}
	}

	catalogSvc := catalog.NewService(store, catalogSrc, sugar.Named("catalog"))
	rankingSvc := ranking.NewService(store, people, cfg.PageSize, sugar.Named("ranking"))
	deps := command.Deps{
		Ranking:      rankingSvc,
		Redemption:   redemption.NewService(store, sugar.Named("redemption")),
		Grant:        grant.NewService(store, sugar.Named("grant")),
		Registration: registration.NewService(store, cfg.SeedMin, cfg.SeedMax, sugar.Named("registration")),
		Catalog:      catalogSvc,
		Roster:       people,
	}
	table, err := command.NewTable(people, sugar.Named("command"), command.Commands(deps)...)
	if err != nil {
		sugar.Fatalf("build command table: %v", err)
	}

	var jobs []scheduler.Job
	if catalogSrc != nil && cfg.CatalogReloadInterval > 0 {
		jobs = append(jobs, scheduler.Job{Name: "catalog", Interval: cfg.CatalogReloadInterval, Run: catalogSvc.ReloadFromSource})
	} else if catalogSrc != nil {
		if n, err := catalogSvc.ReloadFromSource(ctx); err != nil {
			sugar.Warnw("initial catalog load failed", "err", err)
		} else {
			sugar.Infow("catalog loaded", "codes", n)
		}
	}
	if rosterSrc != nil && cfg.RosterReloadInterval > 0 {
		jobs = append(jobs, scheduler.Job{Name: "roster", Interval: cfg.RosterReloadInterval, Run: people.Reload})
	}
	if len(jobs) > 0 {
		sched, err := scheduler.Start(ctx, sugar.Named("scheduler"), jobs...)
		if err != nil {
			sugar.Fatalf("start scheduler: %v", err)
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				sugar.Warnw("scheduler shutdown failed", "err", err)
			}
		}()
	}

	tokens, err := auth.NewTokenService(cfg.TokenSecret)
	if err != nil {
		sugar.Fatalf("BOT_TOKEN_SECRET: %v", err)
	}

	// mount http server
	handler := router.RegisterRoutes(sugar, command.NewHandler(table, rankingSvc, sugar.Named("http")), tokens, pinger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	sugar.Infow("service is running; press Ctrl+C to stop", "addr", cfg.HTTPAddr)

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// shutdown http server
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

func openSource(ctx context.Context, sugar *zap.SugaredLogger, location string, s3cfg tabular.S3Config) tabular.Source {
	if location == "" {
		return nil
	}
	src, err := tabular.Open(ctx, location, s3cfg)
	if err != nil {
		sugar.Fatalf("open source %s: %v", location, err)
	}
	return src
}
