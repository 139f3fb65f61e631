package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"textsum-eval/internal/aggregator"
	"textsum-eval/internal/config"
	"textsum-eval/internal/db"
	"textsum-eval/internal/evaluation"
	httpSrv "textsum-eval/internal/http"
	"textsum-eval/internal/log"
	"textsum-eval/internal/memstore"
	"textsum-eval/internal/migrations"
	"textsum-eval/internal/providers"
	"textsum-eval/internal/scoring"
	"textsum-eval/internal/storage"
	"textsum-eval/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := openRepository(ctx, cfg)

	set, err := providers.Build(ctx, cfg.Providers)
	if err != nil {
		log.Fatalf("providers: %v", err)
	}
	defer set.Close()

	scorer, err := scoring.New(set.Similarity, set.EditRate, set.Meteor, cfg.Providers.MetricPoolSize)
	if err != nil {
		log.Fatalf("scoring: %v", err)
	}
	defer scorer.Close()

	agg := aggregator.New(repo)
	srv := &httpSrv.Server{
		Repo: repo,
		Agg:  agg,
		Flow: workflow.New(workflow.Deps{
			Summary:            set.Summary,
			Scorer:             scorer,
			Aggregator:         agg,
			Records:            repo,
			ShortTextThreshold: cfg.Providers.ShortTextThreshold,
		}),
		APIToken: cfg.APIToken,
	}

	// Background tasks need a shared store; memory mode runs without them.
	if cfg.StoreDriver == config.DriverPostgres {
		asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer asq.Close()
		srv.Tasks = asq
	}
	if cfg.MinioEndpoint != "" {
		s3c, err := storage.New(ctx, cfg)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		srv.Exports = s3c
	}

	hs := httpSrv.NewServer(cfg.HTTPAddr, srv)
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdown)
	}()

	log.Infof("listening on %s (store=%s)", cfg.HTTPAddr, cfg.StoreDriver)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http: %v", err)
	}
}

func openRepository(ctx context.Context, cfg *config.Config) evaluation.Repository {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warnf("using in-memory store; data is lost on exit")
		return memstore.New()
	}
	// Run embedded migrations (idempotent)
	if err := migrations.Run(cfg.DatabaseURL); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	dbase, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	return db.NewRepository(dbase)
}
