package main

import (
	"context"

	"textsum-eval/internal/aggregator"
	"textsum-eval/internal/config"
	"textsum-eval/internal/db"
	"textsum-eval/internal/log"
	"textsum-eval/internal/providers"
	"textsum-eval/internal/scoring"
	"textsum-eval/internal/storage"
	"textsum-eval/internal/worker"
	"textsum-eval/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)
	if cfg.StoreDriver != config.DriverPostgres {
		log.Fatalf("worker requires STORE_DRIVER=%s", config.DriverPostgres)
	}
	ctx := context.Background()

	repo := db.NewRepository(db.MustOpen(cfg.DatabaseURL))
	s3c, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
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
	flow := workflow.New(workflow.Deps{
		Summary:            set.Summary,
		Scorer:             scorer,
		Aggregator:         agg,
		Records:            repo,
		ShortTextThreshold: cfg.Providers.ShortTextThreshold,
	})

	w := &worker.Server{Repo: repo, Rescorer: flow, Store: s3c}
	log.Infof("worker consuming from %s (concurrency=%d)", cfg.RedisAddr, cfg.WorkerConcurrency)
	if err := worker.Run(cfg.RedisAddr, cfg.WorkerConcurrency, w); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
