package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/storeloom/searchcore/internal/catalog"
	"github.com/storeloom/searchcore/internal/config"
	"github.com/storeloom/searchcore/internal/database"
	"github.com/storeloom/searchcore/internal/embedding"
	"github.com/storeloom/searchcore/internal/llm"
	"github.com/storeloom/searchcore/internal/queue"
	"github.com/storeloom/searchcore/internal/queue/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPool(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	gw := llm.NewGateway(cfg.LLM)
	embedSvc := embedding.NewService(gw, cfg.LLM.EmbeddingModel)
	store := catalog.NewStore(db)

	registry := queue.NewHandlersRegistry()

	embeddingWorker := workers.NewEmbeddingWorker(store, embedSvc)
	registry.Register(queue.TypeEmbeddingBackfill, asynq.HandlerFunc(embeddingWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
