package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/eventdesk/checkin-service/internal/cache"
	"github.com/eventdesk/checkin-service/internal/config"
	"github.com/eventdesk/checkin-service/internal/queue"
	"github.com/eventdesk/checkin-service/internal/store"
	"github.com/eventdesk/checkin-service/internal/worker"
)

// main boots the batch writer as its own process: config → DB → Redis → loop.
// Exactly one instance should run; last-write-wins batching assumes a single
// drain-then-flush actor.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.EnsureSchema(); err != nil {
		log.Fatal(err)
	}

	rdb, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal(err)
	}
	defer rdb.Close()

	ch := cache.NewRedisCache(rdb, cfg.AttendanceTTL, cfg.TasksTTL)
	q := queue.NewRedisQueue(rdb)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker.New(q, db, ch, cfg.BatchSize, cfg.BatchInterval).Run(ctx)
}
