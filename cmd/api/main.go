package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/eventdesk/checkin-service/internal/cache"
	"github.com/eventdesk/checkin-service/internal/config"
	"github.com/eventdesk/checkin-service/internal/httpserver"
	"github.com/eventdesk/checkin-service/internal/queue"
	"github.com/eventdesk/checkin-service/internal/store"
)

// main boots the API: config → DB → schema → Redis → HTTP server.
// The batch writer runs separately (cmd/worker).
func main() {
	// .env is a developer convenience; deployed environments set real env vars.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET required")
	}

	// Connect to the system of record (Postgres) using a connection pool.
	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Ensure required tables exist so `docker compose up --build` is enough.
	if err := db.EnsureSchema(); err != nil {
		log.Fatal(err)
	}

	// Redis backs the check-in queue, both caches and the rate limiter.
	rdb, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal(err)
	}
	defer rdb.Close()

	ch := cache.NewRedisCache(rdb, cfg.AttendanceTTL, cfg.TasksTTL)
	q := queue.NewRedisQueue(rdb)

	router := httpserver.NewRouter(cfg, db, ch, q, rdb)

	log.Println("server started on :" + cfg.Port)
	log.Fatal(router.Run(":" + cfg.Port))
}
