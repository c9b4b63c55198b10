package main

import (
	"context"
	"log"
	"os"

	"github.com/camilo/tender-radar/internal/api"
	"github.com/camilo/tender-radar/internal/db"
	"github.com/camilo/tender-radar/internal/ingest"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	cfg, err := ingest.LoadSourceConfig("")
	if err != nil {
		log.Fatalf("Failed to load source config: %v", err)
	}
	fetcher := ingest.NewSocrataFetcher(cfg)

	srv := api.NewServer(pool, fetcher)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
