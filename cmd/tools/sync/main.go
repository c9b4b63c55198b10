package main

import (
	"context"
	"flag"
	"log"

	"github.com/camilo/tender-radar/internal/db"
	"github.com/camilo/tender-radar/internal/ingest"
)

func main() {
	configPath := flag.String("config", "", "Path to a source config file (defaults to the embedded one)")
	flag.Parse()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	cfg, err := ingest.LoadSourceConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load source config: %v", err)
	}

	store := db.NewStore(pool)
	syncer := ingest.NewSyncer(ingest.NewSocrataFetcher(cfg), store, store)

	log.Print("Starting manual sync batch")
	stats, err := syncer.SyncBatch(ctx)
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	log.Printf("Sync finished. Fetched: %d, Created: %d, Updated: %d, Unchanged: %d, Errors: %d",
		stats.Fetched, stats.Created, stats.Updated, stats.Unchanged, stats.Errors)
}
