package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/camilo/tender-radar/internal/db"
	"github.com/jedib0t/go-pretty/v6/table"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	runs, err := db.NewStore(pool).ListSyncRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Status", "Fetched", "Created", "Updated", "Errors", "Duration", "Started At"})

	for _, run := range runs {
		duration := "Running..."
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
		}

		t.AppendRow(table.Row{run.RunID.String()[:8], run.Status, run.Fetched, run.Created, run.Updated, run.Errors, duration, run.StartedAt.Format("15:04:05")})
	}
	t.Render()
}
