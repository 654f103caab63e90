package main

// Run the daily CSV export once and exit:
//   go run ./cmd/batch
//   go run ./cmd/batch -date 2026-08-27

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"docverify-backend/internal/batchexport"
	"docverify-backend/internal/bootstrap"
	"docverify-backend/internal/shared/config"
)

func main() {
	dateFlag := flag.String("date", "", "export date in JST (YYYY-MM-DD, defaults to today)")
	flag.Parse()

	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Printf("bootstrap failed: %v", err)
		os.Exit(1)
	}
	defer app.Close()

	at := time.Now()
	if *dateFlag != "" {
		at, err = time.ParseInLocation("2006-01-02", *dateFlag, batchexport.JST)
		if err != nil {
			log.Printf("invalid -date %q: %v", *dateFlag, err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	run, err := app.ExportService.RunForDate(ctx, at)
	if err != nil {
		log.Printf("export failed: %v", err)
		os.Exit(1)
	}
	log.Printf("export %s complete: %d rows -> %s", run.ExportDate, run.RowCount, run.ObjectKey)
}
