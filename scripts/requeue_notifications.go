package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"salonbook/internal/database"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		dbPath = flag.String("db", "./data/outbox.db", "path to sqlite outbox")
		dryRun = flag.Bool("dry-run", false, "only list failed notifications")
	)
	flag.Parse()

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed, err := db.GetFailedTasks(ctx)
	if err != nil {
		return err
	}
	for _, task := range failed {
		lastErr := ""
		if task.LastError != nil {
			lastErr = *task.LastError
		}
		logger.Info().
			Int64("id", task.ID).
			Str("event_id", task.EventID).
			Int("retries", task.RetryCount).
			Str("last_error", lastErr).
			Msg("failed notification")
	}

	if *dryRun {
		return nil
	}

	n, err := db.RequeueFailed(ctx)
	if err != nil {
		return err
	}

	counts, err := db.CountByStatus(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int64("requeued", n).Interface("outbox", counts).Msg("done")
	return nil
}
