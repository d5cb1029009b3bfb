package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lgreene/tracksim/pkg/config"
	"github.com/lgreene/tracksim/pkg/logging"
	"github.com/lgreene/tracksim/pkg/report"
	"github.com/lgreene/tracksim/pkg/storage"
)

func main() {
	logger := logging.NewLogger()
	config.LoadEnv(logger)
	logging.ApplyEnv(logger)

	var retentionDays int
	var dryRun bool
	var dataDir string

	defaultRetention, err := config.LookupEnvInt("RETENTION_DAYS", 30)
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	flag.IntVar(&retentionDays, "retention-days", defaultRetention, "Delete reports older than this many days")
	flag.BoolVar(&dryRun, "dry-run", false, "Print reports that would be deleted without actually deleting")
	flag.StringVar(&dataDir, "report-dir", config.GetEnv("REPORT_DIR", ""), "Report directory (used for local storage)")
	flag.Parse()

	if retentionDays < 1 {
		logger.Fatalf("retention-days must be at least 1 (got %d)", retentionDays)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, dataDir, storage.S3ConfigFromEnv(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize report store")
	}

	cutoff := cutoffDate(time.Now(), retentionDays)
	logger.WithFields(logging.Fields{
		"retention_days": retentionDays,
		"cutoff":         cutoff,
		"dry_run":        dryRun,
	}).Info("Purging old run reports")

	deleted, err := purgeOldData(ctx, store, report.Prefix, cutoff, dryRun, logger)
	if err != nil {
		logger.WithError(err).Error("Purge failed")
	}

	action := "deleted"
	if dryRun {
		action = "would delete"
	}
	logger.Infof("Purge complete: %s %d objects", action, deleted)
}

func cutoffDate(now time.Time, retentionDays int) string {
	return now.UTC().AddDate(0, 0, -retentionDays).Format("2006-01-02")
}

// purgeOldData lists all keys under a prefix and deletes those whose date partition is older than the cutoff.
func purgeOldData(ctx context.Context, store storage.ObjectStore, prefix, cutoffDate string, dryRun bool, logger logging.Logger) (int, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", prefix, err)
	}

	deleted := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		dateStr := extractDate(key)
		if dateStr == "" || dateStr >= cutoffDate {
			continue
		}
		entry := logger.WithFields(logging.Fields{"key": key, "date": dateStr})
		if dryRun {
			entry.Info("[dry-run] would delete")
		} else {
			if err := store.Delete(ctx, key); err != nil {
				entry.WithError(err).Warn("Failed to delete")
				continue
			}
			entry.Info("Deleted")
		}
		deleted++
	}
	return deleted, nil
}

// extractDate finds the first YYYY-MM-DD pattern anywhere in a key.
func extractDate(key string) string {
	for i := 0; i <= len(key)-10; i++ {
		candidate := key[i : i+10]
		if candidate[4] == '-' && candidate[7] == '-' {
			if _, err := time.Parse("2006-01-02", candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
