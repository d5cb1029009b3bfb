package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/lgreene/tracksim/pkg/config"
	"github.com/lgreene/tracksim/pkg/logging"
)

// S3ConfigFromEnv reads S3_ENDPOINT, S3_REGION, S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Endpoint:  config.GetEnv("S3_ENDPOINT", ""),
		Region:    config.GetEnv("S3_REGION", "us-east-1"),
		Bucket:    config.GetEnv("S3_BUCKET", ""),
		AccessKey: config.GetEnv("S3_ACCESS_KEY", ""),
		SecretKey: config.GetEnv("S3_SECRET_KEY", ""),
	}
}

// Open picks S3 when a bucket is configured and the local directory otherwise.
func Open(ctx context.Context, localDir string, s3cfg S3Config, logger logging.Logger) (ObjectStore, error) {
	if s3cfg.Bucket != "" {
		if logger != nil {
			logger.WithField("bucket", s3cfg.Bucket).Info("Using S3/MinIO storage...")
		}
		store, err := NewS3Store(ctx, s3cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
		}
		return store, nil
	}
	if localDir == "" {
		return nil, errors.New("no storage configured: set a local directory or S3_BUCKET")
	}
	if logger != nil {
		logger.WithField("dir", localDir).Info("Using local storage...")
	}
	store, err := NewLocalStore(localDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local store: %w", err)
	}
	return store, nil
}
