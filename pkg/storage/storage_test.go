package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"reports/2025-06-01/run/summary.json", true},
		{"a", true},
		{"a/./b", true},
		{"", false},
		{"/etc/passwd", false},
		{"..", false},
		{"../x", false},
		{"a/../../x", false},
		{"a/../b", false},
		{`a\b`, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.key, err)
			}
			if !tt.valid {
				if err == nil {
					t.Errorf("expected %q to be rejected", tt.key)
				} else if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("expected ErrInvalidKey, got %v", err)
				}
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"typed NotFound", &types.NotFound{}, true},
		{"typed NoSuchKey", fmt.Errorf("wrapped: %w", &types.NoSuchKey{}), true},
		{"generic NotFound code", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := isNotFound(c.err); got != c.want {
				t.Errorf("isNotFound(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (S3Config{Region: "us-east-1"}).Validate(); err == nil {
		t.Error("expected error for missing bucket")
	}
	if err := (S3Config{Bucket: "b"}).Validate(); err == nil {
		t.Error("expected error for missing region")
	}
	if err := (S3Config{Bucket: "b", Region: "us-east-1"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpen_Local(t *testing.T) {
	store, err := Open(context.Background(), t.TempDir(), S3Config{}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Errorf("expected *LocalStore, got %T", store)
	}
}

func TestOpen_NothingConfigured(t *testing.T) {
	if _, err := Open(context.Background(), "", S3Config{}, nil); err == nil {
		t.Error("expected error when no storage is configured")
	}
}

func TestS3ConfigFromEnv(t *testing.T) {
	t.Setenv("S3_BUCKET", "reports")
	t.Setenv("S3_REGION", "")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")

	cfg := S3ConfigFromEnv()
	if cfg.Bucket != "reports" || cfg.Endpoint != "http://minio:9000" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Region != "us-east-1" {
		t.Errorf("expected default region, got %q", cfg.Region)
	}
}
