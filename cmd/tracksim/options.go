package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/lgreene/tracksim/pkg/config"
	"github.com/lgreene/tracksim/pkg/dispatch"
	"github.com/lgreene/tracksim/pkg/simulate"
	"github.com/lgreene/tracksim/pkg/storage"
	"github.com/lgreene/tracksim/pkg/tracker"
)

const (
	defaultTrackURL = "https://lost-track-game.com/api/track"
	defaultResetURL = "https://lost-track-game.com/api/admin/reset"
)

type resetMode string

const (
	resetAsk resetMode = "ask"
	resetYes resetMode = "yes"
	resetNo  resetMode = "no"
)

func parseResetMode(s string) (resetMode, error) {
	switch m := resetMode(strings.ToLower(strings.TrimSpace(s))); m {
	case resetAsk, resetYes, resetNo:
		return m, nil
	}
	return "", fmt.Errorf("invalid reset mode %q (want ask, yes or no)", s)
}

type options struct {
	TrackURL string
	ResetURL string
	APIKey   string

	Total    int
	Users    int
	DaysBack int
	Timeout  time.Duration
	Workers  int
	QPS      float64
	Retries  int
	Seed     int64

	Reset                  resetMode
	ContinueOnResetFailure bool

	ReportDir      string
	S3             storage.S3Config
	PushgatewayURL string
}

// envDefaults reads flag defaults from the environment and keeps every parse error.
type envDefaults struct {
	errs []error
}

func (e *envDefaults) keep(err error) {
	if err != nil {
		e.errs = append(e.errs, err)
	}
}

func (e *envDefaults) getInt(key string, def int) int {
	v, err := config.LookupEnvInt(key, def)
	e.keep(err)
	return v
}

func (e *envDefaults) getInt64(key string, def int64) int64 {
	v, err := config.LookupEnvInt64(key, def)
	e.keep(err)
	return v
}

func (e *envDefaults) getFloat(key string, def float64) float64 {
	v, err := config.LookupEnvFloat(key, def)
	e.keep(err)
	return v
}

func (e *envDefaults) getBool(key string, def bool) bool {
	v, err := config.LookupEnvBool(key, def)
	e.keep(err)
	return v
}

func (e *envDefaults) getDuration(key string, def time.Duration) time.Duration {
	v, err := config.LookupEnvDuration(key, def)
	e.keep(err)
	return v
}

func (e *envDefaults) err() error {
	return errors.Join(e.errs...)
}

// parseOptions reads flags from args. Every flag defaults to its environment
// variable; a set but malformed variable is an error.
func parseOptions(args []string) (options, error) {
	var opts options
	var reset string
	env := &envDefaults{}

	fs := flag.NewFlagSet("tracksim", flag.ContinueOnError)
	fs.StringVar(&opts.TrackURL, "track-url", config.GetEnv("TRACK_URL", defaultTrackURL), "Tracking endpoint (POST)")
	fs.StringVar(&opts.ResetURL, "reset-url", config.GetEnv("RESET_URL", defaultResetURL), "Reset endpoint (DELETE)")
	fs.IntVar(&opts.Total, "total", env.getInt("TOTAL_REQUESTS", 500), "Number of events to send")
	fs.IntVar(&opts.Users, "users", env.getInt("USER_POOL_SIZE", 50), "Size of the simulated user pool")
	fs.IntVar(&opts.DaysBack, "days-back", env.getInt("DAYS_BACK", 30), "Spread timestamps over this many past days")
	fs.DurationVar(&opts.Timeout, "timeout", env.getDuration("HTTP_TIMEOUT", tracker.DefaultTimeout), "Per-request HTTP timeout")
	fs.IntVar(&opts.Workers, "workers", env.getInt("WORKERS", 1), "Concurrent requests in flight")
	fs.Float64Var(&opts.QPS, "qps", env.getFloat("QPS", 0), "Request rate limit across workers (0 = unlimited)")
	fs.IntVar(&opts.Retries, "retries", env.getInt("RETRIES", 0), "Retries after transport errors")
	fs.Int64Var(&opts.Seed, "seed", env.getInt64("SEED", 0), "Random seed (0 = time-based)")
	fs.StringVar(&reset, "reset", config.GetEnv("RESET", string(resetAsk)), "Reset remote data first: ask, yes or no")
	fs.BoolVar(&opts.ContinueOnResetFailure, "continue-on-reset-failure", env.getBool("CONTINUE_ON_RESET_FAILURE", true), "Send events even if the reset fails")
	fs.StringVar(&opts.ReportDir, "report-dir", config.GetEnv("REPORT_DIR", ""), "Write a run report to this directory")
	fs.StringVar(&opts.PushgatewayURL, "pushgateway", config.GetEnv("PUSHGATEWAY_URL", ""), "Push run metrics to this Prometheus Pushgateway")
	if err := env.err(); err != nil {
		return options{}, err
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	mode, err := parseResetMode(reset)
	if err != nil {
		return options{}, err
	}
	opts.Reset = mode
	opts.APIKey = config.GetEnv("TRACK_API_KEY", "")
	opts.S3 = storage.S3ConfigFromEnv()

	if err := opts.validate(); err != nil {
		return options{}, err
	}
	return opts, nil
}

func (o options) validate() error {
	if o.Users < 1 {
		return fmt.Errorf("users must be at least 1 (got %d)", o.Users)
	}
	if o.DaysBack < 1 || o.DaysBack > simulate.MaxDaysBack {
		return fmt.Errorf("days-back must be between 1 and %d (got %d)", simulate.MaxDaysBack, o.DaysBack)
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be at least 1 (got %d)", o.Workers)
	}
	if err := o.dispatchConfig().Validate(); err != nil {
		return err
	}
	return o.trackerConfig().Validate()
}

func (o options) trackerConfig() tracker.Config {
	return tracker.Config{
		TrackURL: o.TrackURL,
		ResetURL: o.ResetURL,
		APIKey:   o.APIKey,
		Timeout:  o.Timeout,
		Retries:  o.Retries,
	}
}

func (o options) dispatchConfig() dispatch.Config {
	return dispatch.Config{Total: o.Total, Workers: o.Workers, QPS: o.QPS}
}

func (o options) reportEnabled() bool {
	return o.ReportDir != "" || o.S3.Bucket != ""
}
