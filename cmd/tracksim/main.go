package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/lgreene/tracksim/pkg/config"
	"github.com/lgreene/tracksim/pkg/dispatch"
	"github.com/lgreene/tracksim/pkg/logging"
	"github.com/lgreene/tracksim/pkg/report"
	"github.com/lgreene/tracksim/pkg/simulate"
	"github.com/lgreene/tracksim/pkg/storage"
	"github.com/lgreene/tracksim/pkg/tracker"
)

var errResetFailed = errors.New("reset failed")

func main() {
	logger := logging.NewLogger()
	config.LoadEnv(logger)
	logging.ApplyEnv(logger)

	opts, err := parseOptions(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = run(ctx, opts, os.Stdin, os.Stdout, nil, logger)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		stop()
		os.Exit(130)
	default:
		logger.WithError(err).Error("Run failed")
		stop()
		os.Exit(1)
	}
}

// run performs the optional reset and then the send phase. httpClient may be nil.
func run(ctx context.Context, opts options, in io.Reader, out io.Writer, httpClient *http.Client, logger logging.Logger) (dispatch.Report, error) {
	runID := newRunID()
	startedAt := time.Now()
	logger.WithField("run_id", runID).Info("Starting tracksim run")

	client, err := tracker.NewClient(opts.trackerConfig(), httpClient, logger)
	if err != nil {
		return dispatch.Report{}, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewBuildInfoCollector())
	metrics := dispatch.NewMetrics(registry)
	defer pushMetrics(opts.PushgatewayURL, runID, registry, logger)

	if shouldReset(opts.Reset, in, out) {
		if err := resetRemote(ctx, client, metrics, logger); err != nil && !opts.ContinueOnResetFailure {
			return dispatch.Report{}, err
		}
	} else {
		logger.Info("Skipping reset")
	}

	rnd := simulate.NewRand(opts.Seed)
	pool, err := simulate.NewUserPool(opts.Users, simulate.DefaultLocations, rnd)
	if err != nil {
		return dispatch.Report{}, fmt.Errorf("user pool: %w", err)
	}
	clock, err := simulate.NewClock(opts.DaysBack)
	if err != nil {
		return dispatch.Report{}, fmt.Errorf("clock: %w", err)
	}
	synth, err := simulate.NewSynthesizer(pool, clock, simulate.DefaultCatalog(), rnd)
	if err != nil {
		return dispatch.Report{}, fmt.Errorf("synthesizer: %w", err)
	}

	dispatchOpts := []dispatch.Option{dispatch.WithMetrics(metrics)}
	var collector *report.Collector
	if opts.reportEnabled() {
		collector = report.NewCollector(clock.Location)
		dispatchOpts = append(dispatchOpts, dispatch.WithObserver(func(o dispatch.Observation) {
			collector.Record(o.Event, o.Result)
		}))
	}

	d, err := dispatch.New(opts.dispatchConfig(), synth, client, logger, dispatchOpts...)
	if err != nil {
		return dispatch.Report{}, err
	}
	rep, runErr := d.Run(ctx)

	if collector != nil {
		// A cancelled run still gets its partial report.
		writeReport(context.WithoutCancel(ctx), opts, runID, startedAt, collector, logger)
	}
	return rep, runErr
}

func shouldReset(mode resetMode, in io.Reader, out io.Writer) bool {
	switch mode {
	case resetYes:
		return true
	case resetNo:
		return false
	}
	return confirmReset(in, out)
}

func resetRemote(ctx context.Context, client *tracker.Client, metrics *dispatch.Metrics, logger logging.Logger) error {
	logger.Info("Resetting remote data...")
	res := client.Reset(ctx)
	metrics.ObserveReset(res)
	if !res.OK() {
		entry := logger.WithField("outcome", res.Outcome.String())
		if res.StatusCode != 0 {
			entry = entry.WithField("status", res.StatusCode)
		}
		entry.WithError(res.Err).Error("Reset failed")
		return fmt.Errorf("%w: %v", errResetFailed, res.Err)
	}
	logger.Info("Remote data cleared")
	return nil
}

func writeReport(ctx context.Context, opts options, runID string, startedAt time.Time, c *report.Collector, logger logging.Logger) {
	store, err := storage.Open(ctx, opts.ReportDir, opts.S3, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open report store")
		return
	}
	keys, err := report.NewWriter(store).Write(ctx, runID, startedAt, c)
	if err != nil {
		logger.WithError(err).Error("Failed to write run report")
		return
	}
	for _, key := range keys {
		logger.WithField("key", key).Info("Wrote run report")
	}
}

func pushMetrics(url, runID string, registry *prometheus.Registry, logger logging.Logger) {
	if url == "" {
		return
	}
	err := push.New(url, "tracksim").
		Gatherer(registry).
		Grouping("run_id", runID).
		Push()
	if err != nil {
		logger.WithError(err).Warn("Failed to push metrics")
		return
	}
	logger.WithField("pushgateway", url).Debug("Pushed run metrics")
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
