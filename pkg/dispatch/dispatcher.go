package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lgreene/tracksim/pkg/logging"
	"github.com/lgreene/tracksim/pkg/tracker"
	"github.com/lgreene/tracksim/schemas"
)

// DefaultProgressEvery is the index stride for progress lines.
const DefaultProgressEvery = 50

// ErrAlreadyStarted is returned by Run on a dispatcher that already ran.
var ErrAlreadyStarted = errors.New("dispatcher already started")

// State is the lifecycle of a Dispatcher: NotStarted -> Running -> Completed.
type State int32

const (
	NotStarted State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// EventSource produces the next event to send.
type EventSource interface {
	Next() *schemas.SyntheticEvent
}

// Sender delivers one event.
type Sender interface {
	Send(ctx context.Context, event *schemas.SyntheticEvent) tracker.Result
}

// Observation is passed to an Observer after every send.
type Observation struct {
	Index  int
	Event  *schemas.SyntheticEvent
	Result tracker.Result
}

// Observer must be safe for concurrent use when Workers > 1.
type Observer func(Observation)

type Config struct {
	// Total is the exact number of send attempts.
	Total int

	// Workers bounds in-flight requests. 1 keeps sends strictly sequential.
	Workers int

	// QPS paces sends across all workers; 0 disables pacing.
	QPS float64

	ProgressEvery int
}

func (c Config) Validate() error {
	if c.Total < 1 {
		return fmt.Errorf("total must be at least 1 (got %d)", c.Total)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative (got %d)", c.Workers)
	}
	if c.QPS < 0 {
		return fmt.Errorf("qps must not be negative (got %v)", c.QPS)
	}
	return nil
}

// Report summarizes a run.
type Report struct {
	Total             int
	Attempts          int
	Successes         int
	TransportFailures int
	Rejected          int
	Elapsed           time.Duration
}

type Option func(*Dispatcher)

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// Dispatcher sends Total synthesized events and counts how many the API
// accepted. A Dispatcher runs once.
type Dispatcher struct {
	cfg      Config
	source   EventSource
	sender   Sender
	logger   logging.Logger
	metrics  *Metrics
	observer Observer

	state atomic.Int32
}

func New(cfg Config, source EventSource, sender Sender, logger logging.Logger, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || sender == nil {
		return nil, errors.New("event source and sender are required")
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	d := &Dispatcher{cfg: cfg, source: source, sender: sender, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

type tally struct {
	attempts, successes, transport, rejected atomic.Int64
}

func (t *tally) record(res tracker.Result) {
	t.attempts.Add(1)
	switch res.Outcome {
	case tracker.Success:
		t.successes.Add(1)
	case tracker.TransportFailure:
		t.transport.Add(1)
	case tracker.RejectedStatus:
		t.rejected.Add(1)
	}
}

// Run performs the batch. Individual send failures never stop it; only a
// cancelled ctx ends it early, in which case the partial report is returned
// together with ctx.Err().
func (d *Dispatcher) Run(ctx context.Context) (Report, error) {
	if !d.state.CompareAndSwap(int32(NotStarted), int32(Running)) {
		return Report{}, ErrAlreadyStarted
	}
	defer d.state.Store(int32(Completed))

	total := d.cfg.Total
	d.logger.WithFields(logging.Fields{
		"total":   total,
		"workers": d.cfg.Workers,
		"qps":     d.cfg.QPS,
	}).Infof("Generating %d synthetic events...", total)

	var limiter *rate.Limiter
	if d.cfg.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(d.cfg.QPS), 1)
	}

	start := time.Now()
	var t tally
	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		i := i
		g.Go(func() error {
			d.dispatchOne(ctx, i, &t)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Total:             total,
		Attempts:          int(t.attempts.Load()),
		Successes:         int(t.successes.Load()),
		TransportFailures: int(t.transport.Load()),
		Rejected:          int(t.rejected.Load()),
		Elapsed:           time.Since(start),
	}

	entry := d.logger.WithFields(logging.Fields{
		"attempts":           report.Attempts,
		"transport_failures": report.TransportFailures,
		"rejected":           report.Rejected,
		"elapsed":            report.Elapsed.Round(time.Millisecond).String(),
	})
	if err := ctx.Err(); err != nil {
		entry.Warnf("Interrupted: %d of %d events accepted", report.Successes, total)
		return report, err
	}
	entry.Infof("Done! %d of %d events accepted", report.Successes, total)
	return report, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, i int, t *tally) {
	event := d.source.Next()
	res := d.sender.Send(ctx, event)
	t.record(res)
	d.metrics.observeSend(event.Type, res)

	switch res.Outcome {
	case tracker.Success:
		if i%d.cfg.ProgressEvery == 0 {
			d.logger.Infof("Progress: %d/%d (%s)", i, d.cfg.Total, event.OccurredAt().Format("2006-01-02 15:04"))
		}
	case tracker.TransportFailure:
		d.logger.WithError(res.Err).WithField("index", i).Warn("Request failed")
	case tracker.RejectedStatus:
		d.logger.WithFields(logging.Fields{
			"index":  i,
			"status": res.StatusCode,
		}).Warn("Request rejected")
	}

	if d.observer != nil {
		d.observer(Observation{Index: i, Event: event, Result: res})
	}
}
