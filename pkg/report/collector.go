package report

import (
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/lgreene/tracksim/pkg/simulate"
	"github.com/lgreene/tracksim/pkg/tracker"
	"github.com/lgreene/tracksim/schemas"
)

// HourRow is one hour-of-day bucket of a run, as stored in hours.parquet.
type HourRow struct {
	RunID     string `json:"run_id" parquet:"run_id"`
	Hour      int32  `json:"hour" parquet:"hour"`
	Events    int64  `json:"events" parquet:"events"`
	Successes int64  `json:"successes" parquet:"successes"`
	Views     int64  `json:"views" parquet:"views"`
	Clicks    int64  `json:"clicks" parquet:"clicks"`
	Hovers    int64  `json:"hovers" parquet:"hovers"`
	Inputs    int64  `json:"inputs" parquet:"inputs"`
}

type StayTimeStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	Max   float64 `json:"max"`
}

// Summary is the summary.json document of a run.
type Summary struct {
	RunID             string         `json:"run_id"`
	StartedAt         time.Time      `json:"started_at"`
	Events            int            `json:"events"`
	Successes         int            `json:"successes"`
	TransportFailures int            `json:"transport_failures"`
	Rejected          int            `json:"rejected"`
	ByType            map[string]int `json:"by_type"`
	ByCountry         map[string]int `json:"by_country"`
	NightShare        float64        `json:"night_share"`
	StayTimeMs        StayTimeStats  `json:"stay_time_ms"`
}

type hourBucket struct {
	events, successes int64
	byType            map[schemas.EventType]int64
}

// Collector aggregates sent events. It never keeps the events themselves.
type Collector struct {
	mu  sync.Mutex
	loc *time.Location

	hours     [24]hourBucket
	stays     []float64
	byType    map[string]int
	byCountry map[string]int
	outcomes  map[tracker.Outcome]int
	events    int
	night     int
}

// NewCollector buckets hours in loc; nil means time.Local.
func NewCollector(loc *time.Location) *Collector {
	if loc == nil {
		loc = time.Local
	}
	c := &Collector{
		loc:       loc,
		byType:    make(map[string]int),
		byCountry: make(map[string]int),
		outcomes:  make(map[tracker.Outcome]int),
	}
	for i := range c.hours {
		c.hours[i].byType = make(map[schemas.EventType]int64)
	}
	return c
}

// Record adds one send. Safe for concurrent use.
func (c *Collector) Record(event *schemas.SyntheticEvent, res tracker.Result) {
	at := event.OccurredAt().In(c.loc)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.events++
	c.outcomes[res.Outcome]++
	c.byType[string(event.Type)]++
	c.byCountry[event.MockLocation.Country]++
	if simulate.IsNight(at) {
		c.night++
	}
	if event.Type == schemas.EventView {
		c.stays = append(c.stays, float64(event.StayTime))
	}

	b := &c.hours[at.Hour()]
	b.events++
	if res.OK() {
		b.successes++
	}
	b.byType[event.Type]++
}

func (c *Collector) Summary(runID string, startedAt time.Time) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		RunID:             runID,
		StartedAt:         startedAt.UTC(),
		Events:            c.events,
		Successes:         c.outcomes[tracker.Success],
		TransportFailures: c.outcomes[tracker.TransportFailure],
		Rejected:          c.outcomes[tracker.RejectedStatus],
		ByType:            copyCounts(c.byType),
		ByCountry:         copyCounts(c.byCountry),
	}
	if c.events > 0 {
		s.NightShare = float64(c.night) / float64(c.events)
	}

	if len(c.stays) > 0 {
		data := stats.Float64Data(c.stays)
		s.StayTimeMs.Count = len(c.stays)
		s.StayTimeMs.Mean, _ = data.Mean()
		s.StayTimeMs.P50, _ = data.Percentile(50)
		s.StayTimeMs.P95, _ = data.Percentile(95)
		s.StayTimeMs.Max, _ = data.Max()
	}
	return s
}

// HourRows returns the 24 hour buckets in order, empty hours included.
func (c *Collector) HourRows(runID string) []HourRow {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]HourRow, 0, len(c.hours))
	for h, b := range c.hours {
		rows = append(rows, HourRow{
			RunID:     runID,
			Hour:      int32(h),
			Events:    b.events,
			Successes: b.successes,
			Views:     b.byType[schemas.EventView],
			Clicks:    b.byType[schemas.EventClick],
			Hovers:    b.byType[schemas.EventHover],
			Inputs:    b.byType[schemas.EventInput],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Hour < rows[j].Hour })
	return rows
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
