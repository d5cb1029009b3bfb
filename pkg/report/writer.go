package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/lgreene/tracksim/pkg/storage"
)

const (
	Prefix       = "reports"
	SummaryFile  = "summary.json"
	HoursFile    = "hours.parquet"
	dayKeyLayout = "2006-01-02"
)

// RunPrefix is reports/<YYYY-MM-DD>/<run_id>, dated by run start in UTC.
func RunPrefix(startedAt time.Time, runID string) string {
	return path.Join(Prefix, startedAt.UTC().Format(dayKeyLayout), runID)
}

// Writer persists run reports to an object store.
type Writer struct {
	store storage.ObjectStore
}

func NewWriter(store storage.ObjectStore) *Writer {
	return &Writer{store: store}
}

// Write stores summary.json and hours.parquet for the run and returns their keys.
func (w *Writer) Write(ctx context.Context, runID string, startedAt time.Time, c *Collector) ([]string, error) {
	prefix := RunPrefix(startedAt, runID)

	summary, err := json.MarshalIndent(c.Summary(runID, startedAt), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	summaryKey := path.Join(prefix, SummaryFile)
	if err := w.store.Put(ctx, summaryKey, bytes.NewReader(summary)); err != nil {
		return nil, fmt.Errorf("put %s: %w", summaryKey, err)
	}

	hours, err := encodeHours(c.HourRows(runID))
	if err != nil {
		return []string{summaryKey}, err
	}
	hoursKey := path.Join(prefix, HoursFile)
	if err := w.store.Put(ctx, hoursKey, bytes.NewReader(hours)); err != nil {
		return []string{summaryKey}, fmt.Errorf("put %s: %w", hoursKey, err)
	}

	return []string{summaryKey, hoursKey}, nil
}

func encodeHours(rows []HourRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[HourRow](&buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
