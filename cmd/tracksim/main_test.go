package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgreene/tracksim/pkg/logging"
	"github.com/lgreene/tracksim/pkg/storage"
	"github.com/lgreene/tracksim/schemas"
)

type fakeAPI struct {
	resetStatus int
	posts       atomic.Int64
	resets      atomic.Int64
	invalid     atomic.Int64
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/api/admin/reset":
			f.resets.Add(1)
			w.WriteHeader(f.resetStatus)
		case r.Method == http.MethodPost && r.URL.Path == "/api/track":
			f.posts.Add(1)
			body, _ := io.ReadAll(r.Body)
			if _, err := schemas.ParseSyntheticEvent(body); err != nil {
				f.invalid.Add(1)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOptions(srv *httptest.Server, total int) options {
	return options{
		TrackURL:               srv.URL + "/api/track",
		ResetURL:               srv.URL + "/api/admin/reset",
		Total:                  total,
		Users:                  5,
		DaysBack:               30,
		Timeout:                2 * time.Second,
		Workers:                1,
		Seed:                   7,
		Reset:                  resetYes,
		ContinueOnResetFailure: true,
	}
}

func TestConfirmReset(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"  YES \n", true},
		{"Y", true},
		{"n\n", false},
		{"yeah\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got := confirmReset(strings.NewReader(tt.input), &out)
			assert.Equal(t, tt.want, got)
			assert.True(t, strings.HasPrefix(out.String(), resetPrompt))
		})
	}
}

func TestParseResetMode(t *testing.T) {
	for _, s := range []string{"ask", "YES", " no "} {
		_, err := parseResetMode(s)
		assert.NoError(t, err, s)
	}
	_, err := parseResetMode("maybe")
	assert.Error(t, err)
}

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := parseOptions(nil)
	require.NoError(t, err)

	assert.Equal(t, defaultTrackURL, opts.TrackURL)
	assert.Equal(t, defaultResetURL, opts.ResetURL)
	assert.Equal(t, 500, opts.Total)
	assert.Equal(t, 50, opts.Users)
	assert.Equal(t, 30, opts.DaysBack)
	assert.Equal(t, 1, opts.Workers)
	assert.Equal(t, resetAsk, opts.Reset)
	assert.True(t, opts.ContinueOnResetFailure)
}

func TestParseOptions_EnvAndFlags(t *testing.T) {
	t.Setenv("TOTAL_REQUESTS", "7")
	t.Setenv("RESET", "no")
	t.Setenv("TRACK_API_KEY", "secret")

	opts, err := parseOptions([]string{"-users", "3", "-workers", "4"})
	require.NoError(t, err)

	assert.Equal(t, 7, opts.Total)
	assert.Equal(t, 3, opts.Users)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, resetNo, opts.Reset)
	assert.Equal(t, "secret", opts.APIKey)
}

func TestParseOptions_Invalid(t *testing.T) {
	tests := map[string][]string{
		"zero total":     {"-total", "0"},
		"zero users":     {"-users", "0"},
		"zero days back": {"-days-back", "0"},
		"zero workers":   {"-workers", "0"},
		"bad track url":  {"-track-url", "ftp://example.com/track"},
		"bad reset mode": {"-reset", "sometimes"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseOptions(args)
			assert.Error(t, err)
		})
	}
}

func TestParseOptions_MalformedEnv(t *testing.T) {
	tests := map[string]struct {
		key, value string
	}{
		"total":    {"TOTAL_REQUESTS", "5O"},
		"users":    {"USER_POOL_SIZE", "many"},
		"timeout":  {"HTTP_TIMEOUT", "10"},
		"qps":      {"QPS", "fast"},
		"seed":     {"SEED", "0x"},
		"continue": {"CONTINUE_ON_RESET_FAILURE", "nope"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := parseOptions(nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestParseOptions_DaysBackTooLarge(t *testing.T) {
	_, err := parseOptions([]string{"-days-back", "200000"})
	assert.Error(t, err)
}

func TestRun_ResetThenSend(t *testing.T) {
	api := &fakeAPI{resetStatus: http.StatusOK}
	srv := api.server(t)

	rep, err := run(context.Background(), testOptions(srv, 20), strings.NewReader(""), io.Discard, nil, logging.NewDiscardLogger())
	require.NoError(t, err)

	assert.Equal(t, int64(1), api.resets.Load())
	assert.Equal(t, int64(20), api.posts.Load())
	assert.Zero(t, api.invalid.Load())
	assert.Equal(t, 20, rep.Successes)
}

// Scenario D: the reset endpoint answers 500 and the send phase still runs.
func TestRun_ResetFailureContinues(t *testing.T) {
	api := &fakeAPI{resetStatus: http.StatusInternalServerError}
	srv := api.server(t)

	rep, err := run(context.Background(), testOptions(srv, 10), strings.NewReader(""), io.Discard, nil, logging.NewDiscardLogger())
	require.NoError(t, err)

	assert.Equal(t, int64(1), api.resets.Load())
	assert.Equal(t, 10, rep.Attempts)
	assert.Equal(t, 10, rep.Successes)
}

func TestRun_ResetFailureAborts(t *testing.T) {
	api := &fakeAPI{resetStatus: http.StatusInternalServerError}
	srv := api.server(t)

	opts := testOptions(srv, 10)
	opts.ContinueOnResetFailure = false

	_, err := run(context.Background(), opts, strings.NewReader(""), io.Discard, nil, logging.NewDiscardLogger())
	require.ErrorIs(t, err, errResetFailed)
	assert.Zero(t, api.posts.Load())
}

func TestRun_PromptDeclined(t *testing.T) {
	api := &fakeAPI{resetStatus: http.StatusOK}
	srv := api.server(t)

	opts := testOptions(srv, 3)
	opts.Reset = resetAsk

	var out bytes.Buffer
	rep, err := run(context.Background(), opts, strings.NewReader("n\n"), &out, nil, logging.NewDiscardLogger())
	require.NoError(t, err)

	assert.Contains(t, out.String(), resetPrompt)
	assert.Zero(t, api.resets.Load())
	assert.Equal(t, 3, rep.Successes)
}

func TestRun_PromptConfirmed(t *testing.T) {
	api := &fakeAPI{resetStatus: http.StatusOK}
	srv := api.server(t)

	opts := testOptions(srv, 3)
	opts.Reset = resetAsk

	_, err := run(context.Background(), opts, strings.NewReader("yes\n"), io.Discard, nil, logging.NewDiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(1), api.resets.Load())
}

func TestRun_WritesReport(t *testing.T) {
	api := &fakeAPI{resetStatus: http.StatusOK}
	srv := api.server(t)

	opts := testOptions(srv, 25)
	opts.Reset = resetNo
	opts.ReportDir = t.TempDir()

	_, err := run(context.Background(), opts, strings.NewReader(""), io.Discard, nil, logging.NewDiscardLogger())
	require.NoError(t, err)

	store, err := storage.NewLocalStore(opts.ReportDir)
	require.NoError(t, err)
	keys, err := store.List(context.Background(), "reports")
	require.NoError(t, err)
	require.Len(t, keys, 2)

	var summaryKey string
	for _, k := range keys {
		if strings.HasSuffix(k, "summary.json") {
			summaryKey = k
		}
	}
	require.NotEmpty(t, summaryKey, "summary.json missing from %v", keys)

	rc, err := store.Get(context.Background(), summaryKey)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	var summary struct {
		Events    int `json:"events"`
		Successes int `json:"successes"`
	}
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 25, summary.Events)
	assert.Equal(t, 25, summary.Successes)
}

func TestRun_Cancelled(t *testing.T) {
	api := &fakeAPI{resetStatus: http.StatusOK}
	srv := api.server(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := testOptions(srv, 50)
	opts.Reset = resetNo
	rep, err := run(ctx, opts, strings.NewReader(""), io.Discard, nil, logging.NewDiscardLogger())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, rep.Attempts, 50)
}
