package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgreene/tracksim/schemas"
)

func sampleEvent() *schemas.SyntheticEvent {
	at := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	return &schemas.SyntheticEvent{
		Type:            schemas.EventClick,
		Target:          "title_news",
		Page:            "/home",
		Timestamp:       at.UnixMilli(),
		MockIP:          "10.0.0.1",
		MockLocation:    schemas.GeoLocation{Country: "CN", Region: "Beijing", City: "Beijing"},
		CustomCreatedAt: at.Format(schemas.CreatedAtLayout),
	}
}

// failingTransport never reaches the network.
type failingTransport struct {
	calls atomic.Int32
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls.Add(1)
	return nil, errors.New("dial tcp: connection refused")
}

func newTestClient(t *testing.T, cfg Config, hc *http.Client) *Client {
	t.Helper()
	c, err := NewClient(cfg, hc, nil)
	require.NoError(t, err)
	return c
}

func TestSend_PostsJSON(t *testing.T) {
	var got schemas.SyntheticEvent
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/track", r.URL.Path)
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{TrackURL: srv.URL + "/api/track", APIKey: "k"}, srv.Client())
	res := c.Send(context.Background(), sampleEvent())

	require.True(t, res.OK(), res.String())
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, *sampleEvent(), got)
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "k", headers.Get("X-API-Key"))
	assert.NotEmpty(t, headers.Get("X-Request-Id"))
}

func TestSend_NonOKIsRejected(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusBadRequest, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c := newTestClient(t, Config{TrackURL: srv.URL, Retries: 3, RetryDelay: time.Millisecond}, srv.Client())
		res := c.Send(context.Background(), sampleEvent())
		srv.Close()

		assert.Equal(t, RejectedStatus, res.Outcome, "status %d", status)
		assert.Equal(t, status, res.StatusCode)
		assert.Error(t, res.Err)
	}
}

func TestSend_TransportFailure(t *testing.T) {
	ft := &failingTransport{}
	c := newTestClient(t, Config{TrackURL: "http://tracking.invalid/api/track"}, &http.Client{Transport: ft})

	res := c.Send(context.Background(), sampleEvent())
	assert.Equal(t, TransportFailure, res.Outcome)
	assert.Zero(t, res.StatusCode)
	assert.ErrorContains(t, res.Err, "connection refused")
	assert.Equal(t, int32(1), ft.calls.Load(), "no retries by default")
}

func TestSend_TimeoutIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, Config{TrackURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)

	start := time.Now()
	res := c.Send(context.Background(), sampleEvent())
	assert.Equal(t, TransportFailure, res.Outcome)
	assert.Error(t, res.Err)
	assert.Zero(t, res.StatusCode)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSend_RetriesTransportErrors(t *testing.T) {
	ft := &failingTransport{}
	cfg := Config{
		TrackURL:      "http://tracking.invalid/api/track",
		Retries:       2,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: time.Millisecond,
	}
	c := newTestClient(t, cfg, &http.Client{Transport: ft})

	res := c.Send(context.Background(), sampleEvent())
	assert.Equal(t, TransportFailure, res.Outcome)
	assert.Equal(t, int32(3), ft.calls.Load())
}

func TestReset(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{TrackURL: srv.URL + "/api/track", ResetURL: srv.URL + "/api/admin/reset"}, srv.Client())
	res := c.Reset(context.Background())
	assert.True(t, res.OK())
	assert.Equal(t, http.MethodDelete, method)
}

func TestReset_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{TrackURL: srv.URL, ResetURL: srv.URL}, srv.Client())
	res := c.Reset(context.Background())
	assert.Equal(t, RejectedStatus, res.Outcome)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestReset_NotConfigured(t *testing.T) {
	c := newTestClient(t, Config{TrackURL: "http://localhost:1/api/track"}, nil)
	res := c.Reset(context.Background())
	assert.Equal(t, TransportFailure, res.Outcome)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "ok", cfg: Config{TrackURL: "https://a.test/api/track", ResetURL: "https://a.test/reset"}},
		{name: "missing track", cfg: Config{}, wantErr: "track url is required"},
		{name: "bad scheme", cfg: Config{TrackURL: "ftp://a.test/x"}, wantErr: "http or https"},
		{name: "no host", cfg: Config{TrackURL: "http:///x"}, wantErr: "no host"},
		{name: "bad reset", cfg: Config{TrackURL: "http://a.test", ResetURL: "reset"}, wantErr: "reset url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "transport_failure", TransportFailure.String())
	assert.Equal(t, "rejected_status", RejectedStatus.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
