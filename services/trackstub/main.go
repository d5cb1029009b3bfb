package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lgreene/tracksim/pkg/config"
	"github.com/lgreene/tracksim/pkg/logging"
	"github.com/lgreene/tracksim/schemas"
)

const maxBodyBytes = 64 << 10

var (
	stubRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackstub_requests_total",
			Help: "Total number of requests handled by the tracking stub.",
		},
		[]string{"path", "status"},
	)
	stubEventsStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackstub_events_stored",
			Help: "Events currently held in memory.",
		},
	)
	stubEventsByType = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackstub_events_accepted_total",
			Help: "Accepted events by type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(stubRequestsTotal)
	prometheus.MustRegister(stubEventsStored)
	prometheus.MustRegister(stubEventsByType)
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())
}

func main() {
	logger := logging.NewLogger()
	config.LoadEnv(logger)
	logging.ApplyEnv(logger)

	defaultPort, err := config.LookupEnvInt("PORT", 8080)
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	port := flag.Int("port", defaultPort, "HTTP port")
	flag.Parse()

	apiKey := config.GetEnv("API_KEY", "")
	if apiKey == "" {
		logger.Warn("API_KEY environment variable not set. Authentication disabled.")
	} else {
		logger.Info("API Key authentication enabled.")
	}

	events := &EventLog{}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      newMux(events, apiKey, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("Starting tracking stub on %s...", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down tracking stub...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
		os.Exit(1)
	}
}

func newMux(events *EventLog, apiKey string, logger logging.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/track", authMiddleware(apiKey, handleTrack(events, logger)))
	mux.Handle("/api/admin/reset", authMiddleware(apiKey, handleReset(events, logger)))
	mux.Handle("/api/events/count", authMiddleware(apiKey, handleCount(events)))

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("up"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	return mux
}

// authMiddleware checks for X-API-Key header if apiKey is configured
func authMiddleware(apiKey string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if apiKey != "" && r.Header.Get("X-API-Key") != apiKey {
			writeErrorJSON(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

func writeErrorJSON(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": msg,
		"code":  code,
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func handleTrack(events *EventLog, logger logging.Logger) http.HandlerFunc {
	const path = "/api/track"
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			stubRequestsTotal.WithLabelValues(path, "405").Inc()
			writeErrorJSON(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !isJSON(r) {
			stubRequestsTotal.WithLabelValues(path, "415").Inc()
			writeErrorJSON(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			stubRequestsTotal.WithLabelValues(path, "500").Inc()
			writeErrorJSON(w, http.StatusInternalServerError, "Failed to read body")
			return
		}

		event, err := schemas.ParseSyntheticEvent(body)
		if err != nil {
			stubRequestsTotal.WithLabelValues(path, "400").Inc()
			writeErrorJSON(w, http.StatusBadRequest, fmt.Sprintf("Invalid event: %v", err))
			return
		}

		n := events.Append(*event)
		stubEventsStored.Set(float64(n))
		stubEventsByType.WithLabelValues(string(event.Type)).Inc()
		stubRequestsTotal.WithLabelValues(path, "200").Inc()
		logger.WithFields(logging.Fields{
			"type":       event.Type,
			"page":       event.Page,
			"mock_ip":    event.MockIP,
			"created_at": event.CustomCreatedAt,
		}).Debug("Accepted event")

		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "stored": n})
	}
}

func handleReset(events *EventLog, logger logging.Logger) http.HandlerFunc {
	const path = "/api/admin/reset"
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			stubRequestsTotal.WithLabelValues(path, "405").Inc()
			writeErrorJSON(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		removed := events.Reset()
		stubEventsStored.Set(0)
		stubRequestsTotal.WithLabelValues(path, "200").Inc()
		logger.WithField("removed", removed).Info("Event log reset")

		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "removed": removed})
	}
}

func handleCount(events *EventLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeErrorJSON(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": events.Count()})
	}
}
