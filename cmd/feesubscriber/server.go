package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/priority-fees/internal/model"
	"github.com/rickgao/priority-fees/internal/version"
)

// feeReader is the read side of the subscriber map.
type feeReader interface {
	GetPriorityFees(marketType string, marketIndex uint16) (model.FeeLevels, bool)
	All() []model.FeeLevels
	Markets() []model.MarketRef
	Subscribed() bool
}

type pinger interface {
	Ping(ctx context.Context) error
}

type streamStatus interface {
	IsConnected() bool
}

// server serves health, fee reads, metrics and version over HTTP.
type server struct {
	fees        feeReader
	db          pinger       // nil when the recorder is disabled
	stream      streamStatus // nil when the stream is disabled
	gatherer    prometheus.Gatherer
	metricsPath string
	logger      *slog.Logger
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /fees", s.handleFees)
	mux.HandleFunc("GET /fees/{marketType}/{marketIndex}", s.handleFee)
	mux.HandleFunc("GET /version", s.handleVersion)
	if s.gatherer != nil {
		mux.Handle("GET "+s.metricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string                 `json:"status"`
		Components map[string]interface{} `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]interface{}),
	}

	// Check subscriber
	entries := len(s.fees.All())
	health.Components["subscriber"] = map[string]interface{}{
		"subscribed": s.fees.Subscribed(),
		"markets":    len(s.fees.Markets()),
		"entries":    entries,
	}
	switch {
	case !s.fees.Subscribed():
		health.Status = "unhealthy"
	case entries == 0 && len(s.fees.Markets()) > 0:
		health.Status = "degraded"
	}

	// Check database
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}
	}

	// Stream outages only degrade; polling keeps the cache fresh.
	if s.stream != nil {
		if s.stream.IsConnected() {
			health.Components["stream"] = "connected"
		} else {
			health.Components["stream"] = "disconnected"
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *server) handleFees(w http.ResponseWriter, r *http.Request) {
	fees := s.fees.All()

	if t := strings.ToLower(r.URL.Query().Get("marketType")); t != "" {
		filtered := fees[:0:0]
		for _, f := range fees {
			if f.MarketType == t {
				filtered = append(filtered, f)
			}
		}
		fees = filtered
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(fees),
		"fees":  fees,
	})
}

func (s *server) handleFee(w http.ResponseWriter, r *http.Request) {
	marketType := strings.ToLower(r.PathValue("marketType"))
	index, err := strconv.ParseUint(r.PathValue("marketIndex"), 10, 16)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid market index")
		return
	}

	fees, ok := s.fees.GetPriorityFees(marketType, uint16(index))
	if !ok {
		s.writeError(w, http.StatusNotFound, "no fees cached for market")
		return
	}

	s.writeJSON(w, http.StatusOK, fees)
}

func (s *server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, version.Get())
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
