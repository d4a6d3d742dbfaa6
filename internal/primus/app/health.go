package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bdobrica/Primus/common/version"
)

// HealthServer exposes /health and /status.
// It is optional; Primus runs without it when HTTPAddr is empty.
type HealthServer struct {
	addr      string
	state     statusProvider
	startedAt time.Time
	server    *http.Server
	mux       *http.ServeMux
}

// statusProvider is what the health server needs from the App.
type statusProvider interface {
	Snapshot(ctx context.Context) Snapshot
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status          string    `json:"status"`
	Version         string    `json:"version"`
	Commit          string    `json:"commit"`
	BuildTime       string    `json:"build_time"`
	StartedAt       time.Time `json:"started_at"`
	UptimeSecs      float64   `json:"uptime_seconds"`
	SessionID       int64     `json:"session_id"`
	TurnCount       int       `json:"turn_count"`
	AutonomyEnabled bool      `json:"autonomy_enabled"`
	Consent         bool      `json:"consent"`
	BudgetRemaining int       `json:"budget_remaining"`
	Breaker         string    `json:"llm_breaker"`
}

// NewHealthServer creates and configures the HTTP server (does not start it).
func NewHealthServer(addr string, sp statusProvider) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		addr:      addr,
		state:     sp,
		startedAt: time.Now(),
		mux:       mux,
	}
	mux.HandleFunc("GET /health", hs.handleHealth)
	mux.HandleFunc("GET /status", hs.handleStatus)
	return hs
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live listener.
func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Start begins listening in the background. It returns once the listener is
// open; the server shuts down when ctx is cancelled.
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health server: listen %s: %w", h.addr, err)
	}

	h.server = &http.Server{
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("health server listening", "addr", ln.Addr().String())
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		h.Stop()
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (h *HealthServer) Stop() {
	if h.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		slog.Warn("health server shutdown error", "err", err)
	}
}

func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

func (h *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	var snap Snapshot
	if h.state != nil {
		snap = h.state.Snapshot(r.Context())
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:          "ok",
		Version:         version.Version,
		Commit:          version.GitCommit,
		BuildTime:       version.BuildTime,
		StartedAt:       h.startedAt,
		UptimeSecs:      time.Since(h.startedAt).Seconds(),
		SessionID:       snap.SessionID,
		TurnCount:       snap.TurnCount,
		AutonomyEnabled: snap.AutonomyEnabled,
		Consent:         snap.Consent,
		BudgetRemaining: snap.BudgetRemaining,
		Breaker:         snap.Breaker,
	})
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("health: failed to encode JSON response", "err", err)
	}
}
