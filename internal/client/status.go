package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Loop states.
const (
	StateStarting = "starting"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateStopped  = "stopped"
)

// Status is a snapshot of the polling loop.
type Status struct {
	State             string    `json:"state"`
	Hostname          string    `json:"hostname"`
	Platform          string    `json:"platform"`
	Iterations        int64     `json:"iterations"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	JobsRun           int64     `json:"jobs_run"`
	JobsFailed        int64     `json:"jobs_failed"`
	Mismatches        int64     `json:"digest_mismatches"`
	InputErrors       int64     `json:"input_errors"`
	LastPoll          time.Time `json:"last_poll,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
}

type tracker struct {
	mu sync.Mutex
	s  Status
}

func newTracker(hostname, platform string) *tracker {
	return &tracker{s: Status{State: StateStarting, Hostname: hostname, Platform: platform}}
}

func (t *tracker) setState(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.State = state
}

func (t *tracker) finishIteration(consecutive int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Iterations++
	t.s.ConsecutiveErrors = consecutive
	t.s.LastPoll = time.Now().UTC()
	if err != nil {
		t.s.LastError = err.Error()
	}
}

func (t *tracker) jobRun(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.JobsRun++
	if !success {
		t.s.JobsFailed++
	}
}

func (t *tracker) mismatch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Mismatches++
}

func (t *tracker) inputError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.InputErrors++
}

func (t *tracker) snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

// Handler exposes GET /healthz and GET /status for the poller.
func (p *Poller) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := p.Status()
		code := http.StatusOK
		status := "ok"
		if st.ConsecutiveErrors >= 2 {
			code = http.StatusServiceUnavailable
			status = "degraded"
		}
		writeJSON(w, code, map[string]any{"status": status, "state": st.State})
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.Status())
	})
	return r
}

// Serve runs the status server on addr until ctx is done.
func Serve(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	if addr == "" {
		return errors.New("status address is required")
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown status server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
