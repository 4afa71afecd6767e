// Package status serves liveness, readiness and dispatch counters over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"pbot/pkg/bus"
	"pbot/pkg/record"
)

const (
	shutdownTimeout = 5 * time.Second
	recentForwards  = 20
)

// ForwardLister lists the newest ledger rows.
type ForwardLister interface {
	Recent(ctx context.Context, limit int) ([]record.Forward, error)
}

type Option func(*Service)

// WithForwards adds the newest ledger rows to /statusz.
func WithForwards(l ForwardLister) Option {
	return func(s *Service) {
		s.forwards = l
	}
}

type Service struct {
	addr     string
	log      *slog.Logger
	forwards ForwardLister

	sub         <-chan bus.Event
	unsubscribe func()

	mu             sync.RWMutex
	startedAt      time.Time
	running        bool
	lastEventAt    time.Time
	counters       counters
	moduleFailures map[string]int64
}

type counters struct {
	Events         int64 `json:"events"`
	Unhandled      int64 `json:"unhandled"`
	ModuleFailures int64 `json:"module_failures"`
	ScheduledSends int64 `json:"scheduled_sends"`
	ScheduleErrors int64 `json:"schedule_errors"`
}

type statusResponse struct {
	Status         string           `json:"status"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
	LoopRunning    bool             `json:"loop_running"`
	LastEventAt    string           `json:"last_event_at,omitempty"`
	Counters       counters         `json:"counters"`
	ModuleFailures map[string]int64 `json:"module_failures,omitempty"`
	RecentForwards []forwardView    `json:"recent_forwards,omitempty"`
}

type forwardView struct {
	ChatID      int64  `json:"chat_id"`
	MessageID   int    `json:"message_id"`
	TargetID    int64  `json:"target_id"`
	ForwardedAt string `json:"forwarded_at"`
}

// New subscribes to events right away so nothing published before Run is missed.
func New(addr string, events *bus.Bus, log *slog.Logger, opts ...Option) (*Service, error) {
	if addr == "" {
		return nil, errors.New("status address is required")
	}
	if events == nil {
		return nil, errors.New("event bus is required")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		addr:           addr,
		log:            log.With("component", "status.service"),
		moduleFailures: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sub, s.unsubscribe = events.Subscribe(context.Background(), 0)
	return s, nil
}

// Run follows bus events and serves HTTP until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	defer s.unsubscribe()
	go func() {
		for ev := range s.sub {
			s.observe(ev)
		}
	}()

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Status server started", "address", s.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start status server: %w", err)
	}
	return nil
}

func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/statusz", s.handleStatus)
	return mux
}

func (s *Service) observe(ev bus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case bus.EventLoopStarted:
		s.running = true
	case bus.EventLoopStopped:
		s.running = false
	case bus.EventDispatched:
		s.counters.Events++
		s.lastEventAt = ev.At
	case bus.EventUnhandled:
		s.counters.Unhandled++
		s.lastEventAt = ev.At
	case bus.EventModuleFailed:
		s.counters.ModuleFailures++
		s.moduleFailures[ev.Module]++
	case bus.EventScheduledSend:
		s.counters.ScheduledSends++
	case bus.EventScheduleFail:
		s.counters.ScheduleErrors++
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.isReady() {
		s.respond(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	s.respond(w, http.StatusOK, "ready")
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	if !s.isReady() {
		status = "not_ready"
	}
	payload := s.currentStatus(status)
	if s.forwards != nil {
		forwards, err := s.forwards.Recent(r.Context(), recentForwards)
		if err != nil {
			s.log.Error("Failed to list recent forwards", "error", err)
		}
		for _, f := range forwards {
			payload.RecentForwards = append(payload.RecentForwards, forwardView{
				ChatID:      f.ChatID,
				MessageID:   f.MessageID,
				TargetID:    f.TargetID,
				ForwardedAt: f.ForwardedAt.UTC().Format(time.RFC3339),
			})
		}
	}
	s.write(w, http.StatusOK, payload)
}

func (s *Service) respond(w http.ResponseWriter, statusCode int, status string) {
	s.write(w, statusCode, s.currentStatus(status))
}

func (s *Service) write(w http.ResponseWriter, statusCode int, payload statusResponse) {

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	lastEvent := ""
	if !s.lastEventAt.IsZero() {
		lastEvent = s.lastEventAt.Format(time.RFC3339)
	}

	failures := make(map[string]int64, len(s.moduleFailures))
	for name, n := range s.moduleFailures {
		failures[name] = n
	}

	return statusResponse{
		Status:         status,
		UptimeSeconds:  uptime,
		LoopRunning:    s.running,
		LastEventAt:    lastEvent,
		Counters:       s.counters,
		ModuleFailures: failures,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
