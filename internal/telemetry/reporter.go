// Package telemetry delivers attempt and recovery events to an HTTP collector.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoPolymarket/parlay-builder/internal/metrics"
)

type EventType string

const (
	EventAttemptFinished EventType = "attempt_finished"
	EventRecoveryApplied EventType = "recovery_applied"
	EventPaywallShown    EventType = "paywall_shown"
	EventParlaySaved     EventType = "parlay_saved"
)

// Event is one telemetry record. Fields are flat so collectors can index them.
type Event struct {
	Type       EventType         `json:"type"`
	At         time.Time         `json:"at"`
	AttemptID  string            `json:"attempt_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Mode       string            `json:"mode,omitempty"`
	Outcome    string            `json:"outcome,omitempty"`
	Action     string            `json:"action,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	DebugID    string            `json:"debug_id,omitempty"`
	DurationMS int64             `json:"duration_ms,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

const defaultQueue = 64

// Reporter posts events from a background worker. It is disabled when no
// endpoint is configured; Report then does nothing.
type Reporter struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
	enabled    bool

	mu      sync.Mutex
	queue   chan Event
	started bool
	closed  bool
	done    chan struct{}
}

type Options struct {
	Endpoint   string
	Token      string
	Timeout    time.Duration
	QueueSize  int
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func NewReporter(opts Options) *Reporter {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueue
	}
	return &Reporter{
		endpoint:   opts.Endpoint,
		token:      opts.Token,
		httpClient: client,
		logger:     opts.Logger,
		enabled:    opts.Endpoint != "",
		queue:      make(chan Event, size),
		done:       make(chan struct{}),
	}
}

// Enabled reports whether the reporter is active.
func (r *Reporter) Enabled() bool { return r.enabled }

// Start launches the delivery worker.
func (r *Reporter) Start() {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	go r.run()
}

func (r *Reporter) run() {
	defer close(r.done)
	for ev := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := r.Send(ctx, ev); err != nil {
			metrics.TelemetryDropTotal.Inc()
			r.logger.Debug().Err(err).Str("type", string(ev.Type)).Msg("telemetry event dropped")
		}
		cancel()
	}
}

// Report enqueues ev without blocking. A full queue drops the event.
func (r *Reporter) Report(ev Event) {
	if !r.enabled {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- ev:
	default:
		metrics.TelemetryDropTotal.Inc()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (r *Reporter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	started := r.started
	r.mu.Unlock()
	if started {
		<-r.done
	}
}

// Send posts one event synchronously.
func (r *Reporter) Send(ctx context.Context, ev Event) error {
	if !r.enabled {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("telemetry: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telemetry: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telemetry: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telemetry: collector %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
