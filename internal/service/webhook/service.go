package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/factorysh/panem/internal/requestid"
	"github.com/factorysh/panem/pkg/config"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20
	maxErrorSummary = 512

	// APIKeyHeader carries the outbound shared secret.
	APIKeyHeader = "X-API-KEY"
	// EventHeader names the event kind of the delivery.
	EventHeader = "X-Panem-Event"
)

// Kind is the lifecycle event being notified.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindStart   Kind = "start"
	KindStop    Kind = "stop"
	KindRestart Kind = "restart"
)

// Kinds lists every event kind the webhook can receive.
var Kinds = []Kind{KindCreated, KindUpdated, KindStart, KindStop, KindRestart}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseAction maps an action word (start, stop, restart) to its Kind.
func ParseAction(word string) (Kind, bool) {
	switch Kind(word) {
	case KindStart, KindStop, KindRestart:
		return Kind(word), true
	default:
		return "", false
	}
}

// ErrDelivery indicates the webhook could not be reached or did not accept the event.
var ErrDelivery = errors.New("webhook: delivery failed")

// ErrRejected indicates the webhook answered with a non-success status.
var ErrRejected = errors.New("webhook: rejected")

// StatusError is returned when the webhook answers outside 2xx.
type StatusError struct {
	StatusCode int
	Summary    string
}

func (e *StatusError) Error() string {
	if e.Summary == "" {
		return fmt.Sprintf("webhook: delivery failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook: delivery failed with status %d: %s", e.StatusCode, e.Summary)
}

// Is matches both ErrDelivery and ErrRejected.
func (e *StatusError) Is(target error) bool {
	return target == ErrDelivery || target == ErrRejected
}

// Event is a single notification: its kind plus the variables the receiver acts on.
type Event struct {
	Kind      Kind
	Variables map[string]any
}

// Response is the webhook's answer, passed back unchanged.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Config holds the outbound endpoint settings.
type Config struct {
	URL     string
	APIKey  config.Secret
	Timeout time.Duration
}

// Option customises the Service.
type Option func(*Service)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithMetrics records delivery outcomes.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service delivers events to the configured webhook.
type Service struct {
	url     string
	apiKey  config.Secret
	events  config.EventTable
	client  *http.Client
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// New validates the configuration and event table and returns a Service.
func New(cfg Config, events config.EventTable, logger *slog.Logger, opts ...Option) (*Service, error) {
	target := strings.TrimSpace(cfg.URL)
	if target == "" {
		return nil, errors.New("webhook url required")
	}
	if !cfg.APIKey.IsSet() {
		return nil, errors.New("webhook api key required")
	}
	var unknown []string
	for kind := range events {
		if !Kind(kind).Valid() {
			unknown = append(unknown, kind)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("events config names unknown event kinds: %s", strings.Join(unknown, ", "))
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, kind := range Kinds {
		if _, ok := events[string(kind)]; !ok {
			logger.Warn("no configuration for event kind, sending variables only", "event", kind)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := &Service{
		url:    target,
		apiKey: cfg.APIKey,
		events: events,
		client: &http.Client{Timeout: timeout},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Copy: a caller-supplied client is left untouched.
	client := *s.client
	if client.Timeout == 0 {
		client.Timeout = timeout
	}
	client.CheckRedirect = refuseRedirect
	s.client = &client
	return s, nil
}

// refuseRedirect hands 3xx answers back as-is; they count as rejected deliveries.
func refuseRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Envelope builds the outbound body: the kind's configured fields plus "variables".
func (s *Service) Envelope(event Event) map[string]any {
	envelope := s.events.Lookup(string(event.Kind))
	if envelope == nil {
		envelope = make(map[string]any, 1)
	}
	variables := event.Variables
	if variables == nil {
		variables = map[string]any{}
	}
	envelope["variables"] = variables
	return envelope
}

// Notify posts the event synchronously. A transport failure or timeout yields
// ErrDelivery; a non-2xx answer yields a *StatusError (ErrDelivery and ErrRejected).
func (s *Service) Notify(ctx context.Context, event Event) (Response, error) {
	if s == nil {
		return Response{}, errors.New("webhook service not initialised")
	}
	if !event.Kind.Valid() {
		return Response{}, fmt.Errorf("unknown event kind %q", event.Kind)
	}
	body, err := json.Marshal(s.Envelope(event))
	if err != nil {
		return Response{}, fmt.Errorf("marshal %s event: %w", event.Kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(APIKeyHeader, s.apiKey.Value())
	req.Header.Set(EventHeader, string(event.Kind))
	if id, ok := requestid.FromContext(ctx); ok {
		req.Header.Set(requestid.Header, id)
	}

	start := s.now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.observe(event.Kind, "transport_error", start)
		s.logger.Error("event delivery failed", "event", event.Kind, "error", err)
		return Response{}, fmt.Errorf("%w: send %s event: %v", ErrDelivery, event.Kind, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		s.observe(event.Kind, "transport_error", start)
		s.logger.Error("event delivery failed", "event", event.Kind, "error", err)
		return Response{}, fmt.Errorf("%w: read %s response: %v", ErrDelivery, event.Kind, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		s.observe(event.Kind, "rejected", start)
		s.logger.Error("event delivery failed", "event", event.Kind, "status", resp.StatusCode)
		return Response{}, &StatusError{StatusCode: resp.StatusCode, Summary: summarize(raw)}
	}
	s.observe(event.Kind, "delivered", start)
	s.logger.Info("event delivered", "event", event.Kind, "status", resp.StatusCode)
	return Response{StatusCode: resp.StatusCode, Body: normalizeBody(raw)}, nil
}

func (s *Service) observe(kind Kind, outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.observe(string(kind), outcome, s.now().Sub(start))
}

// normalizeBody keeps JSON bodies as-is, maps empty bodies to null and wraps
// anything else as a JSON string.
func normalizeBody(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return json.RawMessage(quoted)
}

func summarize(raw []byte) string {
	summary := strings.TrimSpace(string(raw))
	if len(summary) > maxErrorSummary {
		cut := maxErrorSummary
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut]
	}
	return summary
}
