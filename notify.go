package goSession

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types emitted after the corresponding state transition commits.
const (
	EventLogin           = "login"
	EventLoginFailure    = "login_failure"
	EventRegister        = "register"
	EventLogout          = "logout"
	EventLogoutAll       = "logout_all"
	EventProfileUpdated  = "profile_updated"
	EventPasswordChanged = "password_changed"
)

// Event is a best-effort notification about a session or profile change.
// It never carries token or secret material.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	SubjectID string            `json:"subject_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NotificationSink receives events from the dispatcher goroutine. Returned
// errors are logged and discarded; they never affect the originating operation.
type NotificationSink interface {
	Emit(ctx context.Context, event Event) error
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) error { return nil }

// ChannelSink forwards events to a buffered channel, mainly for tests and
// in-process fan-out.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.writer.Write(data)
	return err
}

// ZapSink logs each event as a structured info entry.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("notify")}
}

func (s *ZapSink) Emit(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("type", event.Type),
		zap.String("subject_id", event.SubjectID),
		zap.Bool("success", event.Success),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	s.logger.Info("session event", fields...)
	return nil
}
