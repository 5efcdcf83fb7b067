package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Severity controls how a notification is presented.
type Severity string

const (
	SeverityNormal      Severity = "normal"
	SeverityDestructive Severity = "destructive"
	SeveritySuccess     Severity = "success"
)

// Action is an optional button attached to a notification.
type Action struct {
	Label    string `json:"label"`
	Callback func() `json:"-"`
}

// Notification is a fire-and-forget user-facing message.
type Notification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Action      *Action   `json:"action,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// New creates a notification with a fresh ID.
func New(title, description string, severity Severity, at time.Time) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Severity:    severity,
		CreatedAt:   at,
	}
}

// WithAction returns a copy of n carrying an action button.
func (n Notification) WithAction(label string, callback func()) Notification {
	n.Action = &Action{Label: label, Callback: callback}
	return n
}

// Sink receives notifications. Implementations must not block for long.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(n Notification)

// Notify calls f(n).
func (f SinkFunc) Notify(n Notification) { f(n) }

// Multi delivers every notification to each sink in order.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(n)
		}
	}
}

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Notification) {})

// LogSink writes notifications to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that logs each notification.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify").Logger()}
}

// Notify implements Sink.
func (s *LogSink) Notify(n Notification) {
	event := s.logger.Info()
	if n.Severity == SeverityDestructive {
		event = s.logger.Warn()
	}
	event = event.
		Str("id", n.ID).
		Str("severity", string(n.Severity)).
		Str("description", n.Description)
	if n.Action != nil {
		event = event.Str("action", n.Action.Label)
	}
	event.Msg(n.Title)
}
