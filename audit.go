package authgate

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types emitted by the engine.
const (
	auditEventSignUp          = "signup"
	auditEventVerifyEmail     = "verify_email"
	auditEventSignIn          = "signin"
	auditEventSignInLocked    = "signin_locked"
	auditEventSignOut         = "signout"
	auditEventPasswordChange  = "password_change"
	auditEventResetRequest    = "reset_request"
	auditEventResetComplete   = "reset_complete"
	auditEventOTPVerify       = "otp_verify"
	auditEventTOTPProvision   = "totp_provision"
	auditEventTOTPActivate    = "totp_activate"
	auditEventTOTPDisable     = "totp_disable"
	auditEventAdminAction     = "admin_action"
	auditEventAdminDenied     = "admin_denied"
)

// AuditEvent is a structured security event. Events are append-only and
// fire-and-forget: the engine never blocks a credential operation on sink
// outcome.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	AccountID string            `json:"account_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards all events.
type NoOpSink struct{}

// Emit implements [AuditSink].
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink buffers events on a channel for consumption by the caller.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

// Emit implements [AuditSink].
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receive side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON-encoded event per line to an io.Writer.
// Suitable for append-only audit logs.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit implements [AuditSink].
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
