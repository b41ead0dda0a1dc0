package authgate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seralith/authgate/internal/rate"
	"github.com/seralith/authgate/password"
	"github.com/seralith/authgate/session"
	"github.com/seralith/authgate/token"
)

// Engine is the credential engine. All methods are safe for concurrent
// use; per-account write conflicts are resolved at the store.
type Engine struct {
	config Config

	store    CredentialStore
	mailer   Mailer
	clock    Clock
	sessions *session.Store

	hasher        *password.Hasher
	tokens        *token.Manager
	verifyTokens  *token.Manager
	resetLimiter  *rate.Limiter
	signinLimiter *rate.Limiter

	audit   *auditDispatcher
	metrics *Metrics

	// decoyHash is verified against when an email does not resolve, so
	// a signin for an unknown address costs the same as a wrong password.
	decoyHash string
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

func (e *Engine) newID() string {
	return uuid.NewString()
}

func (e *Engine) newSessionID() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in no state to mint
		// credentials at all.
		panic("authgate: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	event.Timestamp = e.now()
	event.IP = clientIPFromContext(ctx)
	e.audit.Emit(ctx, event)
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// Metrics exposes the engine's counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// MetricsSnapshot copies every counter at once.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// Close flushes the audit dispatcher. The engine must not be used after
// Close returns.
func (e *Engine) Close() {
	e.audit.Close()
}
