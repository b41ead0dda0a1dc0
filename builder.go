package authgate

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/seralith/authgate/internal/rate"
	"github.com/seralith/authgate/password"
	"github.com/seralith/authgate/session"
	"github.com/seralith/authgate/token"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config

	redis  redis.UniversalClient
	store  CredentialStore
	mailer Mailer
	clock  Clock
	sink   AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions and reset throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the credential store.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithMailer sets the outbound mail transport. Without one, reset codes
// and verification links cannot be delivered and the flows that need them
// report ErrMailDelivery.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithClock overrides the engine clock. Tests use this to step time.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithAuditSink sets the audit event receiver. The sink only runs when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration, wires the engine, and starts the
// audit dispatcher.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	hasher, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Iterations:  cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}

	tokens, err := token.NewManager(token.Config{
		TTL:        cfg.Token.AccessTTL,
		Method:     token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey: cloneBytes(cfg.Token.PrivateKey),
		PublicKey:  cloneBytes(cfg.Token.PublicKey),
		Issuer:     cfg.Token.Issuer,
		Now:        clock.Now,
	})
	if err != nil {
		return nil, err
	}

	var verifyTokens *token.Manager
	if cfg.Verification.Enabled {
		verifyTokens, err = token.NewManager(token.Config{
			TTL:        cfg.Verification.TokenTTL,
			Method:     token.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey: cloneBytes(cfg.Token.PrivateKey),
			PublicKey:  cloneBytes(cfg.Token.PublicKey),
			Issuer:     cfg.Token.Issuer,
			Now:        clock.Now,
		})
		if err != nil {
			return nil, err
		}
	}

	// Hashing a throwaway password up front gives signin a real hash to
	// verify against when the email is unknown.
	decoy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:        cfg,
		store:         b.store,
		mailer:        b.mailer,
		clock:         clock,
		sessions:      session.NewStore(b.redis, cfg.Session.RedisPrefix),
		hasher:        hasher,
		tokens:        tokens,
		verifyTokens:  verifyTokens,
		resetLimiter:  rate.New(b.redis, cfg.Session.RedisPrefix+":reset", cfg.Reset.MaxRequests, cfg.Reset.Cooldown),
		signinLimiter: rate.New(b.redis, cfg.Session.RedisPrefix+":signin", cfg.Lockout.IPMaxAttempts, cfg.Lockout.IPWindow),
		audit:         newAuditDispatcher(cfg.Audit, b.sink),
		metrics:       NewMetrics(cfg.Metrics),
		decoyHash:     decoy,
	}

	b.built = true
	return engine, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
