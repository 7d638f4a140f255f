package memoauth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/memoauth/password"
	"github.com/MrEthical07/memoauth/revocation"
	"github.com/MrEthical07/memoauth/token"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a Manager. It is single-use.
type Builder struct {
	config Config

	store revocation.Store
	redis redis.UniversalClient
	users UserStore

	hasher    password.Hasher
	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New starts a builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRevocationStore sets the refresh/blacklist store. It takes precedence
// over WithRedis.
func (b *Builder) WithRevocationStore(store revocation.Store) *Builder {
	b.store = store
	return b
}

// WithRedis makes Build create a revocation.RedisStore using
// Config.Store.KeyPrefix and Config.Store.Timeout.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithHasher overrides the default bcrypt hasher.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for token issuance and verification.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Manager. A secret shorter
// than the configured minimum fails here with an error matching
// token.ErrWeakSecret.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("revocation store or redis client required")
		}
		rs, err := revocation.NewRedisStore(b.redis,
			revocation.WithPrefix(cfg.Store.KeyPrefix),
			revocation.WithTimeout(cfg.Store.Timeout),
		)
		if err != nil {
			return nil, err
		}
		store = rs
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- TOKENS --------
	key, err := token.NewSigningKey(cfg.JWT.Secret, cfg.JWT.MinSecretBytes)
	if err != nil {
		return nil, err
	}
	cfg.JWT.Secret = nil

	codecOpts := []token.Option{token.WithClock(now)}
	if cfg.JWT.Issuer != "" {
		codecOpts = append(codecOpts, token.WithIssuer(cfg.JWT.Issuer))
	}
	codec, err := token.NewCodec(key, codecOpts...)
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		bc, err := password.NewBcrypt(0)
		if err != nil {
			return nil, err
		}
		hasher = bc
	}
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy password hash: %w", err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	swapper, _ := store.(revocation.Swapper)

	m := &Manager{
		cfg:       cfg,
		codec:     codec,
		store:     store,
		swapper:   swapper,
		users:     b.users,
		hasher:    hasher,
		dummyHash: dummyHash,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		now:       now,
	}

	b.built = true
	return m, nil
}
