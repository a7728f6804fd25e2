package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nutritrack/authcore/internal/rate"
	"github.com/nutritrack/authcore/jwt"
	"github.com/nutritrack/authcore/kv"
	"github.com/nutritrack/authcore/password"
	"github.com/nutritrack/authcore/refresh"
	"github.com/nutritrack/authcore/session"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config

	kv        kv.Store
	redis     redis.UniversalClient
	users     UserStore
	keys      jwt.KeySource
	auditSink AuditSink
	logger    *zap.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the key-value backend directly. It takes precedence over WithRedis.
func (b *Builder) WithStore(store kv.Store) *Builder {
	b.kv = store
	return b
}

// WithRedis wraps client in a kv.RedisStore bounded by Store.OperationTimeout.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithKeySource overrides the key material configured under JWT.
func (b *Builder) WithKeySource(keys jwt.KeySource) *Builder {
	b.keys = keys
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
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

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.kv
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or kv store required")
		}
		store = kv.NewRedisStore(b.redis, cfg.Store.OperationTimeout)
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}

	// -------- TOKEN CODEC --------
	keys, err := b.keySource(cfg.JWT)
	if err != nil {
		return nil, err
	}
	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Keys:          keys,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	dummy, err := ph.Hash("authcore-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hashKey := []byte(cfg.Refresh.HashKey)
	engine := &Engine{
		config:       cfg,
		kv:           store,
		users:        b.users,
		codec:        codec,
		refresh:      refresh.NewStore(store, hashKey),
		ledger:       refresh.NewLedger(store, hashKey),
		sessions:     session.NewStore(store, cfg.Session.TTL, cfg.Session.JitterRange),
		passwordHash: ph,
		dummyHash:    dummy,
		rateLimiter: rate.New(store, rate.Config{
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		}),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger.Named("authcore"),
		now:     time.Now,
	}

	b.built = true

	return engine, nil
}

func (b *Builder) keySource(cfg JWTConfig) (jwt.KeySource, error) {
	if b.keys != nil {
		return b.keys, nil
	}
	method := jwt.SigningMethod(cfg.SigningMethod)
	switch {
	case len(cfg.PrivateKey) > 0 && len(cfg.PublicKey) > 0:
		return jwt.NewStaticKeySource(method, cloneBytes(cfg.PrivateKey), cloneBytes(cfg.PublicKey)), nil
	case cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "":
		return jwt.NewFileKeySource(method, cfg.PrivateKeyPath, cfg.PublicKeyPath), nil
	default:
		return nil, errors.New("JWT key material required: inline keys, key paths or a key source")
	}
}
