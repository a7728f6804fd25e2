package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/nutritrack/authcore"
	"github.com/nutritrack/authcore/internal/logger"
)

// RedisOptions selects the key-value backend.
type RedisOptions struct {
	Addrs    []string `json:"addrs" mapstructure:"addrs"`
	Password string   `json:"-" mapstructure:"password"`
	DB       int      `json:"db" mapstructure:"db"`
	// Dev starts an in-process miniredis instead of dialing Addrs.
	Dev bool `json:"dev" mapstructure:"dev"`
}

// PostgresOptions selects the user store. An empty DSN keeps users in memory.
type PostgresOptions struct {
	DSN string `json:"-" mapstructure:"dsn"`
}

// AdminOptions seeds one admin account at startup when Username is set.
type AdminOptions struct {
	Username string `json:"username" mapstructure:"username"`
	Email    string `json:"email" mapstructure:"email"`
	Password string `json:"-" mapstructure:"password"`
}

// ServerOptions is everything authd reads from flags, the config file and
// AUTHD_ environment variables.
type ServerOptions struct {
	Addr            string          `json:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration   `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
	TrustForwarded  bool            `json:"trust-forwarded" mapstructure:"trust-forwarded"`
	ConnectSources  []string        `json:"connect-sources" mapstructure:"connect-sources"`
	DevKeys         bool            `json:"dev-keys" mapstructure:"dev-keys"`
	Redis           RedisOptions    `json:"redis" mapstructure:"redis"`
	Postgres        PostgresOptions `json:"postgres" mapstructure:"postgres"`
	Admin           AdminOptions    `json:"bootstrap-admin" mapstructure:"bootstrap-admin"`
	Auth            authcore.Config `json:"-" mapstructure:"auth"`
	Log             *logger.Options `json:"log" mapstructure:"log"`
}

func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		Redis: RedisOptions{
			Addrs: []string{"127.0.0.1:6379"},
		},
		Auth: authcore.DefaultConfig(),
		Log:  logger.NewOptions(),
	}
}

func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "addr", o.Addr, "HTTP listen `ADDRESS`.")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Grace period for in-flight requests on shutdown.")
	fs.BoolVar(&o.TrustForwarded, "trust-forwarded", o.TrustForwarded, "Take the client IP from X-Forwarded-For.")
	fs.StringSliceVar(&o.ConnectSources, "connect-sources", o.ConnectSources, "Extra origins allowed in CSP connect-src.")
	fs.BoolVar(&o.DevKeys, "dev-keys", o.DevKeys, "Sign tokens with an ephemeral Ed25519 key pair.")

	fs.StringSliceVar(&o.Redis.Addrs, "redis.addrs", o.Redis.Addrs, "Redis `ADDRESSES`; more than one selects cluster mode.")
	fs.StringVar(&o.Redis.Password, "redis.password", o.Redis.Password, "Redis password.")
	fs.IntVar(&o.Redis.DB, "redis.db", o.Redis.DB, "Redis database index.")
	fs.BoolVar(&o.Redis.Dev, "redis.dev", o.Redis.Dev, "Use an in-process miniredis instead of Redis.")

	fs.StringVar(&o.Postgres.DSN, "postgres.dsn", o.Postgres.DSN, "PostgreSQL `DSN` for the user store. Empty keeps users in memory.")

	fs.StringVar(&o.Auth.JWT.PrivateKeyPath, "auth.jwt.private-key-path", o.Auth.JWT.PrivateKeyPath, "PEM private key used to sign tokens.")
	fs.StringVar(&o.Auth.JWT.PublicKeyPath, "auth.jwt.public-key-path", o.Auth.JWT.PublicKeyPath, "PEM public key used to verify tokens.")
	fs.StringVar(&o.Auth.JWT.SigningMethod, "auth.jwt.signing-method", o.Auth.JWT.SigningMethod, "EdDSA or RS256.")
	fs.StringVar(&o.Auth.Refresh.HashKey, "auth.refresh.hash-key", o.Auth.Refresh.HashKey, "HMAC key for stored refresh token hashes.")
	fs.StringSliceVar(&o.Auth.CSRF.AllowedOrigins, "auth.csrf.allowed-origins", o.Auth.CSRF.AllowedOrigins, "Origins allowed on state-changing requests.")
	fs.BoolVar(&o.Auth.Cookie.Secure, "auth.cookie.secure", o.Auth.Cookie.Secure, "Mark cookies Secure.")
	fs.BoolVar(&o.Auth.Audit.Enabled, "auth.audit.enabled", o.Auth.Audit.Enabled, "Write audit events to the log.")

	o.Log.AddFlags(fs)
}

// Validate checks the daemon-level options. Engine configuration is checked
// when the engine is built.
func (o *ServerOptions) Validate() error {
	var errs []error
	if o.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown-timeout must be > 0"))
	}
	if !o.Redis.Dev && len(o.Redis.Addrs) == 0 {
		errs = append(errs, errors.New("redis.addrs is required unless redis.dev is set"))
	}
	if !o.DevKeys && o.Auth.JWT.PrivateKeyPath == "" && len(o.Auth.JWT.PrivateKey) == 0 {
		errs = append(errs, errors.New("auth.jwt.private-key-path is required unless dev-keys is set"))
	}
	if o.Admin.Username != "" && (o.Admin.Email == "" || o.Admin.Password == "") {
		errs = append(errs, errors.New("bootstrap-admin needs username, email and password"))
	}
	if o.Log == nil {
		errs = append(errs, errors.New("log options are missing"))
	} else {
		for _, err := range o.Log.Validate() {
			errs = append(errs, fmt.Errorf("log: %w", err))
		}
	}
	return errors.Join(errs...)
}
