package authcore

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"
)

// Config is the full engine and HTTP surface configuration. Field tags are
// the keys used by the daemon's YAML file and AUTHD_ environment variables.
type Config struct {
	JWT      JWTConfig      `mapstructure:"jwt"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Session  SessionConfig  `mapstructure:"session"`
	CSRF     CSRFConfig     `mapstructure:"csrf"`
	Cookie   CookieConfig   `mapstructure:"cookie"`
	Password PasswordConfig `mapstructure:"password"`
	Security SecurityConfig `mapstructure:"security"`
	Store    StoreConfig    `mapstructure:"store"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects the signing algorithm and where key material comes from.
// Inline keys take precedence over key file paths.
type JWTConfig struct {
	AccessTTL      time.Duration `mapstructure:"access-ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh-ttl"`
	SigningMethod  string        `mapstructure:"signing-method"` // "EdDSA" (default) or "RS256"
	PrivateKeyPath string        `mapstructure:"private-key-path"`
	PublicKeyPath  string        `mapstructure:"public-key-path"`
	PrivateKey     []byte        `mapstructure:"-"`
	PublicKey      []byte        `mapstructure:"-"`
	Issuer         string        `mapstructure:"issuer"`
	Leeway         time.Duration `mapstructure:"leeway"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig tunes refresh token storage.
type RefreshConfig struct {
	// HashKey, when set, turns stored token hashes into HMAC-SHA256 values.
	HashKey string `mapstructure:"hash-key"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes browser session records.
type SessionConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	JitterRange time.Duration `mapstructure:"jitter-range"`
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig configures the CSRF guard.
type CSRFConfig struct {
	AllowedOrigins []string `mapstructure:"allowed-origins"`
	ExemptPaths    []string `mapstructure:"exempt-paths"`
	RequireCookie  bool     `mapstructure:"require-cookie"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls attributes of every cookie set by the HTTP surface.
type CookieConfig struct {
	Secure   bool   `mapstructure:"secure"`
	SameSite string `mapstructure:"same-site"` // "lax", "strict" or "none"
	Domain   string `mapstructure:"domain"`
	Path     string `mapstructure:"path"`
}

// SameSiteMode maps SameSite onto net/http.
func (c CookieConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters and the password policy.
type PasswordConfig struct {
	Memory         uint32 `mapstructure:"memory"` // in KB
	Time           uint32 `mapstructure:"time"`
	Parallelism    uint8  `mapstructure:"parallelism"`
	SaltLength     uint32 `mapstructure:"salt-length"`
	KeyLength      uint32 `mapstructure:"key-length"`
	MinLength      int    `mapstructure:"min-length"`
	UpgradeOnLogin bool   `mapstructure:"upgrade-on-login"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the login and refresh throttles.
type SecurityConfig struct {
	EnableIPThrottle        bool          `mapstructure:"enable-ip-throttle"`
	EnableRefreshThrottle   bool          `mapstructure:"enable-refresh-throttle"`
	MaxLoginAttempts        int           `mapstructure:"max-login-attempts"`
	LoginCooldownDuration   time.Duration `mapstructure:"login-cooldown"`
	MaxRefreshAttempts      int           `mapstructure:"max-refresh-attempts"`
	RefreshCooldownDuration time.Duration `mapstructure:"refresh-cooldown"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig bounds every key-value round trip.
type StoreConfig struct {
	OperationTimeout time.Duration `mapstructure:"operation-timeout"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer-size"`
	DropIfFull bool `mapstructure:"drop-if-full"`
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable-latency-histograms"`
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns a working configuration apart from key material.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "EdDSA",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			TTL:         60 * time.Minute,
			JitterRange: 0,
		},
		CSRF: CSRFConfig{
			ExemptPaths: []string{
				"/api/v1/auth/login",
				"/api/v1/auth/register",
				"/api/v1/auth/refresh",
				"/api/v1/security/csp-report",
			},
		},
		Cookie: CookieConfig{
			Secure:   true,
			SameSite: "lax",
			Path:     "/",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Security: SecurityConfig{
			EnableIPThrottle:        true,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
		},
		Store: StoreConfig{
			OperationTimeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.CSRF.AllowedOrigins = append([]string(nil), cfg.CSRF.AllowedOrigins...)
	out.CSRF.ExemptPaths = append([]string(nil), cfg.CSRF.ExemptPaths...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	if c.JWT.SigningMethod != "EdDSA" && c.JWT.SigningMethod != "RS256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.TTL < time.Second {
		return errors.New("Session TTL must be >= 1s")
	}
	if c.Session.JitterRange < 0 {
		return errors.New("Session JitterRange must be >= 0")
	}
	if c.Session.JitterRange > time.Duration((math.MaxInt64-1)/2) {
		return errors.New("Session JitterRange is too large")
	}

	// Cookie
	switch strings.ToLower(c.Cookie.SameSite) {
	case "lax", "strict", "none":
	default:
		return errors.New("Cookie SameSite must be lax, strict or none")
	}
	if strings.EqualFold(c.Cookie.SameSite, "none") && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=none requires Secure")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return errors.New("Security RefreshCooldownDuration must be > 0")
		}
	}

	// Store
	if c.Store.OperationTimeout <= 0 {
		return errors.New("Store OperationTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
