package authcore

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// DefaultSigningSecret is the placeholder secret carried by
// [DefaultConfig]. It is accepted in development and rejected by
// [Config.Validate] whenever ProductionMode is set.
const DefaultSigningSecret = "change-me-in-production"

// Config is the complete engine configuration. A Config value is passed
// explicitly into [Builder.WithConfig]; there is no implicit process-wide
// default. Treat it as immutable after Build.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig controls token signing and lifetimes.
type JWTConfig struct {
	// Secret is the symmetric signing key. Must not be the known default
	// in production mode.
	Secret        []byte
	SigningMethod string // "hs256" (default), "hs384", "hs512"
	Issuer        string
	Leeway        time.Duration
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// PasswordConfig holds Argon2id cost parameters. Hashing is CPU-bound and
// throughput-limiting under concurrent registration/login load; tune cost
// against server capacity here rather than in code.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// SecurityConfig holds hardening toggles.
type SecurityConfig struct {
	ProductionMode bool
	// RotateRefreshTokens makes Refresh issue a new refresh token and
	// revoke the presented one, instead of renewing the access token
	// alone. Off by default.
	RotateRefreshTokens bool
	// CheckAccessRevocation makes VerifyAccess consult the revocation
	// store, at one lookup per call. Off by default: access tokens are
	// short-lived enough that blacklist latency rarely pays for itself.
	CheckAccessRevocation bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the development baseline. The signing secret is a
// known placeholder; production deployments must replace it.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Secret:        []byte(DefaultSigningSecret),
			SigningMethod: "hs256",
			Issuer:        "authcore",
			Leeway:        30 * time.Second,
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Security: SecurityConfig{
			ProductionMode:        false,
			RotateRefreshTokens:   false,
			CheckAccessRevocation: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// FromEnv returns DefaultConfig overridden by environment variables:
//
//	AUTHCORE_JWT_SECRET
//	AUTHCORE_JWT_ALGORITHM           (hs256|hs384|hs512)
//	AUTHCORE_ACCESS_TOKEN_EXPIRY_MINUTES
//	AUTHCORE_REFRESH_TOKEN_EXPIRY_DAYS
//	AUTHCORE_PRODUCTION_MODE         (true|false)
//
// Unset or unparseable variables keep their defaults. The result is not
// validated; call [Config.Validate] (Build does) after further overrides.
func FromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("AUTHCORE_JWT_SECRET"); v != "" {
		cfg.JWT.Secret = []byte(v)
	}
	if v := os.Getenv("AUTHCORE_JWT_ALGORITHM"); v != "" {
		cfg.JWT.SigningMethod = v
	}
	if v := os.Getenv("AUTHCORE_ACCESS_TOKEN_EXPIRY_MINUTES"); v != "" {
		if minutes, err := strconv.ParseUint(v, 10, 32); err == nil && minutes > 0 {
			cfg.JWT.AccessTTL = time.Duration(minutes) * time.Minute
		}
	}
	if v := os.Getenv("AUTHCORE_REFRESH_TOKEN_EXPIRY_DAYS"); v != "" {
		if days, err := strconv.ParseUint(v, 10, 32); err == nil && days > 0 {
			cfg.JWT.RefreshTTL = time.Duration(days) * 24 * time.Hour
		}
	}
	if v := os.Getenv("AUTHCORE_PRODUCTION_MODE"); v != "" {
		cfg.Security.ProductionMode = v == "true" || v == "1"
	}

	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
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

// Validate checks the configuration for internal consistency. Build calls
// it; standalone use is for surfacing configuration errors at startup
// before any collaborator is constructed.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret is required")
	}
	switch c.JWT.SigningMethod {
	case "hs256", "hs384", "hs512":
		// valid
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
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

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if string(c.JWT.Secret) == DefaultSigningSecret {
			return errors.New("ProductionMode rejects the default JWT Secret")
		}
		if len(c.JWT.Secret) < 32 {
			return errors.New("ProductionMode requires JWT Secret >= 256 bits")
		}
		if c.JWT.AccessTTL > time.Hour {
			return errors.New("ProductionMode requires JWT AccessTTL <= 1h")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
	}

	return nil
}
