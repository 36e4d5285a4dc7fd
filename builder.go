package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/authcore-dev/authcore/jwt"
	"github.com/authcore-dev/authcore/password"
	"github.com/authcore-dev/authcore/revocation"
)

// Builder assembles an Engine. A zero-configured Builder starts from
// DefaultConfig; call the With* methods, then Build once.
type Builder struct {
	config Config

	users       UserStore
	revocations RevocationStore
	auditSink   AuditSink

	built bool
}

// New returns a Builder carrying the default configuration.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration. The value is copied;
// later mutation of cfg by the caller does not reach the engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the user persistence collaborator. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithRevocationStore sets the revocation collaborator. Required unless
// WithRedis is used.
func (b *Builder) WithRevocationStore(store RevocationStore) *Builder {
	b.revocations = store
	return b
}

// WithRedis wires a Redis-backed revocation store over the given client.
// Shorthand for WithRevocationStore(revocation.NewStore(client)); the
// caller owns the client's lifecycle.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.revocations = revocation.NewStore(client)
	return b
}

// WithAuditSink sets the destination for audit events. Events are only
// emitted when Audit.Enabled is set in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration, constructs the collaborating codec and
// hasher, and returns a ready Engine. A Builder builds at most once.
func (b *Builder) Build() (*Engine, error) {
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
	if b.revocations == nil {
		return nil, errors.New("revocation store required")
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	codec, err := jwt.NewCodec(jwt.Config{
		Secret:        cloneBytes(cfg.JWT.Secret),
		SigningMethod: cfg.JWT.SigningMethod,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		users:       b.users,
		revocations: b.revocations,
		hasher:      hasher,
		codec:       codec,
		audit:       newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:     NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
