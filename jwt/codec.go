package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrBadSubject is returned by Issue when the subject identity is missing.
// Tokens are only ever minted for a persisted user.
var ErrBadSubject = errors.New("token subject requires a user id and email")

// TokenType discriminates the two token kinds a Codec issues. Verify
// enforces it so an access token can never stand in for a refresh token or
// the reverse.
type TokenType string

const (
	// TokenAccess is the short-lived token presented on every request.
	TokenAccess TokenType = "access"
	// TokenRefresh is the long-lived token exchanged for new access tokens.
	TokenRefresh TokenType = "refresh"
)

// Config controls signing and lifetimes for a Codec.
type Config struct {
	// Secret is the symmetric signing key shared by issue and verify.
	Secret []byte
	// SigningMethod selects the HMAC variant: "hs256" (default), "hs384"
	// or "hs512".
	SigningMethod string
	Issuer        string
	// Leeway is tolerated clock skew when checking exp. Max 2 minutes.
	Leeway     time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims is the decoded payload of an issued token. Values are snapshots
// taken at issue time; a later profile change does not alter tokens already
// in flight.
type Claims struct {
	UserID    uint32    `json:"userId"`
	Email     string    `json:"email"`
	TokenType TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens. Immutable after construction; safe for
// concurrent use.
type Codec struct {
	config Config
	method jwt.SigningMethod
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be > 0")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("leeway must be between 0 and 2m")
	}

	var method jwt.SigningMethod
	switch cfg.SigningMethod {
	case "", "hs256":
		method = jwt.SigningMethodHS256
	case "hs384":
		method = jwt.SigningMethodHS384
	case "hs512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	return &Codec{config: cfg, method: method}, nil
}

// IssueAccess signs an access token for the given identity using the
// configured access TTL.
func (c *Codec) IssueAccess(userID uint32, email string) (string, error) {
	return c.Issue(userID, email, TokenAccess, c.config.AccessTTL)
}

// IssueRefresh signs a refresh token for the given identity using the
// configured refresh TTL.
func (c *Codec) IssueRefresh(userID uint32, email string) (string, error) {
	return c.Issue(userID, email, TokenRefresh, c.config.RefreshTTL)
}

// Issue signs a token of the given type and lifetime. It returns
// ErrBadSubject when userID is zero or email is empty.
func (c *Codec) Issue(userID uint32, email string, typ TokenType, ttl time.Duration) (string, error) {
	if userID == 0 || email == "" {
		return "", ErrBadSubject
	}

	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.config.Secret)
	if err != nil {
		return "", fmt.Errorf("token signing failed: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and token type, and returns the
// claims. Any failure, including a type mismatch, is an error; the caller
// maps it to its own sentinel. Verification does not consult any store.
func (c *Codec) Verify(tokenStr string, want TokenType) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("token type is %q, want %q", claims.TokenType, want)
	}

	return claims, nil
}

// DecodeUnverified extracts claims without checking the signature or any
// time bound. Logout uses it to learn a token's ID and expiry so even a
// stale token can still be blacklisted. Never trust the identity fields of
// an unverified decode.
func (c *Codec) DecodeUnverified(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
