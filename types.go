package authcore

import (
	"context"
	"time"

	"github.com/authcore-dev/authcore/jwt"
	"github.com/authcore-dev/authcore/revocation"
)

// Claims is the decoded token payload returned by [Engine.VerifyAccess].
type Claims = jwt.Claims

// User is the identity record owned by the [UserStore] collaborator. The
// engine only holds transient copies during a call.
//
// PasswordHash is opaque to callers and is never serialized outward.
type User struct {
	ID           uint32    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	IsActive     bool      `json:"isActive"`
	IsVerified   bool      `json:"isVerified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	// LastLogin is the zero time until the first successful login.
	LastLogin time.Time `json:"lastLogin"`
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is returned by [Engine.Register] and [Engine.Login]. Both
// tokens are always populated on success.
type AuthResult struct {
	User         User
	AccessToken  string
	RefreshToken string
}

// TokenPair is returned by [Engine.Refresh]. RefreshToken is empty unless
// [SecurityConfig.RotateRefreshTokens] is enabled.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RevocationEntry records one revoked token. Entries are keyed by the
// token's own expiry so that purging can never evict a revocation that
// still guards a live token.
type RevocationEntry = revocation.Entry

// UserStore is the user persistence contract the embedding application must
// implement. Implementations must be safe for concurrent use.
//
// Insert must enforce email uniqueness atomically (a uniqueness constraint,
// not check-then-act) and return [ErrUserAlreadyExists] on conflict. The
// engine's own pre-check is best effort only.
//
// FindByID and FindByEmail report absence through the boolean, not through
// an error; the error return is reserved for infrastructure failures.
type UserStore interface {
	Insert(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id uint32) (User, bool, error)
	FindByEmail(ctx context.Context, email string) (User, bool, error)
	Update(ctx context.Context, user User) error
}

// RevocationStore records revoked token identifiers and answers membership
// queries. Implementations must be safe for concurrent use and Add must be
// idempotent.
//
// The revocation subpackage provides a Redis-backed [revocation.Store] and
// an in-process [revocation.Memory].
type RevocationStore interface {
	Add(ctx context.Context, entry RevocationEntry) error
	Contains(ctx context.Context, tokenID string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
