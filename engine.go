package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/authcore-dev/authcore/jwt"
	"github.com/authcore-dev/authcore/revocation"
	"github.com/authcore-dev/authcore/validation"
)

// Engine is the authentication core. Construct it through [Builder.Build];
// a zero Engine is not usable. All methods are safe for concurrent use: the
// engine holds no mutable state of its own and relies on the collaborators'
// own concurrency guarantees.
type Engine struct {
	config      Config
	users       UserStore
	revocations RevocationStore
	hasher      credentialHasher
	codec       *jwt.Codec
	audit       *auditDispatcher
	metrics     *Metrics
}

// credentialHasher is what the engine needs from the password package.
// Narrowed to an interface so tests can inject failure modes.
type credentialHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) bool
	NeedsRehash(encodedHash string) bool
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.revocations == nil || e.hasher == nil || e.codec == nil {
		return ErrEngineNotReady
	}
	return nil
}

// Register creates a new account and signs the user in. The new user starts
// active and unverified. Validation failures leave storage untouched; a
// token issuance failure after the insert returns the error while the user
// stays persisted, and the caller recovers through Login.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if err := validation.Email(req.Email); err != nil {
		e.metrics.Inc(MetricRegisterFailure)
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.Password(req.Password); err != nil {
		e.metrics.Inc(MetricRegisterFailure)
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Best-effort pre-check for a friendlier error; the insert below is
	// what actually enforces uniqueness.
	if _, found, err := e.users.FindByEmail(ctx, req.Email); err != nil {
		e.metrics.Inc(MetricRegisterFailure)
		return nil, storeErr(err)
	} else if found {
		e.metrics.Inc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, 0, req.Email, ErrUserAlreadyExists, nil)
		return nil, ErrUserAlreadyExists
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		e.metrics.Inc(MetricRegisterFailure)
		return nil, fmt.Errorf("password hashing failed: %w", err)
	}

	now := time.Now().UTC()
	user, err := e.users.Insert(ctx, User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			e.metrics.Inc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, 0, req.Email, err, nil)
			return nil, ErrUserAlreadyExists
		}
		e.metrics.Inc(MetricRegisterFailure)
		return nil, storeErr(err)
	}

	access, refresh, err := e.issuePair(user)
	if err != nil {
		e.metrics.Inc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, user.ID, user.Email, err, nil)
		return nil, err
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, user.Email, nil, nil)

	return &AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Login verifies credentials and issues a fresh token pair. An unknown
// email is ErrUserNotFound; a deactivated account or wrong password is
// ErrInvalidCredentials. Collapsing not-found into invalid-credentials for
// presentation is the transport's choice, not made here.
func (e *Engine) Login(ctx context.Context, email, pass string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if err := validation.Email(email); err != nil {
		e.metrics.Inc(MetricLoginFailure)
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, found, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		return nil, storeErr(err)
	}
	if !found {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, email, ErrUserNotFound, nil)
		return nil, ErrUserNotFound
	}

	if !user.IsActive {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, user.Email, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "inactive"}
		})
		return nil, ErrInvalidCredentials
	}

	if !e.hasher.Verify(pass, user.PasswordHash) {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, user.Email, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsRehash(user.PasswordHash) {
		if rehash, err := e.hasher.Hash(pass); err == nil {
			user.PasswordHash = rehash
		} else {
			log.Print("authcore: password rehash failed, keeping existing hash: ", err)
		}
	}

	// Stamp the login. Persistence trouble here must not block the login
	// itself; the credential check already passed.
	user.LastLogin = time.Now().UTC()
	user.UpdatedAt = user.LastLogin
	if err := e.users.Update(ctx, user); err != nil {
		log.Print("authcore: last-login update failed: ", err)
	}

	access, refresh, err := e.issuePair(user)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, user.Email, nil, nil)

	return &AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new access
// token. With [SecurityConfig.RotateRefreshTokens] set, the presented
// refresh token is revoked and a replacement returned; otherwise
// TokenPair.RefreshToken echoes the presented token.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.codec.Verify(refreshToken, jwt.TokenRefresh)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, 0, "", ErrTokenInvalid, nil)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	tokenID := revocation.TokenID(refreshToken)
	revoked, err := e.revocations.Contains(ctx, tokenID)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, storeErr(err)
	}
	if revoked {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UserID, claims.Email, ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "revoked"}
		})
		return nil, fmt.Errorf("%w: token revoked", ErrTokenInvalid)
	}

	access, err := e.codec.IssueAccess(claims.UserID, claims.Email)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, mapIssueErr(err)
	}

	pair := &TokenPair{AccessToken: access, RefreshToken: refreshToken}

	if e.config.Security.RotateRefreshTokens {
		next, err := e.codec.IssueRefresh(claims.UserID, claims.Email)
		if err != nil {
			e.metrics.Inc(MetricRefreshFailure)
			return nil, mapIssueErr(err)
		}
		// The old token must be dead before the new one is handed out.
		if err := e.revocations.Add(ctx, RevocationEntry{
			TokenID:   tokenID,
			UserID:    claims.UserID,
			ExpiresAt: claims.ExpiresAt.Time,
			RevokedAt: time.Now().UTC(),
		}); err != nil {
			e.metrics.Inc(MetricRefreshFailure)
			return nil, storeErr(err)
		}
		pair.RefreshToken = next
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.UserID, claims.Email, nil, nil)

	return pair, nil
}

// Logout revokes both tokens of a session. The tokens are decoded without
// signature or expiry checks so a session can always be closed, even with
// tokens moments from expiring. Each revocation is keyed by the token's own
// expiry. Idempotent: logging out already revoked tokens succeeds.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	// Decode both before revoking either, so structural garbage in the
	// second token does not leave a half-revoked session.
	entries := make([]RevocationEntry, 0, 2)
	now := time.Now().UTC()
	for _, token := range []string{accessToken, refreshToken} {
		claims, err := e.codec.DecodeUnverified(token)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		if claims.ExpiresAt == nil {
			return fmt.Errorf("%w: token has no expiry", ErrTokenInvalid)
		}
		entries = append(entries, RevocationEntry{
			TokenID:   revocation.TokenID(token),
			UserID:    claims.UserID,
			ExpiresAt: claims.ExpiresAt.Time,
			RevokedAt: now,
		})
	}

	for _, entry := range entries {
		if err := e.revocations.Add(ctx, entry); err != nil {
			return storeErr(err)
		}
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, entries[0].UserID, "", nil, nil)

	return nil
}

// VerifyAccess authenticates a single request: signature, expiry, and
// access token type. The revocation store is consulted only when
// [SecurityConfig.CheckAccessRevocation] is set; the baseline trades
// instant access revocation for a store-free hot path.
func (e *Engine) VerifyAccess(ctx context.Context, token string) (*Claims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.codec.Verify(token, jwt.TokenAccess)
	if err != nil {
		e.metrics.Inc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventAccessRejected, false, 0, "", ErrTokenInvalid, nil)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if e.config.Security.CheckAccessRevocation {
		revoked, err := e.revocations.Contains(ctx, revocation.TokenID(token))
		if err != nil {
			e.metrics.Inc(MetricVerifyFailure)
			return nil, storeErr(err)
		}
		if revoked {
			e.metrics.Inc(MetricVerifyFailure)
			e.emitAudit(ctx, auditEventAccessRejected, false, claims.UserID, claims.Email, ErrTokenInvalid, func() map[string]string {
				return map[string]string{"reason": "revoked"}
			})
			return nil, fmt.Errorf("%w: token revoked", ErrTokenInvalid)
		}
	}

	e.metrics.Inc(MetricVerifySuccess)

	return claims, nil
}

// Metrics exposes the engine's counters. Never nil after Build.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) issuePair(user User) (access, refresh string, err error) {
	access, err = e.codec.IssueAccess(user.ID, user.Email)
	if err != nil {
		return "", "", mapIssueErr(err)
	}
	refresh, err = e.codec.IssueRefresh(user.ID, user.Email)
	if err != nil {
		return "", "", mapIssueErr(err)
	}
	return access, refresh, nil
}

// mapIssueErr translates codec issue failures into the sentinel set.
func mapIssueErr(err error) error {
	if errors.Is(err, jwt.ErrBadSubject) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return err
}

// storeErr wraps collaborator failures in ErrStoreUnavailable unless they
// already carry a sentinel from the closed set.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserAlreadyExists) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
