package authcore

import (
	"context"
	"time"
)

// GetUser fetches a user by ID. Absence is ErrUserNotFound.
func (e *Engine) GetUser(ctx context.Context, id uint32) (User, error) {
	if err := e.ready(); err != nil {
		return User{}, err
	}

	user, found, err := e.users.FindByID(ctx, id)
	if err != nil {
		return User{}, storeErr(err)
	}
	if !found {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// ActivateUser re-enables a deactivated account. Idempotent.
func (e *Engine) ActivateUser(ctx context.Context, id uint32) (User, error) {
	return e.setStatus(ctx, id, "activate", func(u *User) { u.IsActive = true })
}

// DeactivateUser disables an account. Login is refused afterwards; tokens
// already issued keep verifying until they expire unless access revocation
// checks are enabled and the tokens are revoked separately.
func (e *Engine) DeactivateUser(ctx context.Context, id uint32) (User, error) {
	return e.setStatus(ctx, id, "deactivate", func(u *User) { u.IsActive = false })
}

// MarkVerified flags the account's email as verified. Verification has no
// bearing on login; it exists for the embedding application's policy.
func (e *Engine) MarkVerified(ctx context.Context, id uint32) (User, error) {
	return e.setStatus(ctx, id, "verify", func(u *User) { u.IsVerified = true })
}

func (e *Engine) setStatus(ctx context.Context, id uint32, change string, apply func(*User)) (User, error) {
	if err := e.ready(); err != nil {
		return User{}, err
	}

	user, found, err := e.users.FindByID(ctx, id)
	if err != nil {
		return User{}, storeErr(err)
	}
	if !found {
		return User{}, ErrUserNotFound
	}

	apply(&user)
	user.UpdatedAt = time.Now().UTC()

	if err := e.users.Update(ctx, user); err != nil {
		return User{}, storeErr(err)
	}

	e.emitAudit(ctx, auditEventAccountStatus, true, user.ID, user.Email, nil, func() map[string]string {
		return map[string]string{"change": change}
	})

	return user, nil
}

// PurgeExpiredRevocations sweeps revocation entries whose expiry is
// strictly before now and reports how many were removed. Intended to run
// periodically from the embedding application's scheduler.
func (e *Engine) PurgeExpiredRevocations(ctx context.Context) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	removed, err := e.revocations.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, storeErr(err)
	}

	e.metrics.Add(MetricRevocationsPurged, uint64(removed))
	if removed > 0 {
		e.emitAudit(ctx, auditEventRevocationPurge, true, 0, "", nil, nil)
	}

	return removed, nil
}
