package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/authcore-dev/authcore/revocation"
)

// mockUserStore is the in-package test double for the user persistence
// contract. Errors can be forced per method to exercise failure mapping.
type mockUserStore struct {
	mu      sync.Mutex
	users   map[uint32]User
	byEmail map[string]uint32
	nextID  uint32

	findErr   error
	insertErr error
	updateErr error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:   map[uint32]User{},
		byEmail: map[string]uint32{},
		nextID:  1,
	}
}

func (m *mockUserStore) Insert(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertErr != nil {
		return User{}, m.insertErr
	}
	key := strings.ToLower(user.Email)
	if _, exists := m.byEmail[key]; exists {
		return User{}, ErrUserAlreadyExists
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	m.byEmail[key] = user.ID
	return user, nil
}

func (m *mockUserStore) FindByID(_ context.Context, id uint32) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return User{}, false, m.findErr
	}
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *mockUserStore) FindByEmail(_ context.Context, email string) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return User{}, false, m.findErr
	}
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, false, nil
	}
	return m.users[id], true, nil
}

func (m *mockUserStore) Update(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func testEngineConfig() Config {
	cfg := DefaultConfig()
	// Minimum legal argon2 cost, keeps the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, store *mockUserStore) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithUserStore(store).
		WithRevocationStore(revocation.NewMemory()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

const testPassword = "Sup3r$ecret"

func register(t *testing.T, e *Engine, email string) *AuthResult {
	t.Helper()

	res, err := e.Register(context.Background(), RegisterRequest{
		Email:     email,
		Password:  testPassword,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return res
}

func TestRegisterSuccess(t *testing.T) {
	store := newMockUserStore()
	engine := newTestEngine(t, testEngineConfig(), store)

	res := register(t, engine, "ada@example.com")

	if res.User.ID == 0 {
		t.Error("expected assigned user id")
	}
	if !res.User.IsActive {
		t.Error("new user should start active")
	}
	if res.User.IsVerified {
		t.Error("new user should start unverified")
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Error("expected both tokens populated")
	}
	if res.AccessToken == res.RefreshToken {
		t.Error("access and refresh tokens are identical")
	}

	stored := store.users[res.User.ID]
	if stored.PasswordHash == "" || stored.PasswordHash == testPassword {
		t.Error("expected stored password to be hashed")
	}
	if !engine.hasher.Verify(testPassword, stored.PasswordHash) {
		t.Error("stored hash does not verify the password")
	}

	if got := engine.Metrics().Value(MetricRegisterSuccess); got != 1 {
		t.Errorf("register success counter = %d, want 1", got)
	}
}

func TestRegisterValidationLeavesStoreUntouched(t *testing.T) {
	store := newMockUserStore()
	engine := newTestEngine(t, testEngineConfig(), store)
	ctx := context.Background()

	cases := []RegisterRequest{
		{Email: "not-an-email", Password: testPassword},
		{Email: "ok@example.com", Password: "weak"},
		{Email: "ok@example.com", Password: "alllowercase1!"},
		{Email: "ok@example.com", Password: strings.Repeat("Aa1!", 40)},
	}
	for _, req := range cases {
		if _, err := engine.Register(ctx, req); !errors.Is(err, ErrValidation) {
			t.Errorf("Register(%q): err = %v, want ErrValidation", req.Email, err)
		}
	}

	if len(store.users) != 0 {
		t.Errorf("store has %d users after rejected registrations, want 0", len(store.users))
	}
}

func TestRegisterDuplicate(t *testing.T) {
	store := newMockUserStore()
	engine := newTestEngine(t, testEngineConfig(), store)

	register(t, engine, "dup@example.com")

	_, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "dup@example.com",
		Password: testPassword,
	})
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("err = %v, want ErrUserAlreadyExists", err)
	}
}

func TestRegisterStoreFailure(t *testing.T) {
	store := newMockUserStore()
	store.findErr = errors.New("connection refused")
	engine := newTestEngine(t, testEngineConfig(), store)

	_, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "ada@example.com",
		Password: testPassword,
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestLoginSuccessStampsLastLogin(t *testing.T) {
	store := newMockUserStore()
	engine := newTestEngine(t, testEngineConfig(), store)

	created := register(t, engine, "ada@example.com")
	if !store.users[created.User.ID].LastLogin.IsZero() {
		t.Fatal("LastLogin set before first login")
	}

	res, err := engine.Login(context.Background(), "ada@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Error("expected both tokens populated")
	}
	if res.User.LastLogin.IsZero() {
		t.Error("LastLogin not stamped")
	}
	if store.users[created.User.ID].LastLogin.IsZero() {
		t.Error("LastLogin not persisted")
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	engine := newTestEngine(t, testEngineConfig(), newMockUserStore())

	_, err := engine.Login(context.Background(), "nobody@example.com", testPassword)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	store := newMockUserStore()
	engine := newTestEngine(t, testEngineConfig(), store)
	register(t, engine, "ada@example.com")

	_, err := engine.Login(context.Background(), "ada@example.com", "Wr0ng!pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	store := newMockUserStore()
	engine := newTestEngine(t, testEngineConfig(), store)
	created := register(t, engine, "ada@example.com")

	if _, err := engine.DeactivateUser(context.Background(), created.User.ID); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}

	// Correct password, disabled account: indistinguishable from a bad
	// password at this layer.
	_, err := engine.Login(context.Background(), "ada@example.com", testPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUpdateFailureDoesNotBlockLogin(t *testing.T) {
	store := newMockUserStore()
	engine := newTestEngine(t, testEngineConfig(), store)
	register(t, engine, "ada@example.com")

	store.updateErr = errors.New("write timeout")
	if _, err := engine.Login(context.Background(), "ada@example.com", testPassword); err != nil {
		t.Errorf("login blocked by last-login persistence failure: %v", err)
	}
}

func TestLoginUpgradesHashUnderStrongerConfig(t *testing.T) {
	store := newMockUserStore()
	engine := newTestEngine(t, testEngineConfig(), store)
	created := register(t, engine, "ada@example.com")
	oldHash := store.users[created.User.ID].PasswordHash

	// Same store, stronger cost parameters: the next login re-derives the
	// stored hash.
	cfg := testEngineConfig()
	cfg.Password.Memory = 16 * 1024
	cfg.Password.Time = 2
	upgraded := newTestEngine(t, cfg, store)

	if _, err := upgraded.Login(context.Background(), "ada@example.com", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	newHash := store.users[created.User.ID].PasswordHash
	if newHash == oldHash {
		t.Error("hash not upgraded on login")
	}
	if !upgraded.hasher.Verify(testPassword, newHash) {
		t.Error("upgraded hash does not verify")
	}
}

func TestLoginSkipsUpgradeWhenDisabled(t *testing.T) {
	store := newMockUserStore()
	engine := newTestEngine(t, testEngineConfig(), store)
	created := register(t, engine, "ada@example.com")
	oldHash := store.users[created.User.ID].PasswordHash

	cfg := testEngineConfig()
	cfg.Password.Memory = 16 * 1024
	cfg.Password.UpgradeOnLogin = false
	upgraded := newTestEngine(t, cfg, store)

	if _, err := upgraded.Login(context.Background(), "ada@example.com", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if store.users[created.User.ID].PasswordHash != oldHash {
		t.Error("hash rewritten with UpgradeOnLogin disabled")
	}
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	engine := newTestEngine(t, testEngineConfig(), newMockUserStore())
	res := register(t, engine, "ada@example.com")

	pair, err := engine.Refresh(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.AccessToken == "" {
		t.Error("expected a new access token")
	}
	if pair.RefreshToken != res.RefreshToken {
		t.Error("baseline refresh should echo the presented refresh token")
	}

	claims, err := engine.VerifyAccess(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess on refreshed token: %v", err)
	}
	if claims.UserID != res.User.ID || claims.Email != res.User.Email {
		t.Errorf("refreshed claims = %d/%q, want %d/%q",
			claims.UserID, claims.Email, res.User.ID, res.User.Email)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	engine := newTestEngine(t, testEngineConfig(), newMockUserStore())
	res := register(t, engine, "ada@example.com")

	if _, err := engine.Refresh(context.Background(), res.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestRefreshRejectsTamperedToken(t *testing.T) {
	engine := newTestEngine(t, testEngineConfig(), newMockUserStore())
	res := register(t, engine, "ada@example.com")

	// Flip one character in the signature segment.
	tampered := []byte(res.RefreshToken)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	if _, err := engine.Refresh(context.Background(), string(tampered)); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestRefreshRotationRevokesOldToken(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Security.RotateRefreshTokens = true
	engine := newTestEngine(t, cfg, newMockUserStore())
	res := register(t, engine, "ada@example.com")

	pair, err := engine.Refresh(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.RefreshToken == "" || pair.RefreshToken == res.RefreshToken {
		t.Fatal("rotation did not issue a new refresh token")
	}

	// Old token is dead, the replacement works.
	if _, err := engine.Refresh(context.Background(), res.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("rotated-out token: err = %v, want ErrTokenInvalid", err)
	}
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Errorf("replacement token rejected: %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	engine := newTestEngine(t, testEngineConfig(), newMockUserStore())
	res := register(t, engine, "ada@example.com")
	ctx := context.Background()

	if err := engine.Logout(ctx, res.AccessToken, res.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("refresh after logout: err = %v, want ErrTokenInvalid", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	engine := newTestEngine(t, testEngineConfig(), newMockUserStore())
	res := register(t, engine, "ada@example.com")
	ctx := context.Background()

	if err := engine.Logout(ctx, res.AccessToken, res.RefreshToken); err != nil {
		t.Fatalf("first Logout failed: %v", err)
	}
	if err := engine.Logout(ctx, res.AccessToken, res.RefreshToken); err != nil {
		t.Errorf("second Logout failed: %v", err)
	}
}

func TestLogoutRejectsGarbage(t *testing.T) {
	engine := newTestEngine(t, testEngineConfig(), newMockUserStore())
	res := register(t, engine, "ada@example.com")

	err := engine.Logout(context.Background(), "garbage", res.RefreshToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}

	// The well-formed refresh token must not have been revoked by the
	// failed call.
	if _, err := engine.Refresh(context.Background(), res.RefreshToken); err != nil {
		t.Errorf("refresh token revoked by failed logout: %v", err)
	}
}

func TestVerifyAccessBaselineSkipsRevocation(t *testing.T) {
	engine := newTestEngine(t, testEngineConfig(), newMockUserStore())
	res := register(t, engine, "ada@example.com")
	ctx := context.Background()

	if err := engine.Logout(ctx, res.AccessToken, res.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// Baseline accepts the still-unexpired access token after logout; the
	// short TTL bounds the exposure.
	if _, err := engine.VerifyAccess(ctx, res.AccessToken); err != nil {
		t.Errorf("baseline VerifyAccess after logout: %v", err)
	}
}

func TestVerifyAccessRevocationCheckEnabled(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Security.CheckAccessRevocation = true
	engine := newTestEngine(t, cfg, newMockUserStore())
	res := register(t, engine, "ada@example.com")
	ctx := context.Background()

	if _, err := engine.VerifyAccess(ctx, res.AccessToken); err != nil {
		t.Fatalf("VerifyAccess before logout: %v", err)
	}

	if err := engine.Logout(ctx, res.AccessToken, res.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := engine.VerifyAccess(ctx, res.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("revoked access token: err = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	engine := newTestEngine(t, testEngineConfig(), newMockUserStore())
	res := register(t, engine, "ada@example.com")

	if _, err := engine.VerifyAccess(context.Background(), res.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyAccessExpiredToken(t *testing.T) {
	cfg := testEngineConfig()
	cfg.JWT.AccessTTL = time.Nanosecond
	cfg.JWT.Leeway = 0
	engine := newTestEngine(t, cfg, newMockUserStore())
	res := register(t, engine, "ada@example.com")

	time.Sleep(5 * time.Millisecond)
	if _, err := engine.VerifyAccess(context.Background(), res.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestZeroEngineNotReady(t *testing.T) {
	var engine Engine
	ctx := context.Background()

	if _, err := engine.Register(ctx, RegisterRequest{}); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("Register err = %v, want ErrEngineNotReady", err)
	}
	if _, err := engine.VerifyAccess(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("VerifyAccess err = %v, want ErrEngineNotReady", err)
	}
}

func TestBuilderRequirements(t *testing.T) {
	if _, err := New().WithRevocationStore(revocation.NewMemory()).Build(); err == nil {
		t.Error("Build without user store succeeded")
	}
	if _, err := New().WithUserStore(newMockUserStore()).Build(); err == nil {
		t.Error("Build without revocation store succeeded")
	}

	b := New().
		WithConfig(testEngineConfig()).
		WithUserStore(newMockUserStore()).
		WithRevocationStore(revocation.NewMemory())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Error("second Build on the same builder succeeded")
	}
}
