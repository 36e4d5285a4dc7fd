package password

import (
	"strings"
	"testing"
)

func testConfig() Config {
	// Minimum legal cost, keeps the suite fast.
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"low memory", func(c *Config) { c.Memory = 1024 }},
		{"zero time", func(c *Config) { c.Time = 0 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.SaltLength = 8 }},
		{"short key", func(c *Config) { c.KeyLength = 8 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewHasher(cfg); err == nil {
				t.Fatal("expected config error, got nil")
			}
		})
	}
}

func TestHashRoundTrip(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("S3cure!pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format: %q", hash)
	}

	if !h.Verify("S3cure!pass", hash) {
		t.Error("correct password did not verify")
	}
	if h.Verify("S3cure!pasS", hash) {
		t.Error("wrong password verified")
	}
	if h.Verify("", hash) {
		t.Error("empty password verified")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("same-input-1!A")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("same-input-1!A")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t)

	inputs := []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$AAAA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$AAAA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$AAAA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!!$AAAA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$AAAA",
	}

	for _, in := range inputs {
		if h.Verify("whatever", in) {
			t.Errorf("malformed hash %q verified", in)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("S3cure!pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h.NeedsRehash(hash) {
		t.Error("fresh hash reported as needing rehash")
	}

	if !h.NeedsRehash("") {
		t.Error("empty hash not flagged")
	}
	if !h.NeedsRehash("garbage") {
		t.Error("malformed hash not flagged")
	}

	// Stronger configuration flags hashes produced under the old one.
	stronger, err := NewHasher(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	if !stronger.NeedsRehash(hash) {
		t.Error("weaker-parameter hash not flagged by stronger config")
	}

	// Different key length is a mismatch in either direction.
	wider, err := NewHasher(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	if !wider.NeedsRehash(hash) {
		t.Error("key-length mismatch not flagged")
	}
}
