// Package revocation tracks blacklisted tokens until their natural expiry.
//
// An entry is keyed by the SHA-256 digest of the opaque token string, so the
// store never holds a usable token. Entries carry the token's own expiry;
// purging removes only entries that are already dead, which means a
// revocation can never be evicted while the token it blocks is still live.
//
// Two implementations ship: Store (Redis, for shared deployments) and
// Memory (single process, tests and examples).
package revocation
