// Package jwt issues and verifies the signed HS256/384/512 tokens that
// carry authentication state between calls. A Codec is a pure function of
// its configuration: it signs claims, verifies signatures and time bounds,
// and nothing else. Revocation, user lookup, and policy live above it.
package jwt
