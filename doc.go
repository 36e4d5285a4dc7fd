// Package authcore provides a self-contained authentication core: user
// credential management, JWT access/refresh token issuance, verification,
// refresh, and blacklist-based revocation.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The engine itself is stateless between calls; all durable
// state lives behind the [UserStore] and [RevocationStore] collaborator
// interfaces.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// sentinel errors, and value types (User, AuthResult, RevocationEntry).
// Token encoding lives in the jwt subpackage, credential hashing in password,
// input validation in validation, and revocation storage in revocation.
//
// # What this package must NOT do
//
//   - Define a wire protocol. HTTP/RPC framing, cookies, and response
//     shaping belong to the embedding application.
//   - Persist users. The user database stays behind [UserStore]; the
//     memstore subpackage is a reference implementation, not a product.
//   - Retry storage failures. Errors are mapped to one sentinel kind and
//     returned; retry policy is the caller's.
package authcore
