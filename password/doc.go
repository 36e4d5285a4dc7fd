// Package password provides one-way credential hashing with Argon2id.
//
// Hashes are self-contained PHC strings: algorithm, version, cost
// parameters, and a per-call random salt are embedded in the encoded form,
// so verification needs no external state. Comparison is constant time.
//
// # What this package must NOT do
//
//   - Perform I/O beyond reading crypto/rand.
//   - Leak hash-format details through Verify: malformed stored hashes are
//     reported as a non-match, never as a distinct error.
package password
