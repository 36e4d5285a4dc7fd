// Package validation holds the pure input checks that gate entry into the
// authentication engine: email syntax and password strength. It has no
// dependencies and performs no I/O; the root package wraps its errors in
// the ErrValidation sentinel.
package validation
