// Package memstore is the reference in-memory user store. It exists so the
// engine is usable and testable without a database; production deployments
// supply their own implementation of the store contract.
package memstore
