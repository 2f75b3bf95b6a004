// Package sanitizer normalizes free-form request fields before validation
// and storage.
//
// All functions are idempotent and never fail: input that cannot be
// normalized comes back empty so the validator rejects it.
package sanitizer
