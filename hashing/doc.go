// Package hashing provides deterministic content digests for structured values.
//
// Values are canonicalized (map keys sorted recursively) before hashing, so
// structurally equal values produce identical digests regardless of
// construction or iteration order.
package hashing
