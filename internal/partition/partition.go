// Package partition derives partition keys from identity UUIDs.
//
// Every table in the store is sharded by a small-integer partition key that
// is a pure function of the row's identity value: the document uuid for
// Document rows, the referential id for Alias rows. Because the key is
// derived and never stored independently, any writer in any process computes
// the same key for the same identity with no coordination.
package partition

import "github.com/google/uuid"

// Count is the fixed number of partitions. Changing it invalidates every
// stored partition key, so it is a constant rather than configuration.
const Count = 16

// Key is a small-integer shard selector scoping indexes and row locks.
type Key int16

// KeyFor derives the partition key for an identity value. It is total and
// deterministic: the low byte of the RFC 4122 encoding, modulo Count. Using
// the canonical byte order keeps the result identical for polyglot writers
// that share the store.
func KeyFor(id uuid.UUID) Key {
	return Key(id[15] % Count)
}
