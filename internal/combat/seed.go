// Package combat holds the pure pieces of match adjudication: deterministic
// seed derivation and structural validation of submitted combat results.
package combat

import (
	"hash/fnv"
	"math/bits"
)

// fingerprint reduces a player id to a 64-bit value. FNV-1a keeps it cheap
// and stable across processes.
func fingerprint(id string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64()
}

// DeriveSeed produces the deterministic seed both clients use to drive
// identical local combat simulations. The creation timestamp is captured once
// at match creation and embedded in the match record, so the seed can never
// be regenerated later.
//
// The opponent fingerprint is rotated before mixing so the derivation is
// order-sensitive: swapping initiator and opponent yields a different seed.
func DeriveSeed(creationTimeMillis int64, initiatorID, opponentID string) int64 {
	mixed := uint64(creationTimeMillis) ^
		fingerprint(initiatorID) ^
		bits.RotateLeft64(fingerprint(opponentID), 31)
	return int64(mixed)
}
