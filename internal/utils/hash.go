package utils

import "hash/fnv"

func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// AdvisoryLockKey derives the signed 64-bit key Postgres advisory locks take
// from a property id. Detection runs for the same property always map to the
// same key.
func AdvisoryLockKey(propertyID string) int64 {
	return int64(HashStringToUint64("detect:" + propertyID))
}
