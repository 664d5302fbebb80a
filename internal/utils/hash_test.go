package utils

import "testing"

func TestHashStringToUint64Stable(t *testing.T) {
	if HashStringToUint64("prop-1") != HashStringToUint64("prop-1") {
		t.Fatalf("hash must be stable for the same input")
	}
	if HashStringToUint64("prop-1") == HashStringToUint64("prop-2") {
		t.Fatalf("different inputs should hash differently")
	}
}

func TestAdvisoryLockKeyStable(t *testing.T) {
	if AdvisoryLockKey("prop-1") != AdvisoryLockKey("prop-1") {
		t.Fatalf("lock key must be stable per property")
	}
	if AdvisoryLockKey("prop-1") == AdvisoryLockKey("prop-2") {
		t.Fatalf("different properties should get different lock keys")
	}
}
