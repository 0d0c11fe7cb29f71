package domain

import (
	"testing"
	"testing/quick"
)

// Property: GenerateIdempotencyKey is deterministic and always 64 lowercase hex characters.
func TestProperty_GenerateIdempotencyKey_Deterministic(t *testing.T) {
	property := func(clientKey, suffix string) bool {
		key1 := GenerateIdempotencyKey(clientKey, suffix)
		key2 := GenerateIdempotencyKey(clientKey, suffix)
		if key1 != key2 {
			t.Logf("Non-deterministic result for clientKey=%q, suffix=%q", clientKey, suffix)
			return false
		}
		if len(key1) != 64 {
			return false
		}
		for _, r := range key1 {
			if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
				return false
			}
		}
		return true
	}

	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}

// Property: ingest and estimate keys derived from one client key never collide.
func TestProperty_EventKeysDistinct(t *testing.T) {
	property := func(clientKey string) bool {
		return AnnotationsIngestedIdempotencyKey(clientKey) != ConsensusEstimatedIdempotencyKey(clientKey)
	}

	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}
