package auth

import (
	"errors"
	"testing"
)

// The credential and token sentinels must stay pairwise distinct:
// callers branch on errors.Is to pick audit reasons, metrics labels
// and HTTP statuses.
func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrMissingCredentials,
		ErrUnknownActor,
		ErrAccountDisabled,
		ErrWrongPassword,
		ErrMissingToken,
		ErrExpiredToken,
		ErrMalformedToken,
	}
	for i, a := range sentinels {
		if a == nil {
			t.Fatalf("sentinel %d is nil", i)
		}
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Fatalf("sentinel %v matches %v", a, b)
			}
		}
	}
}
