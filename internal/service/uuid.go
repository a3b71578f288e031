package service

import "github.com/google/uuid"

// newChallengeID returns a time-ordered UUIDv7, falling back to a random
// UUID if the v7 generator fails
func newChallengeID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
