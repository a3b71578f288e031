package service

import "errors"

var (
	// ErrChallengeNotFound is returned when the user has no challenge for
	// the current period
	ErrChallengeNotFound = errors.New("no challenge for the current period")

	// ErrChallengeClosed is returned when progress is reported against a
	// completed or expired challenge
	ErrChallengeClosed = errors.New("challenge is closed")
)
