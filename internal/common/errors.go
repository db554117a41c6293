package common

import "errors"

var (
	// ErrValidation is returned when a value object is built from invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrRiskBreach is returned when applying a deal would take a position
	// beyond its risk limit.
	ErrRiskBreach = errors.New("risk limit breached")
	// ErrMissingRate is returned when no direct or inverse rate exists between
	// two assets.
	ErrMissingRate = errors.New("missing rate")
	// ErrNoNextRound is returned when a round is requested from an engine with
	// nothing left to match.
	ErrNoNextRound = errors.New("no next round")
)
