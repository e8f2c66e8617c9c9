package domain

import "errors"

var (
	// ErrNotInitialized is returned when a component is used before Initialize.
	ErrNotInitialized = errors.New("component not initialized")
	// ErrInvalidThreshold is returned when a threshold triple is misordered.
	ErrInvalidThreshold = errors.New("invalid threshold ordering")
	// ErrUnknownDomain is returned for a domain name with no detector or strategy table.
	ErrUnknownDomain = errors.New("unknown domain")
	// ErrInvalidLevel is returned for a degradation level outside 0..5.
	ErrInvalidLevel = errors.New("invalid degradation level")
	// ErrUnknownStrategy is returned when replacing a strategy that does not exist.
	ErrUnknownStrategy = errors.New("unknown strategy")
)
