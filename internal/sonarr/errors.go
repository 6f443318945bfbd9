package sonarr

import "errors"

// Sentinel errors for Sonarr API responses.
var (
	// ErrUnauthorized is returned when Sonarr rejects the API key.
	ErrUnauthorized = errors.New("sonarr: invalid api key")

	// ErrUnavailable is returned when Sonarr cannot be reached or fails server-side.
	ErrUnavailable = errors.New("sonarr unavailable")

	// ErrTagNotFound is returned when a tag label is unknown to Sonarr.
	ErrTagNotFound = errors.New("sonarr: tag not found")
)
