package library

import "errors"

var (
	// ErrSeriesNotFound indicates no series matched the identity.
	ErrSeriesNotFound = errors.New("series not found")

	// ErrSeasonUnknown indicates the series has no such season.
	ErrSeasonUnknown = errors.New("season not known")

	// ErrAcquisitionFailed indicates the service rejected a monitor or search call.
	ErrAcquisitionFailed = errors.New("acquisition request failed")
)
