package mesh

import "errors"

var (
	// ErrConfiguration is returned when a grid cannot be built from the
	// requested sensor and target resolutions. It is fatal at setup.
	ErrConfiguration = errors.New("invalid mesh configuration")

	// ErrSourceUnavailable is returned by Builder.Update when the depth
	// source has not produced a frame yet. The cycle is skipped.
	ErrSourceUnavailable = errors.New("depth source has no frame")

	// ErrDimensionMismatch is returned when a depth frame does not match
	// the configured sensor resolution. The cycle is skipped.
	ErrDimensionMismatch = errors.New("depth frame size does not match sensor resolution")
)
