package cropping

import "errors"

var (
	// ErrInvalidIdentifier marks a crop variant id that cannot be built or parsed.
	// It points at a configuration authoring mistake and must not be swallowed.
	ErrInvalidIdentifier = errors.New("invalid crop variant identifier")

	// ErrUnresolvableDimensions is returned when the source image has no usable
	// width or height. Callers skip the reference.
	ErrUnresolvableDimensions = errors.New("unresolvable image dimensions")

	// ErrInvalidRatio is returned for ratio expressions that do not evaluate to a
	// positive finite number.
	ErrInvalidRatio = errors.New("invalid ratio expression")
)
