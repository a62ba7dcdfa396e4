package project_types

import "github.com/pkg/errors"

var (
	ErrTransformNotInvertible = errors.New("transform is not invertible")
	ErrEmptyArray             = errors.New("empty array")
	ErrInvalidLatLng          = errors.New("invalid geographic coordinate")
	ErrInvalidGeometry        = errors.New("invalid geometry")
	ErrInvalidResolution      = errors.New("invalid resolution")
	ErrCompaction             = errors.New("invalid compaction")
)
