package models

import "errors"

// Plan validation errors.
var (
	ErrMissingURL       = errors.New("plan has no source URL")
	ErrMissingContainer = errors.New("plan has no item container selector")
	ErrBadAPITemplate   = errors.New("detail API template is missing the {id} placeholder")
)
