package domain

import "errors"

var (
	ErrNotFitted       = errors.New("not fitted")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownIntent   = errors.New("unknown intent")
	// ErrUnknownSlotName means a decoded slot has no entity, i.e. the model
	// and its slot mapping were not fitted from the same dataset.
	ErrUnknownSlotName = errors.New("unknown slot name")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidTag      = errors.New("invalid tag")
)
