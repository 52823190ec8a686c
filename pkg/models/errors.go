package models

import "errors"

// Error kinds shared by the trackers. Callers wrap them with context and
// match with errors.Is.
var (
	ErrInvalidInterval          = errors.New("invalid time interval")
	ErrInvalidConstraintPayload = errors.New("invalid constraint payload")
	ErrTransport                = errors.New("tracker transport error")
	ErrDelivery                 = errors.New("notification delivery error")
)
