package domain

import "errors"

// Domain errors
var (
	ErrInvalidPlayerID = errors.New("player id is missing or invalid")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInternalError   = errors.New("internal server error")
)
