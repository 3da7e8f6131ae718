package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrTransport         = errors.New("transport error")
	ErrEstimation        = errors.New("estimation failed")
	ErrNullTransaction   = errors.New("transaction not found")
	ErrMiningFailed      = errors.New("mining failed")
	ErrPersistence       = errors.New("persistence error")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInFlight          = errors.New("review in flight")
	ErrVotingAssigned    = errors.New("voting contract already assigned")
)
