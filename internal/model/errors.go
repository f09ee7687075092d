package model

import "errors"

var (
	ErrUnknownProduct    = errors.New("unknown product")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEngineNotRunning  = errors.New("fulfillment engine is not running")
	ErrUnknownSequence   = errors.New("unknown order sequence")
)
