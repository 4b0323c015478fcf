package contracts

import "errors"

// Sentinel errors for the recoverable conditions the engine distinguishes.
// All but ErrNoUsableData are absorbed locally (logged, symbol or date
// skipped); ErrNoUsableData is the catastrophic case that fails the run
// before the loop starts.
var (
	ErrNoUsableData          = errors.New("no usable price data")
	ErrInsufficientHistory   = errors.New("insufficient trailing history")
	ErrNoPriceData           = errors.New("no price available on or before date")
	ErrInsufficientCash      = errors.New("insufficient cash")
	ErrNoEligibleCandidates  = errors.New("no candidates survive eligibility filters")
	ErrInvalidTargetWeights  = errors.New("invalid target weights")
)
