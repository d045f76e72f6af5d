package market

import "errors"

// Class buckets every rejection into the four-way taxonomy tests and the
// HTTP layer assert on. Every rejected operation carries both a stable
// sentinel identity and a class.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassAuthorization
	ClassState
	ClassGate
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassAuthorization:
		return "authorization"
	case ClassState:
		return "state"
	case ClassGate:
		return "gate"
	default:
		return "unknown"
	}
}

// OpError is a rejected operation. Rejections never leave partial state
// behind: the engine validates before mutating.
type OpError struct {
	Class  Class
	Reason string
}

func (e *OpError) Error() string {
	return e.Reason
}

func opErr(class Class, reason string) *OpError {
	return &OpError{Class: class, Reason: reason}
}

var (
	// Gate, checked before every other precondition
	ErrPaused = opErr(ClassGate, "engine is paused")

	// Validation: caller-correctable inputs
	ErrZeroPrice           = opErr(ClassValidation, "price must be positive")
	ErrZeroDuration        = opErr(ClassValidation, "auction duration must be positive")
	ErrInsufficientPayment = opErr(ClassValidation, "payment below listing price")
	ErrBidTooLow           = opErr(ClassValidation, "bid must exceed the current highest bid and meet the opening price")

	// Authorization: rejected before any mutation
	ErrNotHolder   = opErr(ClassAuthorization, "caller does not hold the item")
	ErrNotApproved = opErr(ClassAuthorization, "engine not pre-authorized to take custody")
	ErrNotSeller   = opErr(ClassAuthorization, "caller is not the seller")
	ErrNotOperator = opErr(ClassAuthorization, "caller is not the operator")

	// State: listing lifecycle and gate state
	ErrListingNotActive  = opErr(ClassState, "no active listing for item")
	ErrAlreadyListed     = opErr(ClassState, "item already has an active listing")
	ErrWrongKind         = opErr(ClassState, "operation does not match listing kind")
	ErrBiddingClosed     = opErr(ClassState, "auction bidding is closed")
	ErrAuctionNotEnded   = opErr(ClassState, "auction has not reached its end time")
	ErrAuctionHasBids    = opErr(ClassState, "auction with bids cannot be cancelled")
	ErrNothingToWithdraw = opErr(ClassState, "withdrawable balance is zero")
	ErrGateUnchanged     = opErr(ClassState, "gate already in requested state")
)

// ClassOf extracts the taxonomy class from any error returned by the
// engine, or ClassUnknown for internal failures.
func ClassOf(err error) Class {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Class
	}
	return ClassUnknown
}
