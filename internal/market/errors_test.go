package market

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{ErrPaused, ClassGate},
		{ErrZeroPrice, ClassValidation},
		{ErrZeroDuration, ClassValidation},
		{ErrInsufficientPayment, ClassValidation},
		{ErrBidTooLow, ClassValidation},
		{ErrNotHolder, ClassAuthorization},
		{ErrNotApproved, ClassAuthorization},
		{ErrNotSeller, ClassAuthorization},
		{ErrNotOperator, ClassAuthorization},
		{ErrListingNotActive, ClassState},
		{ErrAlreadyListed, ClassState},
		{ErrWrongKind, ClassState},
		{ErrBiddingClosed, ClassState},
		{ErrAuctionNotEnded, ClassState},
		{ErrAuctionHasBids, ClassState},
		{ErrNothingToWithdraw, ClassState},
		{ErrGateUnchanged, ClassState},
		{errors.New("plumbing failure"), ClassUnknown},
	}

	for _, tt := range tests {
		if got := ClassOf(tt.err); got != tt.want {
			t.Errorf("ClassOf(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestClassOfWrapped(t *testing.T) {
	wrapped := fmt.Errorf("take custody of item 7: %w", ErrNotApproved)
	if got := ClassOf(wrapped); got != ClassAuthorization {
		t.Errorf("ClassOf(wrapped) = %v, want ClassAuthorization", got)
	}
	if !errors.Is(wrapped, ErrNotApproved) {
		t.Error("wrapped error lost its sentinel identity")
	}
}

func TestClassString(t *testing.T) {
	tests := []struct {
		class Class
		want  string
	}{
		{ClassValidation, "validation"},
		{ClassAuthorization, "authorization"},
		{ClassState, "state"},
		{ClassGate, "gate"},
		{ClassUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("Class(%d).String() = %q, want %q", tt.class, got, tt.want)
		}
	}
}
