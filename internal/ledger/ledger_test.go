package ledger

import (
	"testing"

	"github.com/google/uuid"
)

func TestCreditAndDrain(t *testing.T) {
	l := NewWithdrawalLedger()
	alice := uuid.New()

	if got := l.Balance(alice); got != 0 {
		t.Fatalf("fresh balance = %d, want 0", got)
	}

	l.RecordInflow(150)
	l.Credit(alice, 100)
	l.Credit(alice, 50)
	if got := l.Balance(alice); got != 150 {
		t.Fatalf("balance = %d, want 150", got)
	}

	if got := l.Drain(alice); got != 150 {
		t.Fatalf("drained = %d, want 150", got)
	}
	if got := l.Balance(alice); got != 0 {
		t.Fatalf("balance after drain = %d, want 0", got)
	}
	if got := l.Drain(alice); got != 0 {
		t.Fatalf("second drain = %d, want 0", got)
	}

	if err := l.CheckConservation(0); err != nil {
		t.Fatalf("conservation after drain: %v", err)
	}
}

func TestRestoreAfterFailedPayout(t *testing.T) {
	l := NewWithdrawalLedger()
	alice := uuid.New()

	l.RecordInflow(80)
	l.Credit(alice, 80)
	amount := l.Drain(alice)

	l.Restore(alice, amount)
	if got := l.Balance(alice); got != 80 {
		t.Fatalf("restored balance = %d, want 80", got)
	}
	if err := l.CheckConservation(0); err != nil {
		t.Fatalf("conservation after restore: %v", err)
	}
}

func TestConservationDetectsImbalance(t *testing.T) {
	l := NewWithdrawalLedger()
	alice := uuid.New()

	l.RecordInflow(100)
	l.Credit(alice, 100)
	if err := l.CheckConservation(0); err != nil {
		t.Fatalf("balanced ledger: %v", err)
	}

	// Credit without a matching inflow: value appeared from nowhere.
	l.Credit(alice, 1)
	if err := l.CheckConservation(0); err == nil {
		t.Fatal("conservation missed a phantom credit")
	}
}

func TestConservationWithEscrow(t *testing.T) {
	l := NewWithdrawalLedger()
	alice := uuid.New()

	// A bid of 70 enters: 20 accrued to the outbid bidder, 50 escrowed.
	l.RecordInflow(70)
	l.Credit(alice, 20)
	if err := l.CheckConservation(50); err != nil {
		t.Fatalf("conservation with escrow: %v", err)
	}
	if err := l.CheckConservation(0); err == nil {
		t.Fatal("conservation ignored escrowed value")
	}
}

func TestCreditPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("non-positive credit did not panic")
		}
	}()
	NewWithdrawalLedger().Credit(uuid.New(), 0)
}

func TestRestoreBalances(t *testing.T) {
	l := NewWithdrawalLedger()
	alice := uuid.New()
	bob := uuid.New()

	l.RestoreBalances(map[uuid.UUID]int64{alice: 120, bob: 0}, 30)

	if got := l.Balance(alice); got != 120 {
		t.Errorf("restored balance = %d, want 120", got)
	}
	if got := l.Balance(bob); got != 0 {
		t.Errorf("zero balance restored as %d", got)
	}
	if err := l.CheckConservation(30); err != nil {
		t.Fatalf("conservation after restore: %v", err)
	}
}
