package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// WithdrawalLedger maintains the in-memory accrued balances owed to
// principals, plus the running conservation counters. It is the only
// component that ever releases value to a principal, and it is mutated
// only by the engine while holding the engine lock, so no internal locking.
type WithdrawalLedger struct {
	balances map[uuid.UUID]int64

	// Conservation counters: value ever paid into the engine and value
	// already paid out through withdrawals.
	totalIn  int64
	totalOut int64
}

func NewWithdrawalLedger() *WithdrawalLedger {
	return &WithdrawalLedger{
		balances: make(map[uuid.UUID]int64),
	}
}

// Balance returns the accrued withdrawable balance for a principal.
func (l *WithdrawalLedger) Balance(principal uuid.UUID) int64 {
	return l.balances[principal]
}

// Credit accrues amount to a principal's withdrawable balance.
func (l *WithdrawalLedger) Credit(principal uuid.UUID, amount int64) {
	if amount <= 0 {
		panic(fmt.Sprintf("FATAL: non-positive ledger credit %d for %s", amount, principal))
	}
	l.balances[principal] += amount
}

// RecordInflow notes value entering the engine (a payment or a bid).
func (l *WithdrawalLedger) RecordInflow(amount int64) {
	l.totalIn += amount
}

// Drain zeroes a principal's balance and counts it as paid out, returning
// the drained amount. Callers zero BEFORE attempting the outbound
// transfer and call Restore if the transfer fails.
func (l *WithdrawalLedger) Drain(principal uuid.UUID) int64 {
	amount := l.balances[principal]
	if amount == 0 {
		return 0
	}
	delete(l.balances, principal)
	l.totalOut += amount
	return amount
}

// Restore rolls back a Drain after a failed outbound transfer.
func (l *WithdrawalLedger) Restore(principal uuid.UUID, amount int64) {
	l.balances[principal] += amount
	l.totalOut -= amount
}

// AccruedTotal sums all balances currently owed.
func (l *WithdrawalLedger) AccruedTotal() int64 {
	var total int64
	for _, b := range l.balances {
		total += b
	}
	return total
}

// CheckConservation validates that no value was created or destroyed:
// everything paid in is either still owed, still escrowed in active
// listings, or already paid out.
func (l *WithdrawalLedger) CheckConservation(escrowed int64) error {
	accrued := l.AccruedTotal()
	if l.totalIn-l.totalOut != accrued+escrowed {
		return fmt.Errorf("conservation violated: in=%d out=%d accrued=%d escrowed=%d",
			l.totalIn, l.totalOut, accrued, escrowed)
	}
	return nil
}

// Snapshot returns a copy of all non-zero balances.
func (l *WithdrawalLedger) Snapshot() map[uuid.UUID]int64 {
	snapshot := make(map[uuid.UUID]int64, len(l.balances))
	for p, b := range l.balances {
		snapshot[p] = b
	}
	return snapshot
}

// RestoreBalances seeds the ledger from persisted balances on startup.
// The conservation baseline is reset so CheckConservation holds relative
// to the restored state.
func (l *WithdrawalLedger) RestoreBalances(balances map[uuid.UUID]int64, escrowed int64) {
	l.balances = make(map[uuid.UUID]int64, len(balances))
	l.totalIn = 0
	l.totalOut = 0
	for p, b := range balances {
		if b == 0 {
			continue
		}
		l.balances[p] = b
		l.totalIn += b
	}
	l.totalIn += escrowed
}
