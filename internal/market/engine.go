package market

import (
	"MarketLedger/internal/clock"
	"MarketLedger/internal/event"
	"MarketLedger/internal/ledger"
	"MarketLedger/internal/listing"
	"MarketLedger/internal/observability"
	"MarketLedger/internal/registry"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// custodyCheckInterval controls how often the full custody sweep (every
// active listing held by the engine) runs; the cheap value conservation
// check runs on every operation.
const custodyCheckInterval = 1000

// PayoutSink performs the outbound value transfer for withdrawals. The
// engine zeroes the balance before calling it; a failing sink rolls the
// withdrawal back. Implementations are called without the engine lock
// held, so a sink that calls back into the engine cannot deadlock.
type PayoutSink interface {
	Transfer(ctx context.Context, to uuid.UUID, amount int64) error
}

// Engine is the auction/sale engine: the single writer of the listing
// store and the withdrawal ledger. Operations are totally ordered by one
// global mutex held for the full operation (contention is low and the
// lock makes every operation an atomic unit, so no per-item locking).
type Engine struct {
	mu sync.Mutex

	gate     *Gate
	store    *listing.Store
	ledger   *ledger.WithdrawalLedger
	registry registry.Registry
	payouts  PayoutSink
	clock    clock.Clock

	// self is the engine's own custody principal: while a listing is
	// active, the item registry shows self as the item's holder.
	self uuid.UUID

	sequence int64

	persistChan   chan<- event.Notification
	broadcastChan chan<- event.Notification

	metrics *observability.Metrics
}

func NewEngine(
	self, operator uuid.UUID,
	reg registry.Registry,
	payouts PayoutSink,
	clk clock.Clock,
	persistChan, broadcastChan chan<- event.Notification,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		gate:          NewGate(operator),
		store:         listing.NewStore(),
		ledger:        ledger.NewWithdrawalLedger(),
		registry:      reg,
		payouts:       payouts,
		clock:         clk,
		self:          self,
		persistChan:   persistChan,
		broadcastChan: broadcastChan,
		metrics:       metrics,
	}
}

// Self returns the engine's custody principal.
func (e *Engine) Self() uuid.UUID {
	return e.self
}

// --- Operations ---

// ListForSale escrows an item at a fixed price.
func (e *Engine) ListForSale(caller uuid.UUID, itemID int64, price int64) error {
	return e.run("list_for_sale", func() error {
		if price <= 0 {
			return ErrZeroPrice
		}
		return e.createListing(caller, &listing.Listing{
			Seller: caller,
			ItemID: itemID,
			Price:  price,
			Kind:   listing.KindFixedPrice,
		})
	})
}

// ListForAuction escrows an item for a time-bounded auction opening at
// startPrice.
func (e *Engine) ListForAuction(caller uuid.UUID, itemID int64, startPrice int64, duration time.Duration) error {
	return e.run("list_for_auction", func() error {
		if startPrice <= 0 {
			return ErrZeroPrice
		}
		if duration <= 0 {
			return ErrZeroDuration
		}
		return e.createListing(caller, &listing.Listing{
			Seller:  caller,
			ItemID:  itemID,
			Price:   startPrice,
			EndTime: e.clock.Now().Add(duration),
			Kind:    listing.KindAuction,
		})
	})
}

// createListing validates custody preconditions, takes escrow and
// installs the listing. Caller holds the engine lock.
func (e *Engine) createListing(caller uuid.UUID, l *listing.Listing) error {
	holder, ok := e.registry.HolderOf(l.ItemID)
	if !ok || holder != caller {
		return ErrNotHolder
	}
	if existing, ok := e.store.Get(l.ItemID); ok && existing.Active {
		return ErrAlreadyListed
	}
	if !e.registry.Approved(l.ItemID, e.self) {
		return ErrNotApproved
	}

	// The only fallible mutation goes first so a failure leaves no
	// partial state behind.
	if err := e.registry.TransferFrom(e.self, l.ItemID, caller, e.self); err != nil {
		return fmt.Errorf("take custody of item %d: %w", l.ItemID, err)
	}
	if err := e.store.Put(l); err != nil {
		panic(fmt.Sprintf("FATAL: listing store rejected validated listing: %v", err))
	}

	e.emit(event.Notification{
		Type:      event.TypeListed,
		ItemID:    l.ItemID,
		Principal: l.Seller,
		Amount:    l.Price,
		Kind:      l.Kind.String(),
		EndTime:   l.EndTime,
	})
	return nil
}

// Buy purchases a fixed-price listing. Overpayment is credited back to
// the buyer's own withdrawal ledger entry, never refunded in-line.
func (e *Engine) Buy(caller uuid.UUID, itemID int64, payment int64) error {
	return e.run("buy", func() error {
		l, err := e.activeListing(itemID)
		if err != nil {
			return err
		}
		if l.Kind != listing.KindFixedPrice {
			return ErrWrongKind
		}
		if payment < l.Price {
			return ErrInsufficientPayment
		}

		if err := e.registry.TransferFrom(e.self, itemID, e.self, caller); err != nil {
			return fmt.Errorf("release item %d to buyer: %w", itemID, err)
		}
		e.deactivate(itemID)

		e.ledger.RecordInflow(payment)
		e.ledger.Credit(l.Seller, l.Price)
		credits := []event.Credit{{Principal: l.Seller, Amount: l.Price}}
		if excess := payment - l.Price; excess > 0 {
			e.ledger.Credit(caller, excess)
			credits = append(credits, event.Credit{Principal: caller, Amount: excess})
		}

		e.emit(event.Notification{
			Type:      event.TypeSold,
			ItemID:    itemID,
			Principal: caller,
			Amount:    l.Price,
			Credits:   credits,
		})
		return nil
	})
}

// PlaceBid records a new highest bid on an open auction. The outbid
// bidder is refunded by accrual, never by a synchronous push, so a
// misbehaving bidder can never block the next bid.
func (e *Engine) PlaceBid(caller uuid.UUID, itemID int64, amount int64) error {
	return e.run("place_bid", func() error {
		l, err := e.activeListing(itemID)
		if err != nil {
			return err
		}
		if l.Kind != listing.KindAuction {
			return ErrWrongKind
		}
		if !e.clock.Now().Before(l.EndTime) {
			return ErrBiddingClosed
		}

		prevBidder, prevBid, err := l.RecordBid(caller, amount)
		if err != nil {
			if errors.Is(err, listing.ErrBidTooLow) {
				return ErrBidTooLow
			}
			return err
		}

		e.ledger.RecordInflow(amount)
		var credits []event.Credit
		if prevBidder != uuid.Nil {
			e.ledger.Credit(prevBidder, prevBid)
			credits = []event.Credit{{Principal: prevBidder, Amount: prevBid}}
		}

		e.emit(event.Notification{
			Type:      event.TypeBid,
			ItemID:    itemID,
			Principal: caller,
			Amount:    amount,
			Credits:   credits,
		})
		return nil
	})
}

// EndAuction settles an auction at or after its end time. Any caller may
// settle; settlement may be delayed arbitrarily but never happens early.
func (e *Engine) EndAuction(caller uuid.UUID, itemID int64) error {
	return e.run("end_auction", func() error {
		l, err := e.activeListing(itemID)
		if err != nil {
			return err
		}
		if l.Kind != listing.KindAuction {
			return ErrWrongKind
		}
		if e.clock.Now().Before(l.EndTime) {
			return ErrAuctionNotEnded
		}

		if !l.HasBids() {
			// No value ever changed hands: custody goes straight back.
			if err := e.registry.TransferFrom(e.self, itemID, e.self, l.Seller); err != nil {
				return fmt.Errorf("return item %d to seller: %w", itemID, err)
			}
			e.deactivate(itemID)
			e.emit(event.Notification{
				Type:      event.TypeListingCancelled,
				ItemID:    itemID,
				Principal: l.Seller,
			})
			return nil
		}

		if err := e.registry.TransferFrom(e.self, itemID, e.self, l.HighestBidder); err != nil {
			return fmt.Errorf("release item %d to winner: %w", itemID, err)
		}
		e.deactivate(itemID)
		e.ledger.Credit(l.Seller, l.HighestBid)

		e.emit(event.Notification{
			Type:      event.TypeAuctionEnded,
			ItemID:    itemID,
			Principal: l.HighestBidder,
			Amount:    l.HighestBid,
			Credits:   []event.Credit{{Principal: l.Seller, Amount: l.HighestBid}},
		})
		return nil
	})
}

// CancelListing returns an escrowed item to its seller. Auctions that
// already received a bid cannot be cancelled.
func (e *Engine) CancelListing(caller uuid.UUID, itemID int64) error {
	return e.run("cancel_listing", func() error {
		l, err := e.activeListing(itemID)
		if err != nil {
			return err
		}
		if caller != l.Seller {
			return ErrNotSeller
		}
		if l.Kind == listing.KindAuction && l.HasBids() {
			return ErrAuctionHasBids
		}

		if err := e.registry.TransferFrom(e.self, itemID, e.self, l.Seller); err != nil {
			return fmt.Errorf("return item %d to seller: %w", itemID, err)
		}
		e.deactivate(itemID)

		e.emit(event.Notification{
			Type:      event.TypeListingCancelled,
			ItemID:    itemID,
			Principal: l.Seller,
		})
		return nil
	})
}

// Withdraw drains the caller's accrued balance and transfers it out. The
// balance is zeroed BEFORE the transfer so a payout sink that re-enters
// the engine observes a zero balance; a failed transfer rolls the
// zeroing back and the operation fails as a whole.
func (e *Engine) Withdraw(ctx context.Context, caller uuid.UUID) (int64, error) {
	start := time.Now()

	e.mu.Lock()
	if err := e.gate.Check(); err != nil {
		e.mu.Unlock()
		e.observe("withdraw", start, err)
		return 0, err
	}
	if e.ledger.Balance(caller) == 0 {
		e.mu.Unlock()
		e.observe("withdraw", start, ErrNothingToWithdraw)
		return 0, ErrNothingToWithdraw
	}

	amount := e.ledger.Drain(caller)
	e.checkConservation()
	e.mu.Unlock()

	// The outbound transfer runs without the engine lock: a sink that
	// calls back into the engine sees fully consistent state with the
	// caller's balance already zero.
	if err := e.payouts.Transfer(ctx, caller, amount); err != nil {
		e.mu.Lock()
		e.ledger.Restore(caller, amount)
		e.checkConservation()
		e.mu.Unlock()
		e.observe("withdraw", start, err)
		return 0, fmt.Errorf("payout transfer for %s: %w", caller, err)
	}

	e.mu.Lock()
	e.emit(event.Notification{
		Type:      event.TypeWithdrawalMade,
		Principal: caller,
		Amount:    amount,
		Credits:   []event.Credit{{Principal: caller, Amount: -amount}},
	})
	e.updateGauges()
	e.mu.Unlock()

	e.observe("withdraw", start, nil)
	return amount, nil
}

// Pause engages the admin gate. Operator only.
func (e *Engine) Pause(caller uuid.UUID) error {
	start := time.Now()
	e.mu.Lock()
	err := e.gate.pause(caller)
	if err == nil {
		e.emit(event.Notification{Type: event.TypePaused, Principal: caller})
	}
	e.mu.Unlock()
	e.observe("pause", start, err)
	return err
}

// Unpause releases the admin gate. Operator only.
func (e *Engine) Unpause(caller uuid.UUID) error {
	start := time.Now()
	e.mu.Lock()
	err := e.gate.unpause(caller)
	if err == nil {
		e.emit(event.Notification{Type: event.TypeUnpaused, Principal: caller})
	}
	e.mu.Unlock()
	e.observe("unpause", start, err)
	return err
}

// --- Queries ---

// Listing returns a copy of the listing for an item, active or not.
func (e *Engine) Listing(itemID int64) (listing.Listing, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.store.Get(itemID)
	if !ok {
		return listing.Listing{}, false
	}
	return *l, true
}

// Listings returns copies of all known listings.
func (e *Engine) Listings() []listing.Listing {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// Balance returns a principal's accrued withdrawable balance.
func (e *Engine) Balance(principal uuid.UUID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Balance(principal)
}

// Sequence returns the next notification sequence number.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// Paused reports the admin gate state.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.Paused()
}

// Restore seeds the engine from persisted projections on startup. Must
// be called before the engine serves operations.
func (e *Engine) Restore(listings []listing.Listing, balances map[uuid.UUID]int64, lastSequence int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, l := range listings {
		e.store.RestoreListing(l)
	}
	e.ledger.RestoreBalances(balances, e.store.EscrowedValue())
	e.sequence = lastSequence + 1
	e.checkConservation()
	e.updateGauges()
}

// --- Internals ---

// run executes one mutating operation under the global lock, checks the
// conservation invariant, and records metrics.
func (e *Engine) run(op string, fn func() error) error {
	start := time.Now()

	e.mu.Lock()
	err := e.gate.Check()
	if err == nil {
		err = fn()
	}
	if err == nil {
		e.checkConservation()
		e.updateGauges()
	}
	e.mu.Unlock()

	e.observe(op, start, err)
	return err
}

func (e *Engine) activeListing(itemID int64) (*listing.Listing, error) {
	l, err := e.store.Active(itemID)
	if err != nil {
		return nil, ErrListingNotActive
	}
	return l, nil
}

func (e *Engine) deactivate(itemID int64) {
	if err := e.store.Deactivate(itemID); err != nil {
		panic(fmt.Sprintf("FATAL: deactivate validated listing %d: %v", itemID, err))
	}
}

// emit stamps and fans out one notification. The persist channel send
// blocks, so no notification is ever lost; the broadcast channel send
// drops on full (UI consumers can re-read the log).
func (e *Engine) emit(n event.Notification) {
	n.ID = uuid.New()
	n.Sequence = e.sequence
	n.Timestamp = e.clock.Now()
	e.sequence++

	e.persistChan <- n

	select {
	case e.broadcastChan <- n:
	default:
		if e.metrics != nil {
			e.metrics.BroadcastDrops.Inc()
		}
	}
}

// checkConservation panics on a value-conservation violation: the state
// is corrupt and continuing would move phantom value. Every 1000th
// operation additionally sweeps custody of all active listings.
func (e *Engine) checkConservation() {
	if err := e.ledger.CheckConservation(e.store.EscrowedValue()); err != nil {
		panic(fmt.Sprintf("FATAL: %v", err))
	}

	if e.sequence > 0 && e.sequence%custodyCheckInterval == 0 {
		for _, l := range e.store.Snapshot() {
			if !l.Active {
				continue
			}
			if holder, ok := e.registry.HolderOf(l.ItemID); !ok || holder != e.self {
				panic(fmt.Sprintf("FATAL: active listing %d not in engine custody (holder=%v)", l.ItemID, holder))
			}
		}
	}
}

func (e *Engine) updateGauges() {
	if e.metrics == nil {
		return
	}
	e.metrics.Sequence.Set(float64(e.sequence))
	e.metrics.EscrowedValue.Set(float64(e.store.EscrowedValue()))
	e.metrics.AccruedValue.Set(float64(e.ledger.AccruedTotal()))
	e.metrics.ActiveListings.Set(float64(e.store.ActiveCount()))
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	if err == nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
	} else {
		e.metrics.OpsRejected.WithLabelValues(op, ClassOf(err).String()).Inc()
	}
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
