package listing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadyListed = errors.New("item already has an active listing")
	ErrNotFound      = errors.New("no listing for item")
	ErrNotActive     = errors.New("listing is not active")
	ErrBidTooLow     = errors.New("bid does not beat the required minimum")
)

// Kind discriminates fixed-price listings from auctions
type Kind int32

const (
	KindFixedPrice Kind = iota
	KindAuction
)

func (k Kind) String() string {
	switch k {
	case KindFixedPrice:
		return "fixed_price"
	case KindAuction:
		return "auction"
	default:
		return "unknown"
	}
}

// Listing is one escrowed sale or auction for a single item. Seller,
// ItemID and Kind are immutable once set; Active transitions true→false
// exactly once.
type Listing struct {
	Seller uuid.UUID
	ItemID int64

	// Sale price for fixed-price listings; minimum opening bid for auctions
	Price int64

	// Auction close time; zero for fixed-price listings
	EndTime time.Time

	// Auction-only; uuid.Nil / 0 until the first accepted bid
	HighestBidder uuid.UUID
	HighestBid    int64

	Kind   Kind
	Active bool
}

// RecordBid accepts a new highest bid. The accepted sequence is strictly
// increasing and every accepted bid is at least the opening price.
func (l *Listing) RecordBid(bidder uuid.UUID, amount int64) (prevBidder uuid.UUID, prevBid int64, err error) {
	if amount < l.Price || amount <= l.HighestBid {
		return uuid.Nil, 0, ErrBidTooLow
	}
	prevBidder, prevBid = l.HighestBidder, l.HighestBid
	l.HighestBidder = bidder
	l.HighestBid = amount
	return prevBidder, prevBid, nil
}

// HasBids reports whether at least one bid was ever accepted.
func (l *Listing) HasBids() bool {
	return l.HighestBidder != uuid.Nil
}

// Store maps item identifiers to at most one active Listing each.
// Mutated only by the engine while holding the engine lock.
type Store struct {
	listings map[int64]*Listing
}

func NewStore() *Store {
	return &Store{
		listings: make(map[int64]*Listing),
	}
}

// Put installs a freshly created listing. A deactivated listing for the
// same item is replaced; an active one rejects the insert.
func (s *Store) Put(l *Listing) error {
	if existing, ok := s.listings[l.ItemID]; ok && existing.Active {
		return fmt.Errorf("item %d: %w", l.ItemID, ErrAlreadyListed)
	}
	l.Active = true
	s.listings[l.ItemID] = l
	return nil
}

// Get returns the listing for an item, active or not.
func (s *Store) Get(itemID int64) (*Listing, bool) {
	l, ok := s.listings[itemID]
	return l, ok
}

// Active returns the active listing for an item.
func (s *Store) Active(itemID int64) (*Listing, error) {
	l, ok := s.listings[itemID]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	if !l.Active {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrNotActive)
	}
	return l, nil
}

// Deactivate retires a listing. The flag transitions true→false exactly
// once; a second call is an internal error.
func (s *Store) Deactivate(itemID int64) error {
	l, ok := s.listings[itemID]
	if !ok || !l.Active {
		return fmt.Errorf("item %d: %w", itemID, ErrNotActive)
	}
	l.Active = false
	return nil
}

// EscrowedValue sums the highest bids held in escrow across all active
// auctions. Fixed-price listings escrow no value until the sale commits.
func (s *Store) EscrowedValue() int64 {
	var total int64
	for _, l := range s.listings {
		if l.Active && l.Kind == KindAuction {
			total += l.HighestBid
		}
	}
	return total
}

// ActiveCount returns the number of active listings.
func (s *Store) ActiveCount() int {
	n := 0
	for _, l := range s.listings {
		if l.Active {
			n++
		}
	}
	return n
}

// Snapshot returns copies of all listings (for restore and queries).
func (s *Store) Snapshot() []Listing {
	out := make([]Listing, 0, len(s.listings))
	for _, l := range s.listings {
		out = append(out, *l)
	}
	return out
}

// RestoreListing seeds the store from persisted state on startup.
func (s *Store) RestoreListing(l Listing) {
	cp := l
	s.listings[l.ItemID] = &cp
}
