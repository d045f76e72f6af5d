package listing

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRecordBid(t *testing.T) {
	seller := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	l := &Listing{Seller: seller, ItemID: 1, Price: 50, Kind: KindAuction, Active: true}

	if _, _, err := l.RecordBid(alice, 49); !errors.Is(err, ErrBidTooLow) {
		t.Errorf("below opening price: got %v, want ErrBidTooLow", err)
	}

	prevBidder, prevBid, err := l.RecordBid(alice, 50)
	if err != nil {
		t.Fatalf("opening bid: %v", err)
	}
	if prevBidder != uuid.Nil || prevBid != 0 {
		t.Errorf("first bid prev = (%s, %d), want (nil, 0)", prevBidder, prevBid)
	}

	if _, _, err := l.RecordBid(bob, 50); !errors.Is(err, ErrBidTooLow) {
		t.Errorf("equal bid: got %v, want ErrBidTooLow", err)
	}

	prevBidder, prevBid, err = l.RecordBid(bob, 60)
	if err != nil {
		t.Fatalf("higher bid: %v", err)
	}
	if prevBidder != alice || prevBid != 50 {
		t.Errorf("second bid prev = (%s, %d), want (%s, 50)", prevBidder, prevBid, alice)
	}
	if l.HighestBidder != bob || l.HighestBid != 60 {
		t.Errorf("highest = (%s, %d), want (%s, 60)", l.HighestBidder, l.HighestBid, bob)
	}
	if !l.HasBids() {
		t.Error("HasBids() = false after accepted bids")
	}
}

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	seller := uuid.New()

	if _, err := s.Active(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown item: got %v, want ErrNotFound", err)
	}

	if err := s.Put(&Listing{Seller: seller, ItemID: 1, Price: 100, Kind: KindFixedPrice}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(&Listing{Seller: seller, ItemID: 1, Price: 200, Kind: KindFixedPrice}); !errors.Is(err, ErrAlreadyListed) {
		t.Errorf("duplicate put: got %v, want ErrAlreadyListed", err)
	}

	l, err := s.Active(1)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if !l.Active || l.Price != 100 {
		t.Errorf("active listing = %+v", l)
	}

	if err := s.Deactivate(1); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := s.Deactivate(1); !errors.Is(err, ErrNotActive) {
		t.Errorf("double deactivate: got %v, want ErrNotActive", err)
	}
	if _, err := s.Active(1); !errors.Is(err, ErrNotActive) {
		t.Errorf("active after deactivate: got %v, want ErrNotActive", err)
	}

	// A retired listing can be replaced by a fresh one.
	if err := s.Put(&Listing{Seller: seller, ItemID: 1, Price: 150, Kind: KindAuction, EndTime: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("replace retired listing: %v", err)
	}
	l, err = s.Active(1)
	if err != nil {
		t.Fatalf("active after replace: %v", err)
	}
	if l.Price != 150 || l.Kind != KindAuction {
		t.Errorf("replaced listing = %+v", l)
	}
}

func TestEscrowedValue(t *testing.T) {
	s := NewStore()
	seller := uuid.New()

	fixed := &Listing{Seller: seller, ItemID: 1, Price: 100, Kind: KindFixedPrice}
	auction := &Listing{Seller: seller, ItemID: 2, Price: 50, Kind: KindAuction, EndTime: time.Now().Add(time.Hour)}
	if err := s.Put(fixed); err != nil {
		t.Fatalf("put fixed: %v", err)
	}
	if err := s.Put(auction); err != nil {
		t.Fatalf("put auction: %v", err)
	}

	// Fixed-price listings escrow no value; auctions escrow the
	// highest bid only once one exists.
	if got := s.EscrowedValue(); got != 0 {
		t.Errorf("escrow with no bids = %d, want 0", got)
	}

	if _, _, err := auction.RecordBid(uuid.New(), 70); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if got := s.EscrowedValue(); got != 70 {
		t.Errorf("escrow with bid = %d, want 70", got)
	}

	if err := s.Deactivate(2); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if got := s.EscrowedValue(); got != 0 {
		t.Errorf("escrow after settle = %d, want 0", got)
	}
}

func TestKindString(t *testing.T) {
	if KindFixedPrice.String() != "fixed_price" || KindAuction.String() != "auction" {
		t.Errorf("kind strings = %q, %q", KindFixedPrice, KindAuction)
	}
}
