package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminator for marketplace notifications
type Type int32

const (
	TypeUnknown Type = iota
	TypeListed
	TypeBid
	TypeSold
	TypeAuctionEnded
	TypeListingCancelled
	TypeWithdrawalMade
	TypePaused
	TypeUnpaused
)

func (t Type) String() string {
	switch t {
	case TypeListed:
		return "Listed"
	case TypeBid:
		return "Bid"
	case TypeSold:
		return "Sold"
	case TypeAuctionEnded:
		return "AuctionEnded"
	case TypeListingCancelled:
		return "ListingCancelled"
	case TypeWithdrawalMade:
		return "WithdrawalMade"
	case TypePaused:
		return "Paused"
	case TypeUnpaused:
		return "Unpaused"
	default:
		return "Unknown"
	}
}

// Credit records one withdrawal-ledger movement caused by an operation.
// Amount is negative when a balance was drained (withdraw).
type Credit struct {
	Principal uuid.UUID `json:"principal"`
	Amount    int64     `json:"amount"`
}

// Notification is the append-only record emitted after every committed
// engine operation. Sequence is the global monotonic number assigned by
// the engine; downstream consumers (persistence, indexers, UI) rely on it
// for ordering and dedup.
type Notification struct {
	// Unique record ID
	ID uuid.UUID `json:"id"`

	// Global monotonic sequence assigned by the engine
	Sequence int64 `json:"sequence"`

	// Notification type discriminator
	Type Type `json:"type"`

	// Item context (zero for gate and withdrawal notifications)
	ItemID int64 `json:"item_id,omitempty"`

	// Acting or affected principal: seller on Listed/ListingCancelled,
	// bidder on Bid, buyer on Sold, winner on AuctionEnded,
	// withdrawer on WithdrawalMade, operator on Paused/Unpaused.
	Principal uuid.UUID `json:"principal"`

	// Price, bid value or withdrawn amount as applicable
	Amount int64 `json:"amount,omitempty"`

	// Listing kind for Listed notifications ("fixed_price" / "auction")
	Kind string `json:"kind,omitempty"`

	// Auction close time for Listed notifications
	EndTime time.Time `json:"end_time,omitempty"`

	// Withdrawal-ledger movements committed by the operation, in order.
	// The balances projection is maintained from these.
	Credits []Credit `json:"credits,omitempty"`

	// Engine clock time at commit
	Timestamp time.Time `json:"timestamp"`
}
