package persistence

import (
	"MarketLedger/internal/listing"
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// RestoredState is the engine state rebuilt from the projection tables
// on startup. LastSequence is the projection watermark; the engine
// resumes numbering from LastSequence + 1.
type RestoredState struct {
	Listings     []listing.Listing
	Balances     map[uuid.UUID]int64
	LastSequence int64
}

// LoadState reads the listings and balances projections plus the
// watermark. Projections are written in the same transaction as the
// notification log, so the three are mutually consistent.
func LoadState(ctx context.Context, db *sql.DB) (*RestoredState, error) {
	state := &RestoredState{
		Balances: make(map[uuid.UUID]int64),
	}

	err := db.QueryRowContext(ctx,
		`SELECT last_sequence FROM market.projection_state`,
	).Scan(&state.LastSequence)
	if err != nil {
		return nil, fmt.Errorf("load watermark: %w", err)
	}

	if err := loadListings(ctx, db, state); err != nil {
		return nil, err
	}
	if err := loadBalances(ctx, db, state); err != nil {
		return nil, err
	}

	return state, nil
}

func loadListings(ctx context.Context, db *sql.DB, state *RestoredState) error {
	rows, err := db.QueryContext(ctx, `
		SELECT item_id, seller, kind, price, end_time, highest_bidder, highest_bid, active
		FROM market.listings`)
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l          listing.Listing
			seller     string
			kind       string
			endTime    sql.NullTime
			highBidder sql.NullString
		)
		if err := rows.Scan(
			&l.ItemID, &seller, &kind, &l.Price, &endTime, &highBidder, &l.HighestBid, &l.Active,
		); err != nil {
			return fmt.Errorf("scan listing: %w", err)
		}

		l.Seller, err = parsePrincipal(seller)
		if err != nil {
			return fmt.Errorf("listing %d seller: %w", l.ItemID, err)
		}
		l.Kind, err = parseKind(kind)
		if err != nil {
			return fmt.Errorf("listing %d: %w", l.ItemID, err)
		}
		if endTime.Valid {
			l.EndTime = endTime.Time.UTC()
		}
		if highBidder.Valid && highBidder.String != "" {
			l.HighestBidder, err = parsePrincipal(highBidder.String)
			if err != nil {
				return fmt.Errorf("listing %d bidder: %w", l.ItemID, err)
			}
		}

		state.Listings = append(state.Listings, l)
	}
	return rows.Err()
}

func loadBalances(ctx context.Context, db *sql.DB, state *RestoredState) error {
	rows, err := db.QueryContext(ctx,
		`SELECT principal, balance FROM market.balances WHERE balance <> 0`)
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			principal string
			balance   int64
		)
		if err := rows.Scan(&principal, &balance); err != nil {
			return fmt.Errorf("scan balance: %w", err)
		}
		p, err := parsePrincipal(principal)
		if err != nil {
			return fmt.Errorf("balance principal: %w", err)
		}
		if balance < 0 {
			return fmt.Errorf("negative restored balance %d for %s", balance, p)
		}
		state.Balances[p] = balance
	}
	return rows.Err()
}

func parseKind(s string) (listing.Kind, error) {
	switch s {
	case "fixed_price":
		return listing.KindFixedPrice, nil
	case "auction":
		return listing.KindAuction, nil
	default:
		return 0, fmt.Errorf("unknown listing kind %q", s)
	}
}
