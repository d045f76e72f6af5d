package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// projector maintains the market.listings and market.balances projection
// tables collaborators use for point lookups. Projections are applied in
// the same transaction as the notification log write, guarded by a
// watermark so a replayed batch never double-applies a balance credit.
type projector struct{}

// loadWatermark locks and returns the projection watermark.
func (projector) loadWatermark(ctx context.Context, tx *sql.Tx) (int64, error) {
	var last int64
	err := tx.QueryRowContext(ctx,
		`SELECT last_sequence FROM market.projection_state FOR UPDATE`,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("load projection watermark: %w", err)
	}
	return last, nil
}

func (projector) saveWatermark(ctx context.Context, tx *sql.Tx, seq int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE market.projection_state SET last_sequence = $1`, seq)
	return err
}

// apply projects one notification row. Rows at or below the watermark
// must be filtered out by the caller.
func (p projector) apply(ctx context.Context, tx *sql.Tx, row NotificationRow) error {
	switch row.Type {
	case "Listed":
		_, err := tx.ExecContext(ctx, `
			INSERT INTO market.listings
				(item_id, seller, kind, price, end_time, highest_bidder, highest_bid, active, updated_seq)
			VALUES ($1, $2, $3, $4, $5, NULL, 0, TRUE, $6)
			ON CONFLICT (item_id) DO UPDATE SET
				seller = EXCLUDED.seller,
				kind = EXCLUDED.kind,
				price = EXCLUDED.price,
				end_time = EXCLUDED.end_time,
				highest_bidder = NULL,
				highest_bid = 0,
				active = TRUE,
				updated_seq = EXCLUDED.updated_seq`,
			row.ItemID, row.Principal, row.Kind, row.Amount, row.EndTime, row.Sequence,
		)
		if err != nil {
			return fmt.Errorf("project Listed seq %d: %w", row.Sequence, err)
		}

	case "Bid":
		_, err := tx.ExecContext(ctx, `
			UPDATE market.listings
			SET highest_bidder = $1, highest_bid = $2, updated_seq = $3
			WHERE item_id = $4`,
			row.Principal, row.Amount, row.Sequence, row.ItemID,
		)
		if err != nil {
			return fmt.Errorf("project Bid seq %d: %w", row.Sequence, err)
		}

	case "Sold", "AuctionEnded", "ListingCancelled":
		_, err := tx.ExecContext(ctx, `
			UPDATE market.listings
			SET active = FALSE, updated_seq = $1
			WHERE item_id = $2`,
			row.Sequence, row.ItemID,
		)
		if err != nil {
			return fmt.Errorf("project %s seq %d: %w", row.Type, row.Sequence, err)
		}
	}

	// Balance movements ride on every notification type that carries them.
	credits, err := DecodeCredits(row)
	if err != nil {
		return err
	}
	for _, c := range credits {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO market.balances (principal, balance)
			VALUES ($1, $2)
			ON CONFLICT (principal) DO UPDATE SET
				balance = market.balances.balance + EXCLUDED.balance`,
			c.Principal.String(), c.Amount,
		)
		if err != nil {
			return fmt.Errorf("project credit seq %d principal %s: %w", row.Sequence, c.Principal, err)
		}
	}

	return nil
}
