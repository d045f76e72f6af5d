package persistence

import (
	"MarketLedger/internal/event"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotificationRow is a row in market.notifications. The log is
// append-only; sequence is the primary key and writes are idempotent.
type NotificationRow struct {
	Sequence  int64
	ID        string
	Type      string
	ItemID    int64
	Principal string
	Amount    int64
	Kind      string
	EndTime   *time.Time
	Credits   []byte // JSON-encoded []event.Credit
	Timestamp time.Time
}

// RowFromNotification converts an engine notification for storage.
func RowFromNotification(n event.Notification) NotificationRow {
	row := NotificationRow{
		Sequence:  n.Sequence,
		ID:        n.ID.String(),
		Type:      n.Type.String(),
		ItemID:    n.ItemID,
		Principal: n.Principal.String(),
		Amount:    n.Amount,
		Kind:      n.Kind,
		Timestamp: n.Timestamp,
	}
	if !n.EndTime.IsZero() {
		t := n.EndTime
		row.EndTime = &t
	}
	if len(n.Credits) > 0 {
		data, err := json.Marshal(n.Credits)
		if err == nil {
			row.Credits = data
		}
	}
	return row
}

// NotificationWriter writes notification rows to Postgres using
// multi-row INSERT within a caller-provided transaction.
type NotificationWriter struct {
	db *sql.DB
}

func NewNotificationWriter(db *sql.DB) *NotificationWriter {
	return &NotificationWriter{db: db}
}

func (w *NotificationWriter) DB() *sql.DB {
	return w.db
}

// WriteBatch inserts a batch of notification rows. Conflicting sequences
// are skipped, making replays harmless.
func (w *NotificationWriter) WriteBatch(ctx context.Context, tx *sql.Tx, rows []NotificationRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO market.notifications
		(sequence, id, type, item_id, principal, amount, kind, end_time, credits, timestamp)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*10)

	for i, r := range rows {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			r.Sequence, r.ID, r.Type, r.ItemID, r.Principal,
			r.Amount, r.Kind, r.EndTime, r.Credits, r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// DecodeCredits unmarshals the stored credit movements of a row.
func DecodeCredits(row NotificationRow) ([]event.Credit, error) {
	if len(row.Credits) == 0 {
		return nil, nil
	}
	var credits []event.Credit
	if err := json.Unmarshal(row.Credits, &credits); err != nil {
		return nil, fmt.Errorf("decode credits for seq %d: %w", row.Sequence, err)
	}
	return credits, nil
}

// parsePrincipal converts a stored principal column back to a UUID.
func parsePrincipal(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
