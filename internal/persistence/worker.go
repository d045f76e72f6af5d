package persistence

import (
	"MarketLedger/internal/event"
	"MarketLedger/internal/observability"
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
)

// Worker drains the persist channel and batch-writes the notification
// log plus projections to Postgres. The engine sends on the persist
// channel with BLOCKING semantics, so if this worker falls behind the
// engine stalls; no notification is ever lost.
type Worker struct {
	writer       *NotificationWriter
	proj         projector
	inputChan    <-chan event.Notification
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan event.Notification,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       NewNotificationWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Run starts the worker loop. It batches incoming notifications and
// flushes either when the batch is full or the flush timeout expires.
// Blocks until ctx is cancelled or the input channel closes.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]NotificationRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case n, ok := <-w.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, RowFromNotification(n))

			if len(batch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					w.log.Error().Err(err).Msg("batch flush failed after retries")
				}
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					w.log.Error().Err(err).Msg("timeout flush failed after retries")
				}
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never
// drops notifications: it retries until the write succeeds or the
// context is cancelled, at which point it attempts one final flush.
func (w *Worker) flushWithRetry(ctx context.Context, rows []NotificationRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("rows", len(rows)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				return w.flush(context.Background(), rows)
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, rows)
		if err == nil {
			if attempt > 0 {
				w.log.Info().Int("attempts", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

// flush writes the notification rows and their projections in a single
// transaction, guarded by the projection watermark.
func (w *Worker) flush(ctx context.Context, rows []NotificationRow) error {
	start := time.Now()

	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteBatch(ctx, tx, rows); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_rows").Inc()
		}
		return err
	}

	watermark, err := w.proj.loadWatermark(ctx, tx)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("watermark").Inc()
		}
		return err
	}

	projected := watermark
	for _, row := range rows {
		if row.Sequence <= watermark {
			continue // already projected by an earlier flush
		}
		if err := w.proj.apply(ctx, tx, row); err != nil {
			if w.metrics != nil {
				w.metrics.PersistErrors.WithLabelValues("project").Inc()
			}
			return err
		}
		if row.Sequence > projected {
			projected = row.Sequence
		}
	}

	if projected > watermark {
		if err := w.proj.saveWatermark(ctx, tx, projected); err != nil {
			if w.metrics != nil {
				w.metrics.PersistErrors.WithLabelValues("watermark").Inc()
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(rows)))
		w.metrics.PersistRowsWritten.Add(float64(len(rows)))
		w.metrics.PersistLastSeq.Set(float64(rows[len(rows)-1].Sequence))
	}

	return nil
}
