package broadcast

import (
	"MarketLedger/internal/event"
	"MarketLedger/internal/observability"
	"context"

	"github.com/rs/zerolog"
)

// Sink is one outbound destination for committed notifications.
type Sink interface {
	Publish(ctx context.Context, n event.Notification) error
}

// Fanout drains the engine's broadcast channel and hands each
// notification to every configured sink. The engine sends on this
// channel with NON-blocking semantics, so a slow sink here never stalls
// operations; failures are logged and counted, never retried. The
// notification log in Postgres is the source of truth for consumers
// that need completeness.
type Fanout struct {
	inputChan <-chan event.Notification
	sinks     map[string]Sink
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewFanout(
	inputChan <-chan event.Notification,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Fanout {
	return &Fanout{
		inputChan: inputChan,
		sinks:     make(map[string]Sink),
		metrics:   metrics,
		log:       log,
	}
}

// AddSink registers a named destination. Not safe to call after Run.
func (f *Fanout) AddSink(name string, s Sink) {
	f.sinks[name] = s
}

// Run dispatches notifications until the context is cancelled or the
// input channel closes.
func (f *Fanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n, ok := <-f.inputChan:
			if !ok {
				return nil
			}
			if f.metrics != nil {
				f.metrics.SetChannelSize("broadcast", len(f.inputChan))
			}

			for name, sink := range f.sinks {
				if err := sink.Publish(ctx, n); err != nil {
					f.log.Warn().
						Err(err).
						Str("sink", name).
						Int64("sequence", n.Sequence).
						Msg("outbound publish failed")
					if f.metrics != nil {
						f.metrics.PublishErrors.WithLabelValues(name).Inc()
					}
					continue
				}
				if f.metrics != nil {
					f.metrics.PublishOK.WithLabelValues(name).Inc()
				}
			}
		}
	}
}
