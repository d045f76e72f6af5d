package broadcast

import (
	"MarketLedger/internal/event"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type recordingSink struct {
	received chan event.Notification
	fail     bool
}

func (s *recordingSink) Publish(ctx context.Context, n event.Notification) error {
	if s.fail {
		return fmt.Errorf("sink offline")
	}
	s.received <- n
	return nil
}

func TestFanoutDispatchesToAllSinks(t *testing.T) {
	input := make(chan event.Notification, 8)
	a := &recordingSink{received: make(chan event.Notification, 8)}
	b := &recordingSink{received: make(chan event.Notification, 8)}

	f := NewFanout(input, nil, zerolog.Nop())
	f.AddSink("a", a)
	f.AddSink("b", b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(ctx)
	}()

	n := event.Notification{ID: uuid.New(), Sequence: 3, Type: event.TypeBid, ItemID: 1}
	input <- n

	for _, sink := range []*recordingSink{a, b} {
		select {
		case got := <-sink.received:
			if got.Sequence != 3 || got.Type != event.TypeBid {
				t.Errorf("sink received %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("sink did not receive notification")
		}
	}

	close(input)
	<-done
}

func TestFanoutSurvivesFailingSink(t *testing.T) {
	input := make(chan event.Notification, 8)
	broken := &recordingSink{fail: true}
	healthy := &recordingSink{received: make(chan event.Notification, 8)}

	f := NewFanout(input, nil, zerolog.Nop())
	f.AddSink("broken", broken)
	f.AddSink("healthy", healthy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	input <- event.Notification{ID: uuid.New(), Sequence: 1, Type: event.TypeSold, ItemID: 2}

	select {
	case got := <-healthy.received:
		if got.Sequence != 1 {
			t.Errorf("healthy sink received %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("failing sink blocked the healthy one")
	}
}
