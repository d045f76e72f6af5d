package market

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestGateLifecycle(t *testing.T) {
	operator := uuid.New()
	stranger := uuid.New()
	g := NewGate(operator)

	if g.Paused() {
		t.Fatal("new gate is paused")
	}
	if err := g.Check(); err != nil {
		t.Fatalf("check on open gate: %v", err)
	}

	if err := g.pause(stranger); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("stranger pause: got %v, want ErrNotOperator", err)
	}
	if err := g.pause(operator); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := g.Check(); !errors.Is(err, ErrPaused) {
		t.Fatalf("check on paused gate: got %v, want ErrPaused", err)
	}
	if err := g.pause(operator); !errors.Is(err, ErrGateUnchanged) {
		t.Fatalf("double pause: got %v, want ErrGateUnchanged", err)
	}

	if err := g.unpause(stranger); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("stranger unpause: got %v, want ErrNotOperator", err)
	}
	if err := g.unpause(operator); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := g.unpause(operator); !errors.Is(err, ErrGateUnchanged) {
		t.Fatalf("double unpause: got %v, want ErrGateUnchanged", err)
	}
}
