package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewFixed(base)

	if !c.Now().Equal(base) {
		t.Fatalf("Now() = %v, want %v", c.Now(), base)
	}

	c.Advance(90 * time.Minute)
	if !c.Now().Equal(base.Add(90 * time.Minute)) {
		t.Fatalf("after advance: %v", c.Now())
	}

	later := base.Add(24 * time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Fatalf("after set: %v", c.Now())
	}
}

func TestSystemMovesForward(t *testing.T) {
	c := NewSystem()
	a := c.Now()
	b := c.Now()
	if b.Before(a) {
		t.Fatalf("system clock went backwards: %v then %v", a, b)
	}
}
