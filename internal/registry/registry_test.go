package registry

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestTransferFrom(t *testing.T) {
	r := NewInMemory()
	alice := uuid.New()
	bob := uuid.New()
	engine := uuid.New()

	if err := r.TransferFrom(alice, 1, alice, bob); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("unknown item: got %v, want ErrUnknownItem", err)
	}

	r.Register(1, alice)

	// The holder moves its own item directly.
	if err := r.TransferFrom(alice, 1, alice, bob); err != nil {
		t.Fatalf("holder transfer: %v", err)
	}
	if holder, _ := r.HolderOf(1); holder != bob {
		t.Fatalf("holder = %s, want %s", holder, bob)
	}

	// A third party needs an approval from the current holder.
	if err := r.TransferFrom(engine, 1, bob, engine); !errors.Is(err, ErrNotApproved) {
		t.Errorf("unapproved transfer: got %v, want ErrNotApproved", err)
	}
	if err := r.Approve(alice, 1, engine); !errors.Is(err, ErrNotHolder) {
		t.Errorf("approve by non-holder: got %v, want ErrNotHolder", err)
	}
	if err := r.Approve(bob, 1, engine); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !r.Approved(1, engine) {
		t.Fatal("approval not recorded")
	}
	if err := r.TransferFrom(engine, 1, bob, engine); err != nil {
		t.Fatalf("approved transfer: %v", err)
	}

	// Approval is consumed by the custody change.
	if r.Approved(1, engine) {
		t.Fatal("approval survived the transfer")
	}

	// from must match the actual holder.
	if err := r.TransferFrom(engine, 1, bob, alice); !errors.Is(err, ErrNotHolder) {
		t.Errorf("stale from: got %v, want ErrNotHolder", err)
	}
}
