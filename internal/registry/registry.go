package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrUnknownItem = errors.New("unknown item")
	ErrNotHolder   = errors.New("from principal does not hold item")
	ErrNotApproved = errors.New("caller not approved to move item")
)

// Registry is the external item registry the engine takes and returns
// custody through. A transfer only succeeds if the caller currently holds
// the item or has been approved by the holder to move it.
type Registry interface {
	// HolderOf returns the current custodian of an item.
	HolderOf(itemID int64) (uuid.UUID, bool)

	// Approved reports whether operator may move the item on the
	// current holder's behalf.
	Approved(itemID int64, operator uuid.UUID) bool

	// TransferFrom moves custody of itemID from from to to. caller must
	// be from itself or an approved operator. Approval is consumed by
	// the transfer.
	TransferFrom(caller uuid.UUID, itemID int64, from, to uuid.UUID) error
}

// InMemory is a Registry backed by in-process maps. Production deploys
// would place an RPC client behind the Registry interface instead.
type InMemory struct {
	mu        sync.Mutex
	holders   map[int64]uuid.UUID
	approvals map[int64]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		holders:   make(map[int64]uuid.UUID),
		approvals: make(map[int64]uuid.UUID),
	}
}

// Register records holder as the custodian of a new item.
func (r *InMemory) Register(itemID int64, holder uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holders[itemID] = holder
}

// Approve lets the current holder authorize operator to move the item.
// Only one operator approval is held per item; a new approval replaces it.
func (r *InMemory) Approve(caller uuid.UUID, itemID int64, operator uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	holder, ok := r.holders[itemID]
	if !ok {
		return fmt.Errorf("approve item %d: %w", itemID, ErrUnknownItem)
	}
	if holder != caller {
		return fmt.Errorf("approve item %d: %w", itemID, ErrNotHolder)
	}
	r.approvals[itemID] = operator
	return nil
}

func (r *InMemory) HolderOf(itemID int64) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	holder, ok := r.holders[itemID]
	return holder, ok
}

func (r *InMemory) Approved(itemID int64, operator uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.approvals[itemID] == operator
}

func (r *InMemory) TransferFrom(caller uuid.UUID, itemID int64, from, to uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	holder, ok := r.holders[itemID]
	if !ok {
		return fmt.Errorf("transfer item %d: %w", itemID, ErrUnknownItem)
	}
	if holder != from {
		return fmt.Errorf("transfer item %d: %w", itemID, ErrNotHolder)
	}
	if caller != from && r.approvals[itemID] != caller {
		return fmt.Errorf("transfer item %d: %w", itemID, ErrNotApproved)
	}

	r.holders[itemID] = to
	delete(r.approvals, itemID) // approval does not survive a custody change
	return nil
}
