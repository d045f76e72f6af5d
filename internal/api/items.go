package api

import (
	"errors"
	"net/http"

	"MarketLedger/internal/registry"
)

// The item endpoints exist for the in-process registry only. Deploys
// backed by an external registry disable them by constructing the
// server with a nil registry.

type registerItemRequest struct {
	Caller string `json:"caller"`
	ItemID int64  `json:"item_id"`
}

func (s *Server) handleRegisterItem(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		respondError(w, http.StatusNotFound, "item registry is external")
		return
	}

	var req registerItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}
	if req.ItemID <= 0 {
		respondError(w, http.StatusBadRequest, "item_id must be positive")
		return
	}
	if _, exists := s.registry.HolderOf(req.ItemID); exists {
		respondError(w, http.StatusConflict, "item already registered")
		return
	}

	s.registry.Register(req.ItemID, caller)
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"item_id": req.ItemID,
		"holder":  caller.String(),
	})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		respondError(w, http.StatusNotFound, "item registry is external")
		return
	}

	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}
	holder, exists := s.registry.HolderOf(itemID)
	if !exists {
		respondError(w, http.StatusNotFound, "unknown item")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item_id": itemID,
		"holder":  holder.String(),
	})
}

// handleApproveItem pre-authorizes the engine to take custody, the step
// a holder performs before listing.
func (s *Server) handleApproveItem(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		respondError(w, http.StatusNotFound, "item registry is external")
		return
	}

	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}
	caller, ok := decodeCaller(w, r)
	if !ok {
		return
	}

	if err := s.registry.Approve(caller, itemID, s.engine.Self()); err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownItem):
			respondError(w, http.StatusNotFound, "unknown item")
		case errors.Is(err, registry.ErrNotHolder):
			respondError(w, http.StatusForbidden, "caller does not hold the item")
		default:
			respondError(w, http.StatusInternalServerError, "approve failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item_id":  itemID,
		"approved": s.engine.Self().String(),
	})
}
