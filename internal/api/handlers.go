package api

import (
	"MarketLedger/internal/listing"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type createListingRequest struct {
	Caller          string `json:"caller"`
	ItemID          int64  `json:"item_id"`
	Kind            string `json:"kind"`
	Price           int64  `json:"price"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
}

type buyRequest struct {
	Caller  string `json:"caller"`
	Payment int64  `json:"payment"`
}

type bidRequest struct {
	Caller string `json:"caller"`
	Amount int64  `json:"amount"`
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type listingResponse struct {
	ItemID        int64     `json:"item_id"`
	Seller        string    `json:"seller"`
	Kind          string    `json:"kind"`
	Price         int64     `json:"price"`
	EndTime       time.Time `json:"end_time,omitempty"`
	HighestBidder string    `json:"highest_bidder,omitempty"`
	HighestBid    int64     `json:"highest_bid,omitempty"`
	Active        bool      `json:"active"`
}

func toListingResponse(l listing.Listing) listingResponse {
	resp := listingResponse{
		ItemID:  l.ItemID,
		Seller:  l.Seller.String(),
		Kind:    l.Kind.String(),
		Price:   l.Price,
		EndTime: l.EndTime,
		Active:  l.Active,
	}
	if l.HighestBidder != uuid.Nil {
		resp.HighestBidder = l.HighestBidder.String()
		resp.HighestBid = l.HighestBid
	}
	return resp
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}

	var err error
	switch req.Kind {
	case "fixed_price":
		err = s.engine.ListForSale(caller, req.ItemID, req.Price)
	case "auction":
		err = s.engine.ListForAuction(caller, req.ItemID, req.Price,
			time.Duration(req.DurationSeconds)*time.Second)
	default:
		respondError(w, http.StatusBadRequest, "kind must be fixed_price or auction")
		return
	}
	if err != nil {
		respondEngineError(w, err)
		return
	}

	l, _ := s.engine.Listing(req.ItemID)
	respondJSON(w, http.StatusCreated, toListingResponse(l))
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	listings := s.engine.Listings()
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		if !l.Active {
			continue
		}
		out = append(out, toListingResponse(l))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}
	l, found := s.engine.Listing(itemID)
	if !found {
		respondError(w, http.StatusNotFound, "no listing for item")
		return
	}
	respondJSON(w, http.StatusOK, toListingResponse(l))
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}

	if err := s.engine.Buy(caller, itemID, req.Payment); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item_id": itemID,
		"buyer":   caller.String(),
		"payment": req.Payment,
	})
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}
	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}

	if err := s.engine.PlaceBid(caller, itemID, req.Amount); err != nil {
		respondEngineError(w, err)
		return
	}
	l, _ := s.engine.Listing(itemID)
	respondJSON(w, http.StatusCreated, toListingResponse(l))
}

func (s *Server) handleEndAuction(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}
	caller, ok := decodeCaller(w, r)
	if !ok {
		return
	}

	if err := s.engine.EndAuction(caller, itemID); err != nil {
		respondEngineError(w, err)
		return
	}
	l, _ := s.engine.Listing(itemID)
	respondJSON(w, http.StatusOK, toListingResponse(l))
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}
	caller, ok := decodeCaller(w, r)
	if !ok {
		return
	}

	if err := s.engine.CancelListing(caller, itemID); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item_id":   itemID,
		"cancelled": true,
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := decodeCaller(w, r)
	if !ok {
		return
	}

	amount, err := s.engine.Withdraw(r.Context(), caller)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"principal": caller.String(),
		"amount":    amount,
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	principal, err := uuid.Parse(mux.Vars(r)["principal"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid principal")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"principal": principal.String(),
		"balance":   s.engine.Balance(principal),
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := decodeCaller(w, r)
	if !ok {
		return
	}
	if err := s.engine.Pause(caller); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := decodeCaller(w, r)
	if !ok {
		return
	}
	if err := s.engine.Unpause(caller); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"paused":   s.engine.Paused(),
		"sequence": s.engine.Sequence(),
	})
}

// --- request helpers ---

func parseItemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	itemID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return itemID, true
}

func parseCaller(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	caller, err := uuid.Parse(raw)
	if err != nil || caller == uuid.Nil {
		respondError(w, http.StatusBadRequest, "caller must be a valid principal")
		return uuid.Nil, false
	}
	return caller, true
}

func decodeCaller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req callerRequest
	if err := decodeBody(w, r, &req); err != nil {
		return uuid.Nil, false
	}
	return parseCaller(w, req.Caller)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return err
	}
	return nil
}
