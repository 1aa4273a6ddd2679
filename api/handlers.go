package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"dealflow/deal"
	"dealflow/interaction"
	"dealflow/messaging"
	"dealflow/poller"
)

type dealResponse struct {
	DealID        string `json:"dealId"`
	SellerAddress string `json:"sellerAddress"`
	BuyerAddress  string `json:"buyerAddress"`
	Amount        string `json:"amount"`
	Token         string `json:"token"`
	Description   string `json:"description"`
	Deadline      int64  `json:"deadline"`
	Status        string `json:"status"`
	EscrowAddress string `json:"escrowAddress,omitempty"`
	ChannelID     string `json:"channelId"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

func toDealResponse(d deal.Deal) dealResponse {
	return dealResponse{
		DealID:        d.ID,
		SellerAddress: d.SellerAddress,
		BuyerAddress:  d.BuyerAddress,
		Amount:        d.Amount,
		Token:         d.Token,
		Description:   d.Description,
		Deadline:      d.Deadline,
		Status:        string(d.Status),
		EscrowAddress: d.EscrowAddress,
		ChannelID:     d.ChannelID,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     d.UpdatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "dealflow",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.chain.GetEscrowCount(r.Context())
	if err != nil {
		log.WithError(err).Warn("api: escrow count lookup failed")
		writeError(w, http.StatusBadGateway, "chain read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalDeals":     count,
		"factoryAddress": s.factory,
	})
}

func (s *Server) handleDeal(w http.ResponseWriter, r *http.Request) {
	d, err := s.deals.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, deal.ErrNotFound) {
			writeError(w, http.StatusNotFound, "deal not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deal": toDealResponse(d)})
}

func (s *Server) handleDealsByUser(w http.ResponseWriter, r *http.Request) {
	role := deal.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = deal.RoleBuyer
	}

	deals, err := s.deals.ListByUser(r.Context(), r.PathValue("address"), role)
	if err != nil {
		if errors.Is(err, deal.ErrInvalidRole) {
			writeError(w, http.StatusBadRequest, "role must be buyer or seller")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]dealResponse, 0, len(deals))
	for _, d := range deals {
		items = append(items, toDealResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deals": items, "count": len(items)})
}

type createDealRequest struct {
	SellerAddress   string `json:"sellerAddress"`
	BuyerAddress    string `json:"buyerAddress"`
	SellerUserID    string `json:"sellerUserId"`
	BuyerUserID     string `json:"buyerUserId"`
	Amount          string `json:"amount"`
	Token           string `json:"token"`
	Description     string `json:"description"`
	DeadlineSeconds int64  `json:"deadlineSeconds"`
	SpaceID         string `json:"spaceId"`
	ChannelID       string `json:"channelId"`
}

func (s *Server) handleCreateDeal(w http.ResponseWriter, r *http.Request) {
	var req createDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	d, err := s.deals.Create(r.Context(), deal.CreateParams{
		SellerAddress:   req.SellerAddress,
		BuyerAddress:    req.BuyerAddress,
		SellerUserID:    req.SellerUserID,
		BuyerUserID:     req.BuyerUserID,
		Amount:          req.Amount,
		Token:           req.Token,
		Description:     req.Description,
		DeadlineSeconds: req.DeadlineSeconds,
		SpaceID:         req.SpaceID,
		ChannelID:       req.ChannelID,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "deal": toDealResponse(d)})
}

type updateStatusRequest struct {
	Status        string `json:"status"`
	EscrowAddress string `json:"escrowAddress"`
}

// handleUpdateStatus applies an externally observed status change and reuses
// the poller's notification texts for the dispute and resolution transitions.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	status, ok := deal.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	unlock := s.locker.Lock(id)
	err := s.store.UpdateStatus(r.Context(), id, status, req.EscrowAddress)
	unlock()
	if err != nil {
		if errors.Is(err, deal.ErrNotFound) {
			writeError(w, http.StatusNotFound, "deal not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	d, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}

	switch status {
	case deal.StatusDisputed:
		s.notify(r.Context(), d.ChannelID, poller.DisputeNotice(d.ID, s.arbitrator))
	case deal.StatusResolved:
		winner := ""
		if d.EscrowAddress != "" {
			winner, err = s.chain.GetDisputeWinner(r.Context(), d.EscrowAddress)
			if err != nil {
				log.WithError(err).WithField("deal_id", d.ID).Warn("api: dispute winner lookup failed")
				winner = ""
			}
		}
		s.notify(r.Context(), d.ChannelID, poller.ResolutionNotice(d, winner))
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deal": toDealResponse(d)})
}

type requestTransactionRequest struct {
	DealID string `json:"dealId"`
	Action string `json:"action"`
	UserID string `json:"userId"`
}

func (s *Server) handleRequestTransaction(w http.ResponseWriter, r *http.Request) {
	var req requestTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	action, err := interaction.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := s.deals.GetByID(r.Context(), req.DealID)
	if err != nil {
		if errors.Is(err, deal.ErrNotFound) {
			writeError(w, http.StatusNotFound, "deal not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	interactionID, err := s.tx.RequestAction(r.Context(), d, action, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "interactionId": interactionID})
}

// handleInteractionResponse receives the gateway's asynchronous signing
// outcomes. Handling may block on a receipt wait, so it is detached from the
// request lifecycle.
func (s *Server) handleInteractionResponse(w http.ResponseWriter, r *http.Request) {
	var resp messaging.InteractionResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if resp.InteractionID == "" {
		writeError(w, http.StatusBadRequest, "interactionId required")
		return
	}

	go s.responses.HandleResponse(context.Background(), resp)
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

func (s *Server) notify(ctx context.Context, channelID, text string) {
	if err := s.notifier.SendMessage(ctx, channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Warn("api: notification delivery failed")
	}
}
