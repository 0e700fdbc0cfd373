package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/baharkarakas/iou-backend/internal/api/httpx"
	"github.com/baharkarakas/iou-backend/internal/api/validate"
	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/services"
)

type BalanceHandler struct {
	Balance *services.BalanceService
	Settle  *services.SettlementService
}

func pairParams(r *http.Request) (string, string, validate.Errs) {
	q := r.URL.Query()
	u1, u2 := q.Get("user1"), q.Get("user2")
	return u1, u2, validate.Collect(validate.Required("user1", u1), validate.Required("user2", u2))
}

func (h *BalanceHandler) Status(w http.ResponseWriter, r *http.Request) {
	u1, u2, errs := pairParams(r)
	if len(errs) > 0 {
		writeErr(w, errs)
		return
	}
	bal, err := h.Balance.Pairwise(r.Context(), u1, u2)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bal)
}

func (h *BalanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Balance.Summary(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sum)
}

type topResp struct {
	Creditor *models.Creditor `json:"creditor"`
}

func (h *BalanceHandler) Top(w http.ResponseWriter, r *http.Request) {
	c, ok, err := h.Balance.MaxOwed(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := topResp{}
	if ok {
		resp.Creditor = &c
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *BalanceHandler) SettleUp(w http.ResponseWriter, r *http.Request) {
	u1, u2, errs := pairParams(r)
	if len(errs) > 0 {
		writeErr(w, errs)
		return
	}
	res, err := h.Settle.Settle(r.Context(), u1, u2, r.URL.Query().Get("conversation_id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	status := http.StatusCreated
	if res.Transaction == nil {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, res)
}

type splitReq struct {
	Payer          string      `json:"payer"`
	Amount         json.Number `json:"amount"`
	Participants   []string    `json:"participants"`
	Description    string      `json:"description"`
	ConversationID string      `json:"conversation_id"`
}

func (h *BalanceHandler) Split(w http.ResponseWriter, r *http.Request) {
	var req splitReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if errs := validate.Collect(
		validate.Required("payer", req.Payer),
		validate.Required("amount", req.Amount.String()),
		validate.NonEmpty("participants", req.Participants),
		validate.MaxLen("description", req.Description, 500),
	); len(errs) > 0 {
		writeErr(w, errs)
		return
	}
	amount, err := services.ParseAmount(req.Amount.String())
	if err != nil {
		writeErr(w, err)
		return
	}
	res, err := h.Settle.Split(r.Context(), services.SplitInput{
		Payer:          req.Payer,
		Amount:         amount,
		Participants:   req.Participants,
		Description:    req.Description,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}
