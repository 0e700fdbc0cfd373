package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/iou-backend/internal/api/httpx"
	"github.com/baharkarakas/iou-backend/internal/api/validate"
	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/services"
)

type EntryHandler struct {
	Txns *services.TransactionService
}

type createEntryReq struct {
	Payer          string      `json:"payer"`
	Recipient      string      `json:"recipient"`
	Amount         json.Number `json:"amount"`
	Description    string      `json:"description"`
	ConversationID string      `json:"conversation_id"`
}

func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntryReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if errs := validate.Collect(
		validate.Required("payer", req.Payer),
		validate.Required("recipient", req.Recipient),
		validate.Required("amount", req.Amount.String()),
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

	tx, err := h.Txns.Create(r.Context(), services.CreateInput{
		Payer:          req.Payer,
		Recipient:      req.Recipient,
		Amount:         amount,
		Description:    req.Description,
		ConversationID: req.ConversationID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, tx)
}

// List streams matching entries: user1/user2 select a pair or a single user,
// payer/recipient fix a direction, include_deleted adds inactive entries.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opt := services.ListOptions{
		Payer:     q.Get("payer"),
		Recipient: q.Get("recipient"),
		User1:     q.Get("user1"),
		User2:     q.Get("user2"),
	}
	if v := q.Get("include_deleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeErr(w, validate.Errs{{Field: "include_deleted", Msg: "must be a boolean"}})
			return
		}
		opt.IncludeInactive = b
	}

	out := make([]models.Transaction, 0)
	for tx, err := range h.Txns.List(r.Context(), opt) {
		if err != nil {
			writeErr(w, err)
			return
		}
		out = append(out, tx)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Txns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Txns.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}
