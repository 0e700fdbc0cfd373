package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/iou-backend/internal/api/httpx"
	"github.com/baharkarakas/iou-backend/internal/api/validate"
	"github.com/baharkarakas/iou-backend/internal/directory"
	"github.com/baharkarakas/iou-backend/internal/models"
)

type UserHandler struct {
	Dir *directory.Directory
}

type createUserReq struct {
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	ConversationID string `json:"conversation_id"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if errs := validate.Collect(
		validate.Required("username", req.Username),
		validate.MaxLen("username", req.Username, 64),
	); len(errs) > 0 {
		writeErr(w, errs)
		return
	}
	u, err := h.Dir.Register(r.Context(), models.User{
		Username:       req.Username,
		DisplayName:    req.DisplayName,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Dir.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.Dir.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

type updateUserReq struct {
	ConversationID string `json:"conversation_id"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateUserReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if errs := validate.Collect(validate.Required("conversation_id", req.ConversationID)); len(errs) > 0 {
		writeErr(w, errs)
		return
	}
	u, err := h.Dir.UpdateConversation(r.Context(), chi.URLParam(r, "username"), req.ConversationID)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}
