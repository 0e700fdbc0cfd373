// internal/api/handlers/auth.go
package handlers

import (
	"net/http"
	"time"

	"github.com/baharkarakas/iou-backend/internal/api/httpx"
	"github.com/baharkarakas/iou-backend/internal/auth"
	"github.com/baharkarakas/iou-backend/internal/middleware"
)

type AuthHandler struct {
	TM   *auth.TokenManager
	Auth *middleware.AuthMiddleware
}

func NewAuthHandler(tm *auth.TokenManager, am *middleware.AuthMiddleware) *AuthHandler {
	return &AuthHandler{TM: tm, Auth: am}
}

type tokenReq struct {
	// bot instance name; defaults to "bot"
	ClientID string `json:"client_id,omitempty"`
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // access süresi, saniye
}

// Token exchanges a valid X-Token for a JWT pair.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if !h.Auth.VerifyAPIToken(r.Header.Get("X-Token")) {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid api token", nil)
		return
	}
	var req tokenReq
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			badRequest(w, err)
			return
		}
	}
	if req.ClientID == "" {
		req.ClientID = "bot"
	}
	h.issue(w, req.ClientID)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "refresh_token required", nil)
		return
	}
	claims, err := h.TM.ParseRefresh(req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
		return
	}
	h.issue(w, claims.ClientID)
}

func (h *AuthHandler) issue(w http.ResponseWriter, clientID string) {
	access, refresh, exp, err := h.TM.GeneratePair(clientID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Truncate(time.Second).Seconds()),
	})
}
