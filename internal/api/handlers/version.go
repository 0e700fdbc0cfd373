package handlers

import (
	"net/http"

	"github.com/baharkarakas/iou-backend/internal/api/httpx"
)

// Version is overridden at build time with -ldflags "-X ...handlers.Version=".
var Version = "dev"

func VersionInfo(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"version": Version})
}
