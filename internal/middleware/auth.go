// internal/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/baharkarakas/iou-backend/internal/api/httpx"
	"github.com/baharkarakas/iou-backend/internal/auth"
)

type ctxKey string

const ctxClientKey ctxKey = "client"

// Client is the authenticated API caller.
type Client struct {
	ID     string
	Method string // "token" | "jwt" | "dev"
}

func ClientFrom(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(ctxClientKey).(Client)
	return c, ok
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, ctxClientKey, c)
}

type AuthMiddleware struct {
	TM        *auth.TokenManager
	TokenHash string
	AppEnv    string

	// bcrypt is slow; remember the token that last matched
	mu       sync.RWMutex
	verified string
}

func NewAuthMiddleware(tm *auth.TokenManager, tokenHash, appEnv string) *AuthMiddleware {
	return &AuthMiddleware{TM: tm, TokenHash: tokenHash, AppEnv: appEnv}
}

// VerifyAPIToken checks an X-Token value against the configured hash.
// With no hash configured, dev accepts anything.
func (m *AuthMiddleware) VerifyAPIToken(token string) bool {
	if m.TokenHash == "" {
		return m.AppEnv == "dev"
	}
	m.mu.RLock()
	hit := token != "" && token == m.verified
	m.mu.RUnlock()
	if hit {
		return true
	}
	if !auth.VerifyToken(token, m.TokenHash) {
		return false
	}
	m.mu.Lock()
	m.verified = token
	m.mu.Unlock()
	return true
}

// X-Token: <api token> | Authorization: Bearer <JWT(access)>
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := r.Header.Get("X-Token"); tok != "" {
			if !m.VerifyAPIToken(tok) {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid api token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), Client{ID: "bot", Method: "token"})))
			return
		}

		ah := r.Header.Get("Authorization")
		if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
			if m.AppEnv == "dev" && m.TokenHash == "" {
				next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), Client{ID: "dev", Method: "dev"})))
				return
			}
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing credentials", nil)
			return
		}
		claims, err := m.TM.ParseAccess(strings.TrimSpace(ah[len("Bearer "):]))
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid access token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), Client{ID: claims.ClientID, Method: "jwt"})))
	})
}
