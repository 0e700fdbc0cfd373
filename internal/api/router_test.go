package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/iou-backend/internal/auth"
	"github.com/baharkarakas/iou-backend/internal/config"
	"github.com/baharkarakas/iou-backend/internal/directory"
	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/repository/memory"
	"github.com/baharkarakas/iou-backend/internal/services"
)

const apiToken = "bot-token"

type testServer struct {
	t *testing.T
	h http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hash, err := auth.HashToken(apiToken)
	require.NoError(t, err)

	store := memory.New()
	dir := directory.New(store, nil, time.Hour, nil)
	deps := services.Deps{Transactions: store, Users: dir}
	h := NewRouter(RouterDeps{
		Cfg:        config.Config{Env: "prod", APITokenHash: hash},
		Tokens:     auth.NewTokenManager("iou-test", "a", "r", time.Minute, time.Hour),
		Directory:  dir,
		TxnSvc:     services.NewTransactionService(deps),
		BalanceSvc: services.NewBalanceService(deps),
		SettleSvc:  services.NewSettlementService(deps),
	})
	return &testServer{t: t, h: h}
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Token", apiToken)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) users(names ...string) {
	for _, n := range names {
		rec := s.do(http.MethodPost, "/api/v1/users", map[string]string{"username": n})
		require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/api/v1/version", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/summary", nil, "X-Token", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenExchange(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/v1/auth/token", map[string]string{"client_id": "bot-7"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode[map[string]any](t, rec)
	access := tok["access_token"].(string)
	refresh := tok["refresh_token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	out := httptest.NewRecorder()
	s.h.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)

	rec = s.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsers(t *testing.T) {
	s := newTestServer(t)
	s.users("@alice")

	rec := s.do(http.MethodPost, "/api/v1/users", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/users", map[string]string{"username": "a b"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/v1/users/alice", map[string]string{"conversation_id": "chat-9"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chat-9", decode[models.User](t, rec).ConversationID)

	rec = s.do(http.MethodGet, "/api/v1/users/bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.User](t, rec), 1)
}

func TestLedgerFlow(t *testing.T) {
	s := newTestServer(t)
	s.users("alice", "bob", "carol")

	// alice bills bob 25, bob sends alice 15
	rec := s.do(http.MethodPost, "/api/v1/entries", map[string]any{"payer": "alice", "recipient": "bob", "amount": "25"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[models.Transaction](t, rec)

	rec = s.do(http.MethodPost, "/api/v1/entries", map[string]any{"payer": "bob", "recipient": "alice", "amount": 15})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/iou_status?user1=alice&user2=bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decode[models.PairBalance](t, rec)
	require.NotNil(t, bal.Owes)
	assert.Equal(t, "bob", *bal.Owes)
	assert.True(t, bal.Amount.Equal(decimal.NewFromInt(10)))

	rec = s.do(http.MethodGet, "/api/v1/entries?user1=bob&user2=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Transaction](t, rec), 2)

	rec = s.do(http.MethodPost, "/api/v1/settle?user1=alice&user2=bob", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	settled := decode[models.SettleResult](t, rec)
	require.NotNil(t, settled.Transaction)
	assert.Equal(t, "bob", settled.Transaction.Payer)

	rec = s.do(http.MethodPost, "/api/v1/settle?user1=alice&user2=bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[models.SettleResult](t, rec).Transaction)

	rec = s.do(http.MethodPost, "/api/v1/split", map[string]any{
		"payer": "carol", "amount": "10", "participants": []string{"bob", "alice"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	split := decode[models.SplitResult](t, rec)
	require.Len(t, split.Transactions, 2)
	assert.Equal(t, "alice", split.Transactions[0].Recipient)

	rec = s.do(http.MethodGet, "/api/v1/summary/top", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	top := decode[topResult](t, rec)
	require.NotNil(t, top.Creditor)
	assert.Equal(t, "carol", top.Creditor.Username)

	rec = s.do(http.MethodGet, "/api/v1/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.PairBalance](t, rec), 3)

	rec = s.do(http.MethodDelete, "/api/v1/entries/"+first.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.Transaction](t, rec).Active)

	rec = s.do(http.MethodDelete, "/api/v1/entries/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/entries?user1=alice&user2=bob&include_deleted=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Transaction](t, rec), 3)

	rec = s.do(http.MethodGet, "/api/v1/entries/"+first.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

type topResult struct {
	Creditor *models.Creditor `json:"creditor"`
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t)
	s.users("alice", "bob")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"self entry", http.MethodPost, "/api/v1/entries", map[string]any{"payer": "alice", "recipient": "alice", "amount": "1"}, 400, "validation_error"},
		{"zero", http.MethodPost, "/api/v1/entries", map[string]any{"payer": "alice", "recipient": "bob", "amount": "0"}, 400, "validation_error"},
		{"negative", http.MethodPost, "/api/v1/entries", map[string]any{"payer": "alice", "recipient": "bob", "amount": -5}, 400, "validation_error"},
		{"missing amount", http.MethodPost, "/api/v1/entries", map[string]any{"payer": "alice", "recipient": "bob"}, 400, "validation_error"},
		{"unknown field", http.MethodPost, "/api/v1/entries", map[string]any{"payr": "alice"}, 400, "bad_request"},
		{"unknown user", http.MethodPost, "/api/v1/entries", map[string]any{"payer": "alice", "recipient": "zed", "amount": "1"}, 404, "not_found"},
		{"status missing user2", http.MethodGet, "/api/v1/iou_status?user1=alice", nil, 400, "validation_error"},
		{"split with payer", http.MethodPost, "/api/v1/split", map[string]any{"payer": "alice", "amount": "5", "participants": []string{"alice"}}, 400, "validation_error"},
		{"split no participants", http.MethodPost, "/api/v1/split", map[string]any{"payer": "alice", "amount": "5"}, 400, "validation_error"},
		{"bad include_deleted", http.MethodGet, "/api/v1/entries?include_deleted=maybe", nil, 400, "validation_error"},
		{"unknown entry", http.MethodGet, "/api/v1/entries/nope", nil, 404, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[map[string]any](t, rec)["code"])
		})
	}
}

func TestIdempotentCreate(t *testing.T) {
	s := newTestServer(t)
	s.users("alice", "bob")
	body := map[string]any{"payer": "alice", "recipient": "bob", "amount": "3.50"}

	a := decode[models.Transaction](t, s.do(http.MethodPost, "/api/v1/entries", body, "Idempotency-Key", "k1"))
	b := decode[models.Transaction](t, s.do(http.MethodPost, "/api/v1/entries", body, "Idempotency-Key", "k1"))
	assert.Equal(t, a.ID, b.ID)
}

func TestCreateRejectsExtremeExponentQuickly(t *testing.T) {
	s := newTestServer(t)
	s.users("alice", "bob")

	for _, amount := range []string{"1e-20000000", "1e20000000"} {
		body := map[string]any{"payer": "alice", "recipient": "bob", "amount": json.RawMessage(amount)}
		start := time.Now()
		rec := s.do(http.MethodPost, "/api/v1/entries", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, amount)
		assert.Less(t, time.Since(start), time.Second, amount)
	}
}
