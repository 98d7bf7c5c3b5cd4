package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpaypro/ledger/internal/accounts"
	"github.com/schoolpaypro/ledger/internal/broadcast"
	"github.com/schoolpaypro/ledger/internal/config"
	"github.com/schoolpaypro/ledger/internal/ledger"
	"github.com/schoolpaypro/ledger/internal/model"
	"github.com/schoolpaypro/ledger/internal/persist"
	"github.com/schoolpaypro/ledger/internal/satellite"
	"github.com/schoolpaypro/ledger/internal/store/memory"
	"github.com/schoolpaypro/ledger/internal/yearclose"
)

type testServer struct {
	*httptest.Server
	ledger *ledger.Service
	token  string
}

func newServer(t *testing.T, secret string) testServer {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	hub := broadcast.NewHub()
	b := persist.New(s, hub)
	l, err := ledger.Open(ctx, ledger.Config{SchoolID: "s1", FiscalYear: "2025-2026", Bridge: b, Gate: yearclose.New(s)})
	require.NoError(t, err)
	require.NoError(t, l.Seed(ctx, accounts.DefaultChart("school")))
	sat, err := satellite.Open(ctx, l, b, nil)
	require.NoError(t, err)

	h := New(config.APIConfig{AllowedOrigins: []string{"*"}, JWTSecret: secret}, l, sat, hub)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	ts := testServer{Server: srv, ledger: l}
	if secret != "" {
		ts.token, err = GenerateToken(secret, "bursar", time.Minute)
		require.NoError(t, err)
	}
	return ts
}

func (ts testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (ts testServer) id(t *testing.T, code string) string {
	t.Helper()
	a, ok := ts.ledger.AccountByCode(code)
	require.True(t, ok)
	return a.ID
}

func TestHealth(t *testing.T) {
	ts := newServer(t, "")
	resp, body := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestAccounts_CreateChildAndDuplicate(t *testing.T) {
	ts := newServer(t, "")
	banks := ts.id(t, "1102")

	resp, body := ts.do(t, http.MethodPost, "/accounts", map[string]any{"name": "National Bank", "parentId": banks})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created model.Account
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "110201", created.Code)

	resp, _ = ts.do(t, http.MethodPost, "/accounts", map[string]any{"name": "Again", "code": "1102", "type": "asset", "parentId": ts.id(t, "11")})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/accounts", map[string]any{"name": "Lost", "parentId": "acc_missing"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/accounts/"+banks+"/next-code", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"code":"110202"}`, string(body))

	resp, body = ts.do(t, http.MethodGet, "/accounts?type=liability", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var liabilities []model.Account
	require.NoError(t, json.Unmarshal(body, &liabilities))
	assert.Len(t, liabilities, 4)
}

func TestAccounts_GetUpdateDelete(t *testing.T) {
	ts := newServer(t, "")
	inv := ts.id(t, "1104")

	resp, body := ts.do(t, http.MethodPatch, "/accounts/"+inv, map[string]any{"name": "Stock"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"name":"Stock"`)

	resp, _ = ts.do(t, http.MethodDelete, "/accounts/"+ts.id(t, "11"), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "has children")

	resp, _ = ts.do(t, http.MethodDelete, "/accounts/"+inv, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/accounts/"+inv, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostings(t *testing.T) {
	ts := newServer(t, "")
	cash := ts.id(t, "1103")

	resp, body := ts.do(t, http.MethodPost, "/postings", map[string]any{"postings": []map[string]any{
		{"accountId": cash, "amount": "100"},
		{"accountId": cash, "amount": "-40"},
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var touched []model.Account
	require.NoError(t, json.Unmarshal(body, &touched))
	require.Len(t, touched, 1)
	assert.Equal(t, "60.00", touched[0].Balance.StringFixed(2))

	resp, _ = ts.do(t, http.MethodPost, "/postings", map[string]any{"postings": []map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJournalFlow(t *testing.T) {
	ts := newServer(t, "")
	cash := ts.id(t, "1103")
	tuition := ts.id(t, "41")

	resp, body := ts.do(t, http.MethodPost, "/journal", map[string]any{
		"date":        "2025-09-03T00:00:00Z",
		"description": "tuition",
		"lines": []map[string]any{
			{"accountId": cash, "debit": "300", "credit": "0"},
			{"accountId": tuition, "debit": "0", "credit": "300"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var e model.JournalEntry
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "2025-09-001", e.ID)

	resp, _ = ts.do(t, http.MethodPost, "/journal/"+e.ID+"/status", map[string]any{"status": "approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/report", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep struct {
		Rows []struct {
			Code   string `json:"code"`
			Debit  string `json:"debit"`
			Source string `json:"source"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(body, &rep))
	for _, row := range rep.Rows {
		if row.Code == "1" {
			assert.Equal(t, "journal", row.Source)
			assert.Equal(t, "300", row.Debit)
		}
	}

	resp, _ = ts.do(t, http.MethodPost, "/journal/"+e.ID+"/status", map[string]any{"status": "DRAFT"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/journal/2025-01-999/status", map[string]any{"status": "APPROVED"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/journal?status=approved", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), e.ID)
}

func TestTreasuryAndSuppliers(t *testing.T) {
	ts := newServer(t, "")

	resp, body := ts.do(t, http.MethodPost, "/treasury", map[string]any{"kind": "bank", "name": "National Bank"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var rec model.TreasuryAccount
	require.NoError(t, json.Unmarshal(body, &rec))

	resp, body = ts.do(t, http.MethodGet, "/treasury", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"code":"110201"`)

	resp, _ = ts.do(t, http.MethodPost, "/treasury", map[string]any{"kind": "vault", "name": "X"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/treasury/"+rec.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, "/treasury/"+rec.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/suppliers", map[string]any{"name": "Books Ltd"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	resp, body = ts.do(t, http.MethodGet, "/suppliers", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"code":"210101"`)
}

func TestYearClose(t *testing.T) {
	ts := newServer(t, "s3cret")

	resp, body := ts.do(t, http.MethodPost, "/year-close", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"closedBy":"bursar"`)

	resp, _ = ts.do(t, http.MethodPost, "/postings", map[string]any{"postings": []map[string]any{
		{"accountId": ts.id(t, "1103"), "amount": "1"},
	}})
	assert.Equal(t, http.StatusLocked, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/year-close", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"isClosed":true`)

	resp, _ = ts.do(t, http.MethodPost, "/year-close/reopen", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPost, "/year-close/reopen", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAuthOnMutatingRoutes(t *testing.T) {
	ts := newServer(t, "s3cret")
	anon := ts
	anon.token = ""

	resp, _ := anon.do(t, http.MethodGet, "/accounts", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "reads are open")

	resp, _ = anon.do(t, http.MethodPost, "/suppliers", map[string]any{"name": "Books Ltd"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	anon.token = "garbage"
	resp, _ = anon.do(t, http.MethodPost, "/suppliers", map[string]any{"name": "Books Ltd"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/suppliers", map[string]any{"name": "Books Ltd"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestParseToken(t *testing.T) {
	tok, err := GenerateToken("k", "bursar", time.Minute)
	require.NoError(t, err)
	claims, err := ParseToken("k", tok)
	require.NoError(t, err)
	assert.Equal(t, "bursar", claims.Subject)

	_, err = ParseToken("other", tok)
	assert.Error(t, err)

	expired, err := GenerateToken("k", "bursar", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("k", expired)
	assert.Error(t, err)
}

func TestWSChanges(t *testing.T) {
	ts := newServer(t, "")
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/changes"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server a moment to subscribe before writing.
	time.Sleep(50 * time.Millisecond)
	resp, _ := ts.do(t, http.MethodPost, "/suppliers", map[string]any{"name": "Books Ltd"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e broadcast.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.NotEmpty(t, e.Key)
	assert.Positive(t, e.Version)
}
