package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/printstore"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `{
	"users": [{"username": "agent", "password": "secret", "options": {"read": true, "write": true}}],
	"catalog": [
		{"user": "agent", "type": "goods", "key": "G1", "data": {"guid": "G1", "description": "Tea"}},
		{"user": "agent", "type": "goods", "key": "G2", "data": {"guid": "G2", "description": "Coffee"}},
		{"user": "agent", "type": "goods", "key": "G3", "data": {"guid": "G3", "description": "Sugar"}},
		{"user": "agent", "type": "clients", "key": "C1", "data": {"guid": "C1", "description": "Corner shop"}},
		{"user": "agent", "type": "debts", "key": "D1", "data": {"client_guid": "C1", "doc_type": "invoice", "doc_guid": "INV1", "sum": 12.5, "has_content": true}}
	],
	"contents": [{"user": "agent", "doc_type": "invoice", "doc_guid": "INV1", "content": "<p>invoice</p>"}]
}`

type testServer struct {
	srv    *httptest.Server
	prints *printstore.MemoryStore
	rm     *repomanager.MemoryRepositoryManager
}

func newTestServer(t *testing.T, pageSize int) *testServer {
	t.Helper()
	return newSeededServer(t, pageSize, seed)
}

func newSeededServer(t *testing.T, pageSize int, seed string) *testServer {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PageSize = pageSize

	ts := &testServer{prints: printstore.NewMemoryStore(), rm: repomanager.NewMemoryRepositoryManager()}
	svc := services.NewService(nil, ts.rm, ts.prints, cfg, logging.Discard())
	require.NoError(t, svc.LoadSeed(context.Background(), strings.NewReader(seed)))

	ts.srv = httptest.NewServer(NewRouter(svc, logging.Discard()))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, user, password string, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	if user != "" {
		req.SetBasicAuth(user, password)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (ts *testServer) token(t *testing.T) string {
	t.Helper()
	code, body := ts.do(t, http.MethodGet, "/check/agent", "agent", "secret", "")
	require.Equal(t, http.StatusOK, code)
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 10)
	code, body := ts.do(t, http.MethodGet, "/health", "", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestBasicAuth(t *testing.T) {
	ts := newTestServer(t, 10)

	tests := []struct {
		name, user, password string
		want                 int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong password", "agent", "nope", http.StatusUnauthorized},
		{"unknown user", "ghost", "secret", http.StatusUnauthorized},
		{"valid", "agent", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := ts.do(t, http.MethodGet, "/check/agent", tt.user, tt.password, "")
			assert.Equal(t, tt.want, code)
		})
	}

	code, _ := ts.do(t, http.MethodGet, "/check/someone-else", "agent", "secret", "")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestPull(t *testing.T) {
	ts := newTestServer(t, 2)
	tok := ts.token(t)

	code, body := ts.do(t, http.MethodGet, "/get/goods/"+tok, "agent", "secret", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 2)
	more, ok := body["more"].(float64)
	require.True(t, ok)

	code, body = ts.do(t, http.MethodGet, fmt.Sprintf("/get/goods/%s-more%d", tok, int64(more)), "agent", "secret", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 1)
	assert.NotContains(t, body, "more")

	code, _ = ts.do(t, http.MethodGet, "/get/goods/not-a-token", "agent", "secret", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestContent(t *testing.T) {
	ts := newTestServer(t, 10)
	tok := ts.token(t)

	code, body := ts.do(t, http.MethodGet, "/document/invoice/INV1/"+tok, "agent", "secret", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "<p>invoice</p>", body["content"])

	code, _ = ts.do(t, http.MethodGet, "/document/invoice/INV2/"+tok, "agent", "secret", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPostConfirmPrint(t *testing.T) {
	ts := newTestServer(t, 10)
	tok := ts.token(t)

	code, body := ts.do(t, http.MethodPost, "/post/"+tok, "agent", "secret",
		`{"type":"order","guid":"O1","client_guid":"C1","items":[{"goods_guid":"G1","quantity":2}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.ResultOK, body["result"])
	assert.Equal(t, services.StatusAccepted, body["status"])

	code, _ = ts.do(t, http.MethodPost, "/post/"+tok, "agent", "secret", `{"type":"invoice"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodGet, "/post/"+tok, "agent", "secret", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	code, body = ts.do(t, http.MethodGet, "/confirm/7/O1", "agent", "secret", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, services.StatusConfirmed, body["status"])

	require.NoError(t, ts.prints.Put(context.Background(), "O1", []byte("receipt")))
	code, body = ts.do(t, http.MethodGet, "/print/O1", "agent", "secret", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.ResultOK, body["result"])
	assert.Equal(t, "cmVjZWlwdA==", body["data"])
}
