package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgate/gateway"
	"github.com/hupe1980/agentgate/whatsapp"
)

type recordingBatches struct {
	mu     sync.Mutex
	bodies []string
	result gateway.BatchResult
}

func (r *recordingBatches) HandleBatch(_ context.Context, raw []byte) gateway.BatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, string(raw))
	return r.result
}

func newTestServer(batches BatchHandler, appSecret string) *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(log, "", NewWebhookHandler(log, batches, "verify-me", appSecret), HealthHandler{})
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestWebhook_Verify(t *testing.T) {
	s := newTestServer(&recordingBatches{}, "")

	rec := serve(s, httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1158201444", rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Verification failed", rec.Body.String())
}

func TestWebhook_Receive(t *testing.T) {
	batches := &recordingBatches{result: gateway.BatchResult{Status: gateway.StatusOK, Received: 1, Accepted: 1, Delivered: 1}}
	s := newTestServer(batches, "")

	body := `{"object":"whatsapp_business_account","entry":[]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got gateway.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, batches.result, got)
	assert.Equal(t, []string{body}, batches.bodies)
}

func TestWebhook_ReceiveErrorStatusStill200(t *testing.T) {
	batches := &recordingBatches{result: gateway.BatchResult{Status: gateway.StatusError, Detail: "decode webhook payload"}}
	s := newTestServer(batches, "")

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
	assert.Contains(t, rec.Body.String(), `"message":"decode webhook payload"`)
}

func TestWebhook_Signature(t *testing.T) {
	batches := &recordingBatches{result: gateway.BatchResult{Status: gateway.StatusOK}}
	s := newTestServer(batches, "app-secret")
	body := `{"object":"whatsapp_business_account","entry":[]}`

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(whatsapp.SignatureHeader, "sha256=00")
	rec := serve(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, batches.bodies)

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(whatsapp.SignatureHeader, "sha256="+hex.EncodeToString(whatsapp.Sign([]byte(body), "app-secret")))
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, batches.bodies, 1)
}

func TestHealth(t *testing.T) {
	s := newTestServer(&recordingBatches{}, "")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
