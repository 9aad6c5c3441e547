package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sceneid/internal/api"
	"sceneid/internal/cascade"
	"sceneid/internal/mediastore"
	"sceneid/internal/services"
)

type engineStub struct {
	result     cascade.Result
	err        error
	health     api.HealthResponse
	audits     []mediastore.AuditEntry
	resetCalls int
}

func (e *engineStub) Recognize(context.Context, api.RecognizeRequest) (cascade.Result, error) {
	return e.result, e.err
}

func (e *engineStub) Status(context.Context) api.DaemonStatus {
	return api.DaemonStatus{Running: true, Admission: api.AdmissionStats{MaxConcurrent: 3}}
}

func (e *engineStub) Health(context.Context) api.HealthResponse {
	return e.health
}

func (e *engineStub) RecentAudits(context.Context, int) ([]mediastore.AuditEntry, error) {
	return e.audits, nil
}

func (e *engineStub) ForceReset() {
	e.resetCalls++
}

func postRecognize(t *testing.T, srv *apiServer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/recognize", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleRecognize(w, req)
	return w
}

func TestHandleRecognize(t *testing.T) {
	stub := &engineStub{result: cascade.Result{
		RequestID:  "req-1",
		Outcome:    cascade.OutcomeAccepted,
		Title:      "Heat",
		Year:       1995,
		Confidence: 0.91,
	}}
	srv := &apiServer{engine: stub}

	w := postRecognize(t, srv, `{"mediaRef":"/clips/heat.mkv"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.RecognizeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result.Title != "Heat" || !resp.Result.Identified {
		t.Fatalf("unexpected result: %+v", resp.Result)
	}
}

func TestHandleRecognizeRequiresMediaRef(t *testing.T) {
	srv := &apiServer{engine: &engineStub{}}
	w := postRecognize(t, srv, `{"requesterId":"cli"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleRecognizeRejectsBadJSON(t *testing.T) {
	srv := &apiServer{engine: &engineStub{}}
	w := postRecognize(t, srv, `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleRecognizeQueueFull(t *testing.T) {
	err := services.Wrap(services.ErrCapacityExceeded, "governor", "acquire", "admission queue full", nil)
	stub := &engineStub{err: services.WithRetryAfter(err, 30*time.Second)}
	srv := &apiServer{engine: stub}

	w := postRecognize(t, srv, `{"mediaRef":"/clips/heat.mkv"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("Retry-After %q, want 30", got)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RetryAfterSeconds != 30 {
		t.Fatalf("retryAfterSeconds %d, want 30", resp.RetryAfterSeconds)
	}
}

func TestHandleRecognizeQueueTimeout(t *testing.T) {
	stub := &engineStub{err: services.Wrap(services.ErrQueueTimeout, "governor", "acquire", "timed out", nil)}
	srv := &apiServer{engine: stub}

	w := postRecognize(t, srv, `{"mediaRef":"/clips/heat.mkv"}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	srv := &apiServer{engine: &engineStub{health: api.HealthResponse{Healthy: false}}}
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := &apiServer{engine: &engineStub{}}
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !status.Running || status.Admission.MaxConcurrent != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestHandleAudits(t *testing.T) {
	stub := &engineStub{audits: []mediastore.AuditEntry{{RequestID: "req-9", Outcome: "accepted"}}}
	srv := &apiServer{engine: stub}
	req := httptest.NewRequest(http.MethodGet, "/api/audits", nil)
	w := httptest.NewRecorder()
	srv.handleAudits(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.AuditListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].RequestID != "req-9" {
		t.Fatalf("unexpected entries: %+v", resp.Entries)
	}
}

func TestAdminResetRequiresToken(t *testing.T) {
	stub := &engineStub{}
	srv := &apiServer{engine: stub, token: "secret"}
	handler := srv.requireToken(srv.handleReset)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reset", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	var unauthorized api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &unauthorized); err != nil {
		t.Fatalf("failed to decode 401 body: %v", err)
	}
	if unauthorized.Error != "unauthorized" {
		t.Fatalf("unexpected 401 body: %+v", unauthorized)
	}
	if stub.resetCalls != 0 {
		t.Fatal("reset must not run unauthorized")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/reset", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/reset", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if stub.resetCalls != 1 {
		t.Fatalf("reset calls %d, want 1", stub.resetCalls)
	}
}
