package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/frontdesklabs/frontdesk/internal/config"
	"github.com/frontdesklabs/frontdesk/internal/routing"
	"github.com/frontdesklabs/frontdesk/internal/session"
	"github.com/frontdesklabs/frontdesk/internal/transport"
)

const testDialed = "+15550009999"

func testServer(t *testing.T, mutate func(*config.Config)) (*Server, *routing.InMemoryStore) {
	t.Helper()
	cfg := config.Config{
		PublicHost:       "pbx.example.com",
		PendingCallTTL:   time.Minute,
		DefaultGreeting:  "Hi, how can I help?",
		DefaultQuestions: []string{"Could I get your name?"},
		DefaultSignOff:   "Thanks for calling!",
		VoicemailPrompt:  "Please leave a message after the tone.",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	store := routing.NewInMemoryStore()
	engine := routing.NewEngine(store, nil, nil)
	pending := session.NewPendingCalls(cfg.PendingCallTTL)
	calls := session.NewManager(time.Minute)

	srv := New(cfg, nil, engine, pending, calls, transport.Deps{}, nil)
	return srv, store
}

func postVoiceWebhook(srv *Server, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body: %v", body)
	}
}

func TestVoiceWebhookIntake(t *testing.T) {
	srv, store := testServer(t, nil)
	store.RegisterAccount(testDialed, "acct-1", routing.Settings{Enabled: true, Mode: routing.ModeIntake})

	rec := postVoiceWebhook(srv, url.Values{
		"CallSid": {"CA123"},
		"From":    {"+15550001111"},
		"To":      {testDialed},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Connect>") {
		t.Fatalf("no Connect verb: %s", body)
	}
	if !strings.Contains(body, `url="wss://pbx.example.com/twilio/media"`) {
		t.Fatalf("stream url missing: %s", body)
	}

	params, ok := srv.pending.Take("CA123")
	if !ok {
		t.Fatal("call params not staged")
	}
	if params.AccountID != "acct-1" || params.Greeting != "Hi, how can I help?" {
		t.Fatalf("staged params: %+v", params)
	}
	if params.CallerNumber != "+15550001111" {
		t.Fatalf("caller number: %q", params.CallerNumber)
	}
}

func TestVoiceWebhookVoicemail(t *testing.T) {
	srv, _ := testServer(t, nil)

	rec := postVoiceWebhook(srv, url.Values{
		"CallSid": {"CA124"},
		"From":    {"+15550001111"},
		"To":      {"+15550000000"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Record") || !strings.Contains(body, "Please leave a message") {
		t.Fatalf("voicemail twiml wrong: %s", body)
	}
	if strings.Contains(body, "<Connect>") {
		t.Fatalf("voicemail response must not connect a stream: %s", body)
	}
	if _, ok := srv.pending.Take("CA124"); ok {
		t.Fatal("voicemail call must not stage stream params")
	}
}

func TestVoiceWebhookMissingCallSid(t *testing.T) {
	srv, _ := testServer(t, nil)
	rec := postVoiceWebhook(srv, url.Values{"From": {"+15550001111"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestVoiceWebhookRejectsBadSignature(t *testing.T) {
	srv, store := testServer(t, func(cfg *config.Config) {
		cfg.TwilioAuthToken = "secret-token"
		cfg.ValidateSignature = true
	})
	store.RegisterAccount(testDialed, "acct-1", routing.Settings{Enabled: true, Mode: routing.ModeIntake})

	rec := postVoiceWebhook(srv, url.Values{
		"CallSid": {"CA125"},
		"From":    {"+15550001111"},
		"To":      {testDialed},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if _, ok := srv.pending.Take("CA125"); ok {
		t.Fatal("rejected webhook must not stage params")
	}
}

func TestStagePendingCall(t *testing.T) {
	srv, _ := testServer(t, nil)

	payload, _ := json.Marshal(stagePendingCallRequest{
		CallSID: "CA200",
		Params:  session.Params{AccountID: "acct-2"},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/calls/pending", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// A second stage for the same call conflicts.
	req = httptest.NewRequest(http.MethodPost, "/v1/calls/pending", bytes.NewReader(payload))
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}

	params, ok := srv.pending.Take("CA200")
	if !ok {
		t.Fatal("params not staged")
	}
	if params.Greeting != "Hi, how can I help?" || params.SignOff != "Thanks for calling!" {
		t.Fatalf("defaults not applied: %+v", params)
	}
	if params.Mode != session.ModeIntake {
		t.Fatalf("mode: %s", params.Mode)
	}
}

func TestStagePendingCallValidation(t *testing.T) {
	srv, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/calls/pending", strings.NewReader(`{"params":{}}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetCall(t *testing.T) {
	srv, _ := testServer(t, nil)
	srv.calls.Create("CA300", "MZ300", session.Params{AccountID: "acct-3"})

	req := httptest.NewRequest(http.MethodGet, "/v1/calls/CA300", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var call session.Call
	if err := json.Unmarshal(rec.Body.Bytes(), &call); err != nil {
		t.Fatal(err)
	}
	if call.SID != "CA300" || call.AccountID != "acct-3" {
		t.Fatalf("call: %+v", call)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/calls/CA999", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing call status = %d", rec.Code)
	}
}
