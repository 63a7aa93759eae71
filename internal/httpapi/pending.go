package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/frontdesklabs/frontdesk/internal/session"
)

// stagePendingCallRequest is the external handoff: a config/CRUD service that
// ran its own routing can stage call parameters here before the media stream
// connects.
type stagePendingCallRequest struct {
	CallSID string         `json:"call_sid"`
	Params  session.Params `json:"params"`
}

func (s *Server) handleStagePendingCall(w http.ResponseWriter, r *http.Request) {
	var req stagePendingCallRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.CallSID = strings.TrimSpace(req.CallSID)
	if req.CallSID == "" {
		respondError(w, http.StatusBadRequest, "missing_call_sid", "call_sid is required")
		return
	}

	if req.Params.Mode == "" {
		req.Params.Mode = session.ModeIntake
	}
	if strings.TrimSpace(req.Params.Greeting) == "" {
		req.Params.Greeting = s.cfg.DefaultGreeting
	}
	if len(req.Params.Questions) == 0 {
		req.Params.Questions = s.cfg.DefaultQuestions
	}
	if strings.TrimSpace(req.Params.SignOff) == "" {
		req.Params.SignOff = s.cfg.DefaultSignOff
	}
	if req.Params.TTSPreference == "" {
		req.Params.TTSPreference = s.cfg.TTSPreference
	}

	if !s.pending.PutIfAbsent(req.CallSID, req.Params) {
		respondError(w, http.StatusConflict, "call_already_staged", "parameters already staged for this call")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"call_sid":   req.CallSID,
		"expires_in": s.cfg.PendingCallTTL.String(),
	})
}
