package httpapi

import (
	"encoding/xml"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/frontdesklabs/frontdesk/internal/routing"
	"github.com/frontdesklabs/frontdesk/internal/session"
)

// TwiML response documents. Field order matters: verbs execute top to bottom.
type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Say     *twimlSay     `xml:",omitempty"`
	Connect *twimlConnect `xml:",omitempty"`
	Record  *twimlRecord  `xml:",omitempty"`
	Hangup  *twimlHangup  `xml:",omitempty"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Connect"`
	Stream  twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

type twimlRecord struct {
	XMLName   xml.Name `xml:"Record"`
	MaxLength int      `xml:"maxLength,attr,omitempty"`
	PlayBeep  bool     `xml:"playBeep,attr"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// handleVoiceWebhook is the provider's entry point for a ringing call. It
// runs the routing engine and answers with TwiML: a media-stream connect for
// intake, or a voicemail prompt.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	callSID := strings.TrimSpace(r.PostFormValue("CallSid"))
	from := strings.TrimSpace(r.PostFormValue("From"))
	to := strings.TrimSpace(r.PostFormValue("To"))
	if callSID == "" {
		respondError(w, http.StatusBadRequest, "missing_call_sid", "CallSid is required")
		return
	}

	if s.cfg.ValidateSignature && !s.signatureValid(r) {
		s.log.Warn("webhook signature rejected", zap.String("call_sid", callSID))
		respondError(w, http.StatusForbidden, "invalid_signature", "signature validation failed")
		return
	}

	decision := s.engine.Route(r.Context(), from, to)
	s.log.Info("voice webhook routed",
		zap.String("call_sid", callSID),
		zap.String("route", string(decision.Route)),
		zap.String("reason", decision.Reason))

	if decision.Route == routing.RouteIntake {
		s.pending.Put(callSID, session.Params{
			AccountID:     decision.AccountID,
			CallerNumber:  from,
			Mode:          session.ModeIntake,
			TTSPreference: s.cfg.TTSPreference,
			CustomVoices: map[string]string{
				"elevenlabs": s.cfg.ElevenLabsVoiceID,
				"polly":      s.cfg.PollyVoiceID,
			},
			Greeting:  s.cfg.DefaultGreeting,
			Questions: s.cfg.DefaultQuestions,
			SignOff:   s.cfg.DefaultSignOff,
		})
		s.writeTwiML(w, twimlResponse{
			Connect: &twimlConnect{Stream: twimlStream{URL: s.mediaStreamURL(r)}},
		})
		return
	}

	s.writeTwiML(w, twimlResponse{
		Say:    &twimlSay{Text: s.cfg.VoicemailPrompt},
		Record: &twimlRecord{MaxLength: 120, PlayBeep: true},
		Hangup: &twimlHangup{},
	})
}

func (s *Server) writeTwiML(w http.ResponseWriter, doc twimlResponse) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(doc); err != nil {
		s.log.Warn("twiml encode failed", zap.Error(err))
	}
}

func (s *Server) mediaStreamURL(r *http.Request) string {
	host := strings.TrimSpace(s.cfg.PublicHost)
	if host == "" {
		host = r.Host
	}
	return "wss://" + host + "/twilio/media"
}

// signatureValid checks the provider's HMAC header against the full webhook
// URL and posted params.
func (s *Server) signatureValid(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return s.validator.Validate(s.webhookURL(r), params, signature)
}

func (s *Server) webhookURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") == "http" {
		scheme = "http"
	}
	host := strings.TrimSpace(s.cfg.PublicHost)
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
