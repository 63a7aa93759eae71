package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frontdesklabs/frontdesk/internal/reliability"
)

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	ModelID string
}

// ElevenLabsSynthesizer renders speech through the ElevenLabs HTTP synthesis
// endpoint. PCM output formats return raw samples with no container.
type ElevenLabsSynthesizer struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) *ElevenLabsSynthesizer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_turbo_v2_5"
	}
	return &ElevenLabsSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

func (p *ElevenLabsSynthesizer) Name() string { return "elevenlabs" }

func (p *ElevenLabsSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if strings.TrimSpace(req.VoiceID) == "" {
		return nil, &SynthesisError{Provider: p.Name(), Detail: "voice_id is required"}
	}

	format, err := elevenOutputFormat(req.Encoding, req.SampleRate)
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Detail: err.Error()}
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(req.VoiceID) + "?output_format=" + format

	body, err := json.Marshal(map[string]any{
		"text":     req.Text,
		"model_id": p.cfg.ModelID,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("xi-api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Detail: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SynthesisError{
			Provider:  p.Name(),
			Status:    resp.StatusCode,
			Detail:    strings.TrimSpace(string(detail)),
			Retryable: reliability.IsRetryableHTTPStatus(resp.StatusCode),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Detail: err.Error(), Retryable: true}
	}
	return audio, nil
}

func elevenOutputFormat(encoding string, sampleRate int) (string, error) {
	switch encoding {
	case EncodingMulaw:
		return "ulaw_8000", nil
	case EncodingLinear16, "":
		switch sampleRate {
		case 16000:
			return "pcm_16000", nil
		case 8000, 0:
			return "pcm_8000", nil
		default:
			return "", fmt.Errorf("unsupported pcm sample rate %d", sampleRate)
		}
	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding)
	}
}
