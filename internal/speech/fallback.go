package speech

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/frontdesklabs/frontdesk/internal/audio"
	"github.com/frontdesklabs/frontdesk/internal/reliability"
)

// Retry budget for one backend before falling through to the next.
const (
	maxSynthAttempts = 2
	retryBackoffBase = 50 * time.Millisecond
	retryBackoffCap  = 200 * time.Millisecond
)

// VoiceSelection resolves the voice identifier per provider: an explicit
// per-provider custom voice wins over the session's preset.
type VoiceSelection struct {
	Preset string
	Custom map[string]string
}

func (v VoiceSelection) For(provider string) string {
	if id := strings.TrimSpace(v.Custom[provider]); id != "" {
		return id
	}
	return v.Preset
}

// ChainEvents receives cache/backend outcomes for metrics wiring. Any field
// may be nil.
type ChainEvents struct {
	OnCache         func(result string)
	OnProviderError func(provider string)
}

// Chain tries synthesis backends in priority order, consulting the shared
// cache first. All-backend failure yields ErrNoAudio; callers skip playback.
type Chain struct {
	backends      []Synthesizer
	cache         *Cache
	defaultVoices map[string]string
	log           *zap.Logger
	events        ChainEvents
}

func NewChain(backends []Synthesizer, cache *Cache, defaultVoices map[string]string, log *zap.Logger, events ChainEvents) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	if defaultVoices == nil {
		defaultVoices = map[string]string{}
	}
	return &Chain{
		backends:      backends,
		cache:         cache,
		defaultVoices: defaultVoices,
		log:           log,
		events:        events,
	}
}

// OrderSynthesizers resolves the per-session priority list once: the explicit
// preference first, then the remaining credentialed backends in configured
// order.
func OrderSynthesizers(preference string, available []Synthesizer) []Synthesizer {
	preference = strings.ToLower(strings.TrimSpace(preference))
	if preference == "" {
		return available
	}
	out := make([]Synthesizer, 0, len(available))
	for _, s := range available {
		if s.Name() == preference {
			out = append(out, s)
		}
	}
	for _, s := range available {
		if s.Name() != preference {
			out = append(out, s)
		}
	}
	return out
}

func (c *Chain) Render(ctx context.Context, text string, voice VoiceSelection, sampleRate int) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoAudio
	}

	for _, backend := range c.backends {
		voiceID := voice.For(backend.Name())
		if voiceID == "" {
			voiceID = c.defaultVoices[backend.Name()]
		}

		key := CacheKey(backend.Name(), voiceID, text)
		if cached, ok := c.cache.Get(key); ok {
			c.cacheEvent("hit")
			return cached, nil
		}
		c.cacheEvent("miss")

		rendered, err := c.synthesizeWithRetry(ctx, backend, SynthesisRequest{
			Text:       text,
			VoiceID:    voiceID,
			Encoding:   EncodingLinear16,
			SampleRate: sampleRate,
		})
		if err != nil {
			c.log.Warn("synthesis backend failed",
				zap.String("provider", backend.Name()),
				zap.Error(err))
			if c.events.OnProviderError != nil {
				c.events.OnProviderError(backend.Name())
			}
			continue
		}

		// Some backends wrap raw samples in a WAV envelope.
		if payload, unwrapped := audio.ExtractPCM(rendered); unwrapped {
			rendered = payload
		}
		if len(rendered) == 0 {
			continue
		}

		c.cache.Put(key, rendered)
		return rendered, nil
	}

	return nil, ErrNoAudio
}

// synthesizeWithRetry retries transient backend failures with capped backoff
// before the chain gives up on the backend. Non-retryable errors fall through
// immediately.
func (c *Chain) synthesizeWithRetry(ctx context.Context, backend Synthesizer, req SynthesisRequest) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxSynthAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt, retryBackoffBase, retryBackoffCap)):
			}
		}
		out, err := backend.Synthesize(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		var synthErr *SynthesisError
		if !errors.As(err, &synthErr) || !synthErr.Retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Chain) cacheEvent(result string) {
	if c.events.OnCache != nil {
		c.events.OnCache(result)
	}
}
