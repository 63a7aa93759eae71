// Package app assembles the receptionist service from configuration:
// speech backends, routing, session state, and the HTTP surface.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/frontdesklabs/frontdesk/internal/archive"
	"github.com/frontdesklabs/frontdesk/internal/config"
	"github.com/frontdesklabs/frontdesk/internal/convo"
	"github.com/frontdesklabs/frontdesk/internal/httpapi"
	"github.com/frontdesklabs/frontdesk/internal/observability"
	"github.com/frontdesklabs/frontdesk/internal/routing"
	"github.com/frontdesklabs/frontdesk/internal/session"
	"github.com/frontdesklabs/frontdesk/internal/speech"
	"github.com/frontdesklabs/frontdesk/internal/transport"
)

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Calls   *session.Manager
	Pending *session.PendingCalls
	Metrics *observability.Metrics

	// Cleanup releases external resources (DB pools) on shutdown.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*BuildResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	routingStore, err := routing.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("routing store init failed: %w", err)
	}
	archiveStore, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = routingStore.Close()
		return nil, fmt.Errorf("archive store init failed: %w", err)
	}

	engine := routing.NewEngine(routingStore, log, func(route, reason string) {
		metrics.RoutingDecisions.WithLabelValues(route, reason).Inc()
	})

	calls := session.NewManager(cfg.CallInactivityTimeout)
	pending := session.NewPendingCalls(cfg.PendingCallTTL)
	sink := archive.Sink(archiveStore, log)

	calls.SetExpireHook(func(c *session.Call) {
		metrics.CallEvents.WithLabelValues("expired").Inc()
		metrics.ActiveCalls.Set(float64(calls.ActiveCount()))
		// The state machine is gone by the time the janitor fires; archive
		// whatever transcript we have.
		sink.Deliver(context.Background(), convo.Completion{
			CallID:       c.SID,
			AccountID:    c.AccountID,
			CallerNumber: c.CallerNumber,
			Turns:        c.Turns,
			Entities:     c.Entities,
			Reason:       c.EndReason,
			StartedAt:    c.StartedAt,
			EndedAt:      c.EndedAt,
		})
	})

	synths, err := resolveSynthesizers(ctx, cfg, log)
	if err != nil {
		_ = routingStore.Close()
		_ = archiveStore.Close()
		return nil, err
	}
	chain := speech.NewChain(
		speech.OrderSynthesizers(cfg.TTSPreference, synths),
		speech.NewCache(cfg.TTSCacheTTL, cfg.TTSCacheMaxEntries),
		map[string]string{
			"elevenlabs": cfg.ElevenLabsVoiceID,
			"polly":      cfg.PollyVoiceID,
		},
		log,
		speech.ChainEvents{
			OnCache: func(result string) {
				metrics.SynthCache.WithLabelValues(result).Inc()
			},
			OnProviderError: func(provider string) {
				metrics.ProviderErrors.WithLabelValues(provider, "synthesis").Inc()
			},
		},
	)

	streamDeps := transport.Deps{
		Pending:       pending,
		Calls:         calls,
		Transcriber:   resolveTranscriber(cfg, log),
		Responder:     resolveResponder(cfg, log),
		Chain:         chain,
		Sink:          sink,
		ASRSampleRate: cfg.ASRSampleRate,
		Log:           log,
		ConvoOpts: convo.Options{
			AckDelay:        cfg.AckDelay,
			BargeInMinChars: cfg.BargeInMinChars,
			MinFinalChars:   cfg.MinFinalChars,
			MinTurnsToClose: cfg.MinTurnsToClose,
			OnBargeIn:       func() { metrics.BargeIns.Inc() },
			OnAck:           func() { metrics.Acknowledgments.Inc() },
			OnReplyReady:    metrics.ObserveFirstReplyLatency,
		},
		OnMediaFrame: func(direction string) {
			metrics.MediaFrames.WithLabelValues(direction).Inc()
		},
		OnCallEvent: func(event string) {
			metrics.CallEvents.WithLabelValues(event).Inc()
			metrics.ActiveCalls.Set(float64(calls.ActiveCount()))
		},
	}

	api := httpapi.New(cfg, log, engine, pending, calls, streamDeps, metrics)

	cleanup := func() error {
		var errs []string
		if err := routingStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := archiveStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Calls:   calls,
		Pending: pending,
		Metrics: metrics,
		Cleanup: cleanup,
	}, nil
}

// resolveSynthesizers builds every credentialed synthesis backend, falling
// back to the mock provider so dev setups still produce a full call path.
func resolveSynthesizers(ctx context.Context, cfg config.Config, log *zap.Logger) ([]speech.Synthesizer, error) {
	var backends []speech.Synthesizer

	if strings.TrimSpace(cfg.ElevenLabsAPIKey) != "" {
		backends = append(backends, speech.NewElevenLabsSynthesizer(speech.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			ModelID: cfg.ElevenLabsModelID,
		}))
		log.Info("synthesis backend enabled", zap.String("provider", "elevenlabs"))
	}
	if strings.TrimSpace(cfg.PollyRegion) != "" {
		polly, err := speech.NewPollySynthesizer(ctx, speech.PollyConfig{Region: cfg.PollyRegion})
		if err != nil {
			return nil, fmt.Errorf("polly init failed: %w", err)
		}
		backends = append(backends, polly)
		log.Info("synthesis backend enabled", zap.String("provider", "polly"))
	}
	if len(backends) == 0 {
		backends = append(backends, speech.NewMockProvider())
		log.Warn("no synthesis credentials configured, using mock provider")
	}
	return backends, nil
}

func resolveTranscriber(cfg config.Config, log *zap.Logger) speech.Transcriber {
	if strings.TrimSpace(cfg.DeepgramAPIKey) != "" {
		log.Info("transcription backend enabled", zap.String("provider", "deepgram"))
		return speech.NewDeepgramTranscriber(speech.DeepgramConfig{
			APIKey:    cfg.DeepgramAPIKey,
			WSBaseURL: cfg.DeepgramWSBaseURL,
			Model:     cfg.DeepgramModel,
		})
	}
	log.Warn("no transcription credentials configured, using mock provider")
	return speech.NewMockProvider()
}

func resolveResponder(cfg config.Config, log *zap.Logger) speech.Responder {
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		log.Info("generation backend enabled", zap.String("provider", "openai"))
		return speech.NewOpenAIResponder(speech.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		})
	}
	log.Warn("no generation credentials configured, using mock provider")
	return speech.NewMockProvider()
}
