package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the receptionist service.
type Config struct {
	BindAddr         string
	PublicHost       string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	CallInactivityTimeout time.Duration
	PendingCallTTL        time.Duration

	AckDelay         time.Duration
	BargeInMinChars  int
	MinFinalChars    int
	MinTurnsToClose  int
	DefaultGreeting  string
	DefaultQuestions []string
	DefaultSignOff   string
	VoicemailPrompt  string

	TwilioAuthToken   string
	ValidateSignature bool

	DeepgramAPIKey    string
	DeepgramWSBaseURL string
	DeepgramModel     string
	ASRSampleRate     int

	OpenAIAPIKey string
	OpenAIModel  string

	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsModelID string
	ElevenLabsVoiceID string

	PollyRegion  string
	PollyVoiceID string

	TTSPreference      string
	TTSCacheTTL        time.Duration
	TTSCacheMaxEntries int

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		PublicHost:       envTrimmed("APP_PUBLIC_HOST"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "frontdesk"),

		ShutdownTimeout:       15 * time.Second,
		CallInactivityTimeout: 3 * time.Minute,
		PendingCallTTL:        2 * time.Minute,

		AckDelay:        time.Second,
		BargeInMinChars: 12,
		MinFinalChars:   2,
		MinTurnsToClose: 3,
		DefaultGreeting: envOrDefault("APP_DEFAULT_GREETING",
			"Hi, you've reached the office. I can take down the details of the job for you. What do you need help with?"),
		DefaultSignOff: envOrDefault("APP_DEFAULT_SIGN_OFF",
			"Great, we'll be in touch shortly. Thanks for calling!"),
		VoicemailPrompt: envOrDefault("APP_VOICEMAIL_PROMPT",
			"Please leave a message after the tone and we'll get back to you."),

		TwilioAuthToken:   envTrimmed("TWILIO_AUTH_TOKEN"),
		ValidateSignature: false,

		DeepgramAPIKey:    envTrimmed("DEEPGRAM_API_KEY"),
		DeepgramWSBaseURL: envOrDefault("DEEPGRAM_WS_BASE_URL", "wss://api.deepgram.com"),
		DeepgramModel:     envOrDefault("DEEPGRAM_MODEL", "nova-2"),
		// Inbound telephony audio is upsampled 2x before hitting the ASR stream.
		ASRSampleRate: 16000,

		OpenAIAPIKey: envTrimmed("OPENAI_API_KEY"),
		OpenAIModel:  envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),

		ElevenLabsAPIKey:  envTrimmed("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsModelID: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_turbo_v2_5"),
		ElevenLabsVoiceID: envOrDefault("ELEVENLABS_TTS_VOICE_ID", "cgSgspJ2msm6clMCkdW9"),

		PollyRegion:  envOrDefault("AWS_POLLY_REGION", ""),
		PollyVoiceID: envOrDefault("AWS_POLLY_VOICE_ID", "Joanna"),

		TTSPreference:      strings.ToLower(envTrimmed("TTS_PREFERRED_PROVIDER")),
		TTSCacheTTL:        12 * time.Hour,
		TTSCacheMaxEntries: 512,

		DatabaseURL: envTrimmed("DATABASE_URL"),
	}

	if qs := envTrimmed("APP_DEFAULT_QUESTIONS"); qs != "" {
		for _, q := range strings.Split(qs, ";") {
			if q = strings.TrimSpace(q); q != "" {
				cfg.DefaultQuestions = append(cfg.DefaultQuestions, q)
			}
		}
	}
	if len(cfg.DefaultQuestions) == 0 {
		cfg.DefaultQuestions = []string{
			"Could I get your name?",
			"What's the best number to reach you on?",
			"When would you like someone to come out?",
		}
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CallInactivityTimeout, err = durationFromEnv("APP_CALL_INACTIVITY_TIMEOUT", cfg.CallInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PendingCallTTL, err = durationFromEnv("APP_PENDING_CALL_TTL", cfg.PendingCallTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AckDelay, err = durationFromEnv("APP_ACK_DELAY", cfg.AckDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSCacheTTL, err = durationFromEnv("TTS_CACHE_TTL", cfg.TTSCacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSCacheMaxEntries, err = intFromEnv("TTS_CACHE_MAX_ENTRIES", cfg.TTSCacheMaxEntries)
	if err != nil {
		return Config{}, err
	}
	cfg.BargeInMinChars, err = intFromEnv("APP_BARGE_IN_MIN_CHARS", cfg.BargeInMinChars)
	if err != nil {
		return Config{}, err
	}
	cfg.ValidateSignature, err = boolFromEnv("TWILIO_VALIDATE_SIGNATURE", cfg.TwilioAuthToken != "")
	if err != nil {
		return Config{}, err
	}

	if cfg.CallInactivityTimeout < 10*time.Second {
		return Config{}, fmt.Errorf("APP_CALL_INACTIVITY_TIMEOUT must be at least 10s")
	}
	if cfg.PendingCallTTL < 10*time.Second {
		return Config{}, fmt.Errorf("APP_PENDING_CALL_TTL must be at least 10s")
	}
	if cfg.AckDelay <= 0 {
		return Config{}, fmt.Errorf("APP_ACK_DELAY must be positive")
	}
	if cfg.TTSCacheMaxEntries <= 0 {
		return Config{}, fmt.Errorf("TTS_CACHE_MAX_ENTRIES must be positive")
	}
	if cfg.BargeInMinChars <= 0 {
		return Config{}, fmt.Errorf("APP_BARGE_IN_MIN_CHARS must be positive")
	}
	if cfg.ValidateSignature && cfg.TwilioAuthToken == "" {
		return Config{}, fmt.Errorf("TWILIO_VALIDATE_SIGNATURE=true requires TWILIO_AUTH_TOKEN")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
