package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_VALIDATE_SIGNATURE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.AckDelay != time.Second {
		t.Fatalf("AckDelay = %v, want 1s", cfg.AckDelay)
	}
	if cfg.ValidateSignature {
		t.Fatal("signature validation should be off without an auth token")
	}
	if len(cfg.DefaultQuestions) != 3 {
		t.Fatalf("DefaultQuestions = %d, want 3", len(cfg.DefaultQuestions))
	}
	if cfg.ASRSampleRate != 16000 {
		t.Fatalf("ASRSampleRate = %d", cfg.ASRSampleRate)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("APP_ACK_DELAY", "0s")
	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted zero ack delay")
	}
	t.Setenv("APP_ACK_DELAY", "")

	t.Setenv("TTS_CACHE_MAX_ENTRIES", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted malformed int")
	}
	t.Setenv("TTS_CACHE_MAX_ENTRIES", "")

	t.Setenv("TWILIO_VALIDATE_SIGNATURE", "true")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted signature validation without auth token")
	}
}

func TestLoadQuestionListParsing(t *testing.T) {
	t.Setenv("APP_DEFAULT_QUESTIONS", " first ; ;second;")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.DefaultQuestions) != 2 || cfg.DefaultQuestions[0] != "first" || cfg.DefaultQuestions[1] != "second" {
		t.Fatalf("DefaultQuestions = %v", cfg.DefaultQuestions)
	}
}

func TestLoadSignatureDefaultsOnWithToken(t *testing.T) {
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_VALIDATE_SIGNATURE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.ValidateSignature {
		t.Fatal("signature validation should default on when a token is set")
	}
}
