package speech

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider is a local fallback provider used when no vendor credentials
// are configured. It keeps the full call path exercisable in dev.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Start(_ context.Context, _ string, _ int) (TranscriptStream, error) {
	events := make(chan Transcript, 64)
	return &mockTranscriptStream{events: events}, nil
}

func (p *MockProvider) Name() string { return "mock" }

// Synthesize returns a short buffer of silence sized to roughly 40ms per word
// so playback pacing still behaves.
func (p *MockProvider) Synthesize(_ context.Context, req SynthesisRequest) ([]byte, error) {
	words := 1
	for _, r := range req.Text {
		if r == ' ' {
			words++
		}
	}
	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = 8000
	}
	samples := words * sampleRate * 40 / 1000
	return make([]byte, samples*2), nil
}

func (p *MockProvider) Respond(_ context.Context, prompt Prompt) (Reply, error) {
	return Reply{Text: fmt.Sprintf("Understood: %s", prompt.UserText)}, nil
}

type mockTranscriptStream struct {
	mu     sync.Mutex
	events chan Transcript
	chunks int
	closed bool
}

func (s *mockTranscriptStream) SendAudio(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(pcm) == 0 {
		return nil
	}
	s.chunks++
	s.events <- Transcript{Text: "...", Confidence: 0.5, Timestamp: time.Now().UnixMilli()}
	if s.chunks%8 == 0 {
		s.events <- Transcript{Text: "simulated caller speech", Final: true, Confidence: 0.7, Timestamp: time.Now().UnixMilli()}
	}
	return nil
}

func (s *mockTranscriptStream) Events() <-chan Transcript { return s.events }

func (s *mockTranscriptStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}
