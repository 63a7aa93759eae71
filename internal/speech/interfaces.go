// Package speech abstracts the three provider capabilities the call pipeline
// needs: streaming transcription, conversational text generation, and speech
// synthesis. Backends are interchangeable and selected at session setup.
package speech

import "context"

// Audio encodings requested from synthesizers.
const (
	EncodingLinear16 = "linear16"
	EncodingMulaw    = "mulaw"
)

// Transcript is one ASR event, interim or final.
type Transcript struct {
	Text       string
	Final      bool
	Confidence float64
	Timestamp  int64
}

// TranscriptStream is one live transcription session. Closing the stream
// cancels transcription mid-utterance; no further events are delivered after
// the events channel closes.
type TranscriptStream interface {
	SendAudio(ctx context.Context, pcm []byte) error
	Events() <-chan Transcript
	Close() error
}

type Transcriber interface {
	Start(ctx context.Context, callID string, sampleRate int) (TranscriptStream, error)
}

// Role tags a dialogue turn.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

type Turn struct {
	Role Role
	Text string
}

// Prompt carries the full running dialogue for one generation request.
type Prompt struct {
	System   string
	Turns    []Turn
	UserText string
}

// Reply is one assistant utterance. Entities carries structured fields the
// model extracted via its capture tool; it is a variant of the same response,
// not a separate round trip.
type Reply struct {
	Text     string
	Entities map[string]string
}

type Responder interface {
	Respond(ctx context.Context, p Prompt) (Reply, error)
}

type SynthesisRequest struct {
	Text       string
	VoiceID    string
	Encoding   string
	SampleRate int
}

type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}
