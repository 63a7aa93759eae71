package speech

import (
	"errors"
	"fmt"
)

// ErrNoAudio means every synthesis backend failed; callers skip playback and
// keep the call alive.
var ErrNoAudio = errors.New("no audio rendered")

// GenerationError reports a text-generation failure with the upstream status.
type GenerationError struct {
	Status int
	Detail string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (status %d): %s", e.Status, e.Detail)
}

// SynthesisError reports a synthesis failure for one backend.
type SynthesisError struct {
	Provider  string
	Status    int
	Detail    string
	Retryable bool
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s synthesis failed (status %d): %s", e.Provider, e.Status, e.Detail)
}
