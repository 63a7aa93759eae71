package speech

import (
	"context"
	"fmt"
	"io"
	"strconv"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

type PollyConfig struct {
	Region string
}

// PollySynthesizer renders speech through Amazon Polly. PCM output is raw
// little-endian samples, mono.
type PollySynthesizer struct {
	client *polly.Client
}

func NewPollySynthesizer(ctx context.Context, cfg PollyConfig) (*PollySynthesizer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &PollySynthesizer{client: polly.NewFromConfig(awsCfg)}, nil
}

func (p *PollySynthesizer) Name() string { return "polly" }

func (p *PollySynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if req.Encoding != EncodingLinear16 && req.Encoding != "" {
		return nil, &SynthesisError{Provider: p.Name(), Detail: fmt.Sprintf("unsupported encoding %q", req.Encoding)}
	}
	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = 8000
	}
	if sampleRate != 8000 && sampleRate != 16000 {
		return nil, &SynthesisError{Provider: p.Name(), Detail: fmt.Sprintf("unsupported sample rate %d", sampleRate)}
	}
	if req.VoiceID == "" {
		return nil, &SynthesisError{Provider: p.Name(), Detail: "voice_id is required"}
	}

	sr := strconv.Itoa(sampleRate)
	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		OutputFormat: types.OutputFormatPcm,
		SampleRate:   &sr,
		Text:         &req.Text,
		VoiceId:      types.VoiceId(req.VoiceID),
	})
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Detail: err.Error(), Retryable: true}
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, &SynthesisError{Provider: p.Name(), Detail: err.Error(), Retryable: true}
	}
	return audio, nil
}
