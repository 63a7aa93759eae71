// Package protocol defines the telephony provider's media-stream wire frames.
// The shape is dictated by the provider; this package only parses and emits it.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies media-stream frame variants.
type EventType string

const (
	EventConnected EventType = "connected"
	EventStart     EventType = "start"
	EventMedia     EventType = "media"
	EventStop      EventType = "stop"
	EventMark      EventType = "mark"
	EventClear     EventType = "clear"
)

var ErrUnsupportedEvent = errors.New("unsupported media stream event")

type Envelope struct {
	Event EventType `json:"event"`
}

// ConnectedFrame is the first frame after the socket opens.
type ConnectedFrame struct {
	Event    EventType `json:"event"`
	Protocol string    `json:"protocol,omitempty"`
	Version  string    `json:"version,omitempty"`
}

// StartFrame binds the stream to a call.
type StartFrame struct {
	Event          EventType `json:"event"`
	SequenceNumber string    `json:"sequenceNumber,omitempty"`
	StreamSID      string    `json:"streamSid"`
	Start          StartMeta `json:"start"`
}

type StartMeta struct {
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	StreamSID        string            `json:"streamSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaFrame carries one base64 audio chunk in either direction.
type MediaFrame struct {
	Event     EventType    `json:"event"`
	StreamSID string       `json:"streamSid"`
	Media     MediaPayload `json:"media"`
}

type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopFrame ends the stream.
type StopFrame struct {
	Event     EventType `json:"event"`
	StreamSID string    `json:"streamSid"`
	Stop      StopMeta  `json:"stop"`
}

type StopMeta struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// MarkFrame is sent after outbound audio and echoed back once playback of the
// preceding media has completed.
type MarkFrame struct {
	Event     EventType `json:"event"`
	StreamSID string    `json:"streamSid"`
	Mark      MarkName  `json:"mark"`
}

type MarkName struct {
	Name string `json:"name"`
}

// ClearFrame asks the provider to discard buffered outbound audio.
type ClearFrame struct {
	Event     EventType `json:"event"`
	StreamSID string    `json:"streamSid"`
}

// ParseFrame decodes one inbound media-stream frame into its typed variant.
func ParseFrame(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Event {
	case EventConnected:
		var f ConnectedFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return f, nil
	case EventStart:
		var f StartFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		if f.Start.CallSID == "" {
			return nil, errors.New("start frame missing callSid")
		}
		if f.StreamSID == "" {
			f.StreamSID = f.Start.StreamSID
		}
		return f, nil
	case EventMedia:
		var f MediaFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		if f.Media.Payload == "" {
			return nil, errors.New("media frame missing payload")
		}
		return f, nil
	case EventStop:
		var f StopFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return f, nil
	case EventMark:
		var f MarkFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, ErrUnsupportedEvent
	}
}

// NewMediaFrame builds an outbound audio frame.
func NewMediaFrame(streamSID, payloadBase64 string) MediaFrame {
	return MediaFrame{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     MediaPayload{Payload: payloadBase64},
	}
}

// NewMarkFrame builds an end-of-utterance marker.
func NewMarkFrame(streamSID, name string) MarkFrame {
	return MarkFrame{
		Event:     EventMark,
		StreamSID: streamSID,
		Mark:      MarkName{Name: name},
	}
}

// NewClearFrame builds a buffered-audio flush request, used on barge-in.
func NewClearFrame(streamSID string) ClearFrame {
	return ClearFrame{Event: EventClear, StreamSID: streamSID}
}
