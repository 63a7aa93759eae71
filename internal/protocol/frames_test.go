package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseFrameStart(t *testing.T) {
	raw := []byte(`{
		"event": "start",
		"sequenceNumber": "1",
		"streamSid": "MZ123",
		"start": {
			"accountSid": "AC1",
			"callSid": "CA1",
			"streamSid": "MZ123",
			"tracks": ["inbound"],
			"mediaFormat": {"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1},
			"customParameters": {"account_id": "acct-1"}
		}
	}`)

	parsed, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	f, ok := parsed.(StartFrame)
	if !ok {
		t.Fatalf("ParseFrame() = %T, want StartFrame", parsed)
	}
	if f.Start.CallSID != "CA1" || f.StreamSID != "MZ123" {
		t.Fatalf("unexpected start frame: %+v", f)
	}
	if f.Start.MediaFormat.SampleRate != 8000 {
		t.Fatalf("sample rate = %d, want 8000", f.Start.MediaFormat.SampleRate)
	}
	if f.Start.CustomParameters["account_id"] != "acct-1" {
		t.Fatalf("custom parameters not parsed: %+v", f.Start.CustomParameters)
	}
}

func TestParseFrameStartWithoutCallSID(t *testing.T) {
	if _, err := ParseFrame([]byte(`{"event":"start","streamSid":"MZ1","start":{}}`)); err == nil {
		t.Fatal("ParseFrame() accepted start frame without callSid")
	}
}

func TestParseFrameMedia(t *testing.T) {
	raw := []byte(`{"event":"media","streamSid":"MZ1","media":{"track":"inbound","chunk":"2","timestamp":"40","payload":"AAAA"}}`)
	parsed, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	f, ok := parsed.(MediaFrame)
	if !ok {
		t.Fatalf("ParseFrame() = %T, want MediaFrame", parsed)
	}
	if f.Media.Payload != "AAAA" {
		t.Fatalf("payload = %q", f.Media.Payload)
	}
}

func TestParseFrameMediaWithoutPayload(t *testing.T) {
	if _, err := ParseFrame([]byte(`{"event":"media","streamSid":"MZ1","media":{}}`)); err == nil {
		t.Fatal("ParseFrame() accepted media frame without payload")
	}
}

func TestParseFrameStopAndMark(t *testing.T) {
	parsed, err := ParseFrame([]byte(`{"event":"stop","streamSid":"MZ1","stop":{"callSid":"CA1"}}`))
	if err != nil {
		t.Fatalf("ParseFrame(stop) error = %v", err)
	}
	if f := parsed.(StopFrame); f.Stop.CallSID != "CA1" {
		t.Fatalf("stop frame = %+v", f)
	}

	parsed, err = ParseFrame([]byte(`{"event":"mark","streamSid":"MZ1","mark":{"name":"utt-1"}}`))
	if err != nil {
		t.Fatalf("ParseFrame(mark) error = %v", err)
	}
	if f := parsed.(MarkFrame); f.Mark.Name != "utt-1" {
		t.Fatalf("mark frame = %+v", f)
	}
}

func TestParseFrameUnsupported(t *testing.T) {
	if _, err := ParseFrame([]byte(`{"event":"dtmf"}`)); !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("ParseFrame(dtmf) error = %v, want ErrUnsupportedEvent", err)
	}
}

func TestOutboundFrameShape(t *testing.T) {
	data, err := json.Marshal(NewMediaFrame("MZ9", "cGNt"))
	if err != nil {
		t.Fatalf("marshal media frame: %v", err)
	}
	want := `{"event":"media","streamSid":"MZ9","media":{"payload":"cGNt"}}`
	if string(data) != want {
		t.Fatalf("media frame json = %s, want %s", data, want)
	}

	data, _ = json.Marshal(NewClearFrame("MZ9"))
	if string(data) != `{"event":"clear","streamSid":"MZ9"}` {
		t.Fatalf("clear frame json = %s", data)
	}
}
