package audio

import (
	"bytes"
	"testing"
)

func TestExtractPCMUnwrapsEncodedWAV(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	wav, err := EncodeWAVPCM16LE(pcm, 8000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}

	got, unwrapped := ExtractPCM(wav)
	if !unwrapped {
		t.Fatal("ExtractPCM() did not detect WAV container")
	}
	if !bytes.Equal(got, pcm) {
		t.Fatalf("ExtractPCM() = %v, want %v", got, pcm)
	}
}

func TestExtractPCMPassesThroughRawAudio(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAB}, 320)
	got, unwrapped := ExtractPCM(raw)
	if unwrapped {
		t.Fatal("ExtractPCM() claimed to unwrap raw bytes")
	}
	if !bytes.Equal(got, raw) {
		t.Fatal("ExtractPCM() modified raw bytes")
	}
}

func TestExtractPCMShortInput(t *testing.T) {
	got, unwrapped := ExtractPCM([]byte("RIFF"))
	if unwrapped || string(got) != "RIFF" {
		t.Fatal("short input must pass through unchanged")
	}
}
