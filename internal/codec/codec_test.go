package codec

import (
	"math"
	"testing"
)

func TestMulawRoundTripQuantizationBound(t *testing.T) {
	// Mu-law segment steps grow with magnitude; the widest segment quantizes
	// in steps of 1024, and clipped samples near full scale land within ~650.
	const bound = 1024
	for s := math.MinInt16; s <= math.MaxInt16; s++ {
		sample := int16(s)
		decoded := DecodeMulaw(EncodeMulaw(sample))
		diff := int(sample) - int(decoded)
		if diff < 0 {
			diff = -diff
		}
		if diff > bound {
			t.Fatalf("round trip error for %d: got %d, diff %d > %d", sample, decoded, diff, bound)
		}
	}
}

func TestMulawSmallSamplesExact(t *testing.T) {
	for _, s := range []int16{0, 1, -1, 2, -2, 3, -3} {
		decoded := DecodeMulaw(EncodeMulaw(s))
		diff := int(s) - int(decoded)
		if diff < -4 || diff > 4 {
			t.Fatalf("small sample %d decoded to %d", s, decoded)
		}
	}
}

func TestResampleIdempotence(t *testing.T) {
	in := make([]int16, 320)
	for i := range in {
		in[i] = int16(i*101 - 16000)
	}

	down := Downsample2x(in)
	if len(down) != 160 {
		t.Fatalf("downsample length = %d, want 160", len(down))
	}
	up := Upsample2x(down)
	if len(up) != len(in) {
		t.Fatalf("upsample length = %d, want %d", len(up), len(in))
	}
	// Every other original sample survives exactly.
	for i := 0; i < len(in); i += 2 {
		if up[i] != in[i] {
			t.Fatalf("sample %d: got %d, want %d", i, up[i], in[i])
		}
	}
}

func TestBufferConversionTruncatesOddLength(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	samples := BytesToSamples(pcm)
	if len(samples) != 2 {
		t.Fatalf("samples = %d, want 2 (trailing byte dropped)", len(samples))
	}
	mu := EncodeMulawBuffer(pcm)
	if len(mu) != 2 {
		t.Fatalf("mulaw bytes = %d, want 2", len(mu))
	}
}

func TestRMSRange(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", got)
	}
	quiet := RMS(make([]int16, 160))
	if quiet != 0 {
		t.Fatalf("RMS(silence) = %v, want 0", quiet)
	}
	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = math.MaxInt16
	}
	if got := RMS(loud); got < 0.99 || got > 1.0 {
		t.Fatalf("RMS(full scale) = %v, want ~1", got)
	}
}

func TestMulawBufferRoundTripLength(t *testing.T) {
	pcm := SamplesToBytes([]int16{0, 1000, -1000, 30000, -30000})
	mu := EncodeMulawBuffer(pcm)
	back := DecodeMulawBuffer(mu)
	if len(back) != len(pcm) {
		t.Fatalf("round trip length = %d, want %d", len(back), len(pcm))
	}
}
