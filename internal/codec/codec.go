// Package codec converts between the telephony leg's 8-bit mu-law audio and
// the linear PCM formats the speech providers consume.
package codec

import (
	"encoding/binary"
	"math"
)

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// EncodeMulaw compresses one 16-bit linear sample to 8-bit mu-law.
func EncodeMulaw(sample int16) byte {
	s := int(sample)
	sign := byte(0)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias

	exponent := 7
	for mask := 0x4000; exponent > 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((s >> (uint(exponent) + 3)) & 0x0F)
	return ^(sign | byte(exponent)<<4 | mantissa)
}

// DecodeMulaw expands one 8-bit mu-law byte back to a 16-bit linear sample.
func DecodeMulaw(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	magnitude := ((int(mantissa) << 3) + muLawBias) << uint(exponent)
	magnitude -= muLawBias
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// EncodeMulawBuffer converts little-endian PCM16 bytes to mu-law bytes.
// An odd trailing byte is dropped.
func EncodeMulawBuffer(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		out[i] = EncodeMulaw(s)
	}
	return out
}

// DecodeMulawBuffer converts mu-law bytes to little-endian PCM16 bytes.
func DecodeMulawBuffer(mu []byte) []byte {
	out := make([]byte, len(mu)*2)
	for i, b := range mu {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(DecodeMulaw(b)))
	}
	return out
}

// Downsample2x keeps every other sample. No filtering; the historical
// behavior is preserved because downstream providers tolerate it.
func Downsample2x(samples []int16) []int16 {
	out := make([]int16, 0, (len(samples)+1)/2)
	for i := 0; i < len(samples); i += 2 {
		out = append(out, samples[i])
	}
	return out
}

// Upsample2x repeats each sample once.
func Upsample2x(samples []int16) []int16 {
	out := make([]int16, 0, len(samples)*2)
	for _, s := range samples {
		out = append(out, s, s)
	}
	return out
}

// DownsampleBuffer2x and UpsampleBuffer2x apply the naive resamplers to raw
// little-endian PCM16 bytes. Odd trailing bytes are dropped.
func DownsampleBuffer2x(pcm []byte) []byte {
	return SamplesToBytes(Downsample2x(BytesToSamples(pcm)))
}

func UpsampleBuffer2x(pcm []byte) []byte {
	return SamplesToBytes(Upsample2x(BytesToSamples(pcm)))
}

// BytesToSamples reinterprets little-endian PCM16 bytes as samples, silently
// truncating to a whole-sample boundary.
func BytesToSamples(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// RMS reports the root-mean-square amplitude of a PCM16 buffer, normalized
// into [0, 1]. Used for level visualization only.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(samples))) / 32768.0
}
