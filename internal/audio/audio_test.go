package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
	if got := SamplesFor(FrameDuration); got != FrameSize {
		t.Errorf("SamplesFor(FrameDuration) = %d, want %d", got, FrameSize)
	}
	if got := SamplesFor(2 * time.Second); got != 96000 {
		t.Errorf("SamplesFor(2s) = %d, want 96000", got)
	}
}

// --- Smoothstep ---

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		got := Smoothstep(tt.input)
		if got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSmoothstepMonotonic(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 100; i++ {
		x := float64(i) / 100.0
		val := Smoothstep(x)
		if val < prev {
			t.Errorf("Smoothstep not monotonic: f(%v)=%v < f(%v)=%v", x, val, float64(i-1)/100.0, prev)
		}
		prev = val
	}
}

// --- Ramp ---

func TestRampReachesTargetInDuration(t *testing.T) {
	r := NewRamp(DefaultRampDuration)
	r.SetTarget(0.8)

	n := SamplesFor(DefaultRampDuration)
	for i := 0; i < n-1; i++ {
		r.Next()
	}
	if r.Settled() {
		t.Fatal("ramp settled before its duration elapsed")
	}
	if got := r.Next(); got != 0.8 {
		t.Errorf("gain after %d samples = %v, want 0.8", n, got)
	}
	if !r.Settled() {
		t.Error("ramp should be settled after its duration")
	}
	if got := r.Next(); got != 0.8 {
		t.Errorf("settled ramp drifted to %v", got)
	}
}

func TestRampMonotonicTowardTarget(t *testing.T) {
	r := NewRamp(10 * time.Millisecond)
	r.SetTarget(1)
	prev := r.Value()
	for !r.Settled() {
		g := r.Next()
		if g < prev {
			t.Fatalf("rising ramp went down: %v -> %v", prev, g)
		}
		prev = g
	}
}

func TestRampRedirectIsContinuous(t *testing.T) {
	r := NewRamp(10 * time.Millisecond)
	r.SetTarget(1)
	for i := 0; i < SamplesFor(5*time.Millisecond); i++ {
		r.Next()
	}
	mid := r.Value()
	if mid <= 0 || mid >= 1 {
		t.Fatalf("mid-ramp gain = %v, want strictly between 0 and 1", mid)
	}

	r.SetTarget(0)
	first := r.Next()
	// One sample step of a 480-sample smoothstep is tiny.
	if diff := mid - first; diff < 0 || diff > 0.01 {
		t.Errorf("redirect jumped from %v to %v", mid, first)
	}
	prev := first
	for !r.Settled() {
		g := r.Next()
		if g > prev {
			t.Fatalf("falling ramp went up: %v -> %v", prev, g)
		}
		prev = g
	}
	if r.Value() != 0 || r.Target() != 0 {
		t.Errorf("redirected ramp ended at %v (target %v), want 0", r.Value(), r.Target())
	}
}

// --- MixToPCM ---

func TestMixToPCMDuplicatesChannels(t *testing.T) {
	pcm := MixToPCM([]float32{0.5, -0.5}, 2)
	want := []int16{16383, 16383, -16383, -16383}
	if len(pcm) != len(want) {
		t.Fatalf("len = %d, want %d", len(pcm), len(want))
	}
	for i := range want {
		if pcm[i] != want[i] {
			t.Errorf("pcm[%d] = %d, want %d", i, pcm[i], want[i])
		}
	}
}

func TestMixToPCMClipping(t *testing.T) {
	pcm := MixToPCM([]float32{3, -3}, 1)
	if pcm[0] != 32767 {
		t.Errorf("positive overflow: got %d, want 32767", pcm[0])
	}
	if pcm[1] != -32768 {
		t.Errorf("negative overflow: got %d, want -32768", pcm[1])
	}
}

// --- SamplesToBytes / WAV ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

func TestWriteWAVHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAVHeader(&buf, 1000); err != nil {
		t.Fatalf("WriteWAVHeader: %v", err)
	}
	hdr := buf.Bytes()
	if len(hdr) != 44 {
		t.Fatalf("header length = %d, want 44", len(hdr))
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" || string(hdr[36:40]) != "data" {
		t.Errorf("bad chunk ids: %q %q %q", hdr[0:4], hdr[8:12], hdr[36:40])
	}
	if got := binary.LittleEndian.Uint32(hdr[4:]); got != 1036 {
		t.Errorf("RIFF size = %d, want 1036", got)
	}
	if got := binary.LittleEndian.Uint32(hdr[24:]); got != SampleRate {
		t.Errorf("sample rate = %d, want %d", got, SampleRate)
	}
	if got := binary.LittleEndian.Uint16(hdr[22:]); got != Channels {
		t.Errorf("channels = %d, want %d", got, Channels)
	}
}

func TestWriteWAVHeaderStreaming(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAVHeader(&buf, StreamingDataSize); err != nil {
		t.Fatalf("WriteWAVHeader: %v", err)
	}
	if got := binary.LittleEndian.Uint32(buf.Bytes()[4:]); got != StreamingDataSize {
		t.Errorf("streaming RIFF size = %#x, want %#x", got, uint32(StreamingDataSize))
	}
}
