package audio

import (
	"encoding/binary"
	"io"
)

// MixToPCM converts a mono float mix in [-1,1] to interleaved int16 frames
// with every channel carrying the same signal. Out-of-range samples clip.
func MixToPCM(mix []float32, channels int) []int16 {
	if channels < 1 {
		channels = 1
	}
	result := make([]int16, len(mix)*channels)
	for i, v := range mix {
		s := float64(v) * 32767
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		for c := 0; c < channels; c++ {
			result[i*channels+c] = int16(s)
		}
	}
	return result
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// StreamingDataSize marks a WAV stream of unknown length.
const StreamingDataSize = 0xFFFFFFFF

// WriteWAVHeader writes a 44-byte PCM WAV header for the graph's format.
// Pass StreamingDataSize when the length is not known up front.
func WriteWAVHeader(w io.Writer, dataSize uint32) error {
	const headerRest = 36
	riffSize := uint32(StreamingDataSize)
	if dataSize != StreamingDataSize {
		riffSize = dataSize + headerRest
	}
	blockAlign := uint16(Channels * BitDepth / 8)

	var hdr [44]byte
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], riffSize)
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:], Channels)
	binary.LittleEndian.PutUint32(hdr[24:], SampleRate)
	binary.LittleEndian.PutUint32(hdr[28:], SampleRate*uint32(blockAlign))
	binary.LittleEndian.PutUint16(hdr[32:], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:], BitDepth)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], dataSize)

	_, err := w.Write(hdr[:])
	return err
}
