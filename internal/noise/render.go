package noise

import (
	"bufio"
	"errors"
	"io"
	"math"
	"time"

	"github.com/satindergrewal/stillroom/internal/audio"
)

var (
	// ErrTooLong is returned when a rendered mix would not fit a WAV file.
	ErrTooLong = errors.New("render duration exceeds WAV size limit")
	// ErrBadDuration is returned for a zero or negative render length.
	ErrBadDuration = errors.New("render duration must be positive")
)

// Render writes d of the mix at vols to w as a WAV file. It drives its own
// offline graph, so it neither needs nor touches the live output.
func Render(w io.Writer, vols Volumes, d time.Duration, cfg Config) error {
	if d <= 0 {
		return ErrBadDuration
	}
	frames := int((d + audio.FrameDuration - 1) / audio.FrameDuration)
	dataSize := int64(frames) * audio.FrameBytes
	if dataSize > math.MaxUint32-36 {
		return ErrTooLong
	}

	g := audio.NewOffline(cfg.Log)
	defer g.Close()
	cfg.Acquire = func() (Graph, error) { return g, nil }
	s := New(cfg)
	defer s.Close()

	for _, b := range Bands {
		if v := vols.Get(b); v > 0 {
			if err := s.SetVolume(b, v); err != nil {
				return err
			}
		}
	}

	bw := bufio.NewWriter(w)
	if err := audio.WriteWAVHeader(bw, uint32(dataSize)); err != nil {
		return err
	}
	for i := 0; i < frames; i++ {
		if _, err := bw.Write(audio.SamplesToBytes(g.RenderFrame())); err != nil {
			return err
		}
	}
	return bw.Flush()
}
