package noise

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownBand is returned for band names outside white, pink and brown.
var ErrUnknownBand = errors.New("unknown noise band")

// Band identifies one noise color.
type Band string

const (
	White Band = "white"
	Pink  Band = "pink"
	Brown Band = "brown"
)

// Bands lists every band in mixer order.
var Bands = [...]Band{White, Pink, Brown}

var bandLabels = map[Band]string{
	White: "Focus",
	Pink:  "Relax",
	Brown: "Deep",
}

// ParseBand validates a band name. Matching ignores case and surrounding
// whitespace.
func ParseBand(name string) (Band, error) {
	b := Band(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := b.index(); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBand, name)
	}
	return b, nil
}

// Label returns the mixer label for the band.
func (b Band) Label() string {
	return bandLabels[b]
}

func (b Band) index() (int, bool) {
	for i, band := range Bands {
		if band == b {
			return i, true
		}
	}
	return 0, false
}

// Volumes is the last requested gain per band.
type Volumes struct {
	White float64 `json:"white"`
	Pink  float64 `json:"pink"`
	Brown float64 `json:"brown"`
}

// Get returns the gain for b, or 0 for an unknown band.
func (v Volumes) Get(b Band) float64 {
	switch b {
	case White:
		return v.White
	case Pink:
		return v.Pink
	case Brown:
		return v.Brown
	}
	return 0
}

func (v *Volumes) set(b Band, gain float64) {
	switch b {
	case White:
		v.White = gain
	case Pink:
		v.Pink = gain
	case Brown:
		v.Brown = gain
	}
}

// ClampGain limits a requested gain to [0,1]. NaN maps to 0.
func ClampGain(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
