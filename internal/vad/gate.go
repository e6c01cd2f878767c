package vad

import (
	"math"

	"github.com/gabacool/bidirectional-voice-claude/internal/audio"
)

// DefaultThreshold is the RMS energy above which a frame counts as speech,
// on a [-1,1] normalized sample scale.
const DefaultThreshold = 0.005

// Gate classifies short audio frames as speech or silence by RMS energy.
// Frames at or below the threshold are rejected; rejection is routine, not
// an error. ASR engines fed near-silent audio hallucinate short filler
// tokens, so silent frames are dropped before they ever reach the wire.
type Gate struct {
	threshold float64
}

func NewGate(threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{threshold: threshold}
}

func (g *Gate) Threshold() float64 { return g.threshold }

// Classify reports whether the frame carries speech. The boundary is
// exclusive: energy must strictly exceed the threshold.
func (g *Gate) Classify(frame []int16) bool {
	return Energy(frame) > g.threshold
}

// ClassifyPCM16LE is Classify over raw little-endian 16-bit sample bytes,
// the format frames arrive in from the capture device. A trailing odd byte
// is ignored.
func (g *Gate) ClassifyPCM16LE(data []byte) bool {
	return EnergyPCM16LE(data) > g.threshold
}

// Energy computes the RMS energy of a frame on a [-1,1] scale.
func Energy(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// EnergyPCM16LE is Energy over raw little-endian 16-bit sample bytes.
func EnergyPCM16LE(data []byte) float64 {
	return Energy(audio.BytesToSamples(data))
}
