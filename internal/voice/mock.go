package voice

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/gabacool/bidirectional-voice-claude/internal/audio"
)

// Mock engines back the "mock" provider mode: a fully offline deployment
// used for demos and development machines without whisper/piper installed.

type MockASR struct{}

func NewMockASR() *MockASR { return &MockASR{} }

func (m *MockASR) Transcribe(_ context.Context, pcm16le []byte, _ int) (string, error) {
	if len(pcm16le) == 0 {
		return "", nil
	}
	return "simulated voice input" + EOUMarker, nil
}

type MockTTS struct {
	rate int
}

func NewMockTTS() *MockTTS { return &MockTTS{rate: 16000} }

func (m *MockTTS) SampleRate() int { return m.rate }

// Synthesize emits 20ms of ramp audio per input rune, so output length
// tracks text length the way a real engine's roughly does.
func (m *MockTTS) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	runes := utf8.RuneCountInString(strings.TrimSpace(text))
	if runes == 0 {
		runes = 1
	}
	samplesPerRune := m.rate / 50
	samples := make([]int16, runes*samplesPerRune)
	for i := range samples {
		samples[i] = int16(i % 4096)
	}
	return audio.SamplesToBytes(samples), nil
}

type MockRewriter struct{}

func NewMockRewriter() *MockRewriter { return &MockRewriter{} }

func (m *MockRewriter) Rewrite(_ context.Context, text, _ string) (string, error) {
	out := SanitizeForSpeech(text)
	const maxRunes = 160
	runes := []rune(out)
	if len(runes) > maxRunes {
		out = strings.TrimSpace(string(runes[:maxRunes]))
	}
	if out == "" {
		out = "There was nothing worth reading aloud."
	}
	return out, nil
}
