package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gabacool/bidirectional-voice-claude/internal/audio"
)

// PiperConfig configures the piper CLI adapter.
type PiperConfig struct {
	Bin       string
	VoicePath string
	// SampleRate of the voice model's output. Piper medium voices emit
	// 22050 Hz mono PCM16.
	SampleRate int
}

// PiperEngine synthesizes speech by invoking the piper binary once per
// request: text on stdin, headerless PCM16LE on stdout.
type PiperEngine struct {
	binPath    string
	voicePath  string
	sampleRate int
}

func NewPiperEngine(cfg PiperConfig) (*PiperEngine, error) {
	bin := strings.TrimSpace(cfg.Bin)
	if bin == "" {
		bin = "piper"
	}
	binPath, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("piper binary not found (%s)", bin)
	}

	voicePath := strings.TrimSpace(cfg.VoicePath)
	if voicePath == "" {
		return nil, fmt.Errorf("PIPER_VOICE_PATH is required")
	}
	if !filepath.IsAbs(voicePath) {
		if wd, err := os.Getwd(); err == nil {
			voicePath = filepath.Join(wd, voicePath)
		}
	}
	if _, err := os.Stat(voicePath); err != nil {
		return nil, fmt.Errorf("piper voice model not found: %s", voicePath)
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 22050
	}

	return &PiperEngine{
		binPath:    binPath,
		voicePath:  voicePath,
		sampleRate: rate,
	}, nil
}

func (p *PiperEngine) SampleRate() int { return p.sampleRate }

// Synthesize runs piper over the whole text. Piper selects the speaker from
// the voice model file; voiceID is accepted for interface symmetry and
// ignored here.
func (p *PiperEngine) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty text")
	}

	cmd := exec.CommandContext(ctx, p.binPath,
		"--model", p.voicePath,
		"--output-raw",
	)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, context.Canceled
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("piper failed: %s", detail)
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return nil, errors.New("piper produced no audio")
	}
	// Some piper builds ignore --output-raw and emit a WAV container.
	if bytes.HasPrefix(pcm, []byte("RIFF")) {
		raw, _, err := audio.DecodeWAVPCM16LE(pcm)
		if err != nil {
			return nil, fmt.Errorf("piper emitted an unreadable WAV stream: %w", err)
		}
		pcm = raw
	}
	return pcm, nil
}
