package voice

import (
	"fmt"
	"strings"

	"github.com/gabacool/bidirectional-voice-claude/internal/config"
)

// Engines bundles the process-wide engine handles. They are built once at
// startup and injected into every session; sessions never reinitialize
// engines.
type Engines struct {
	ASR      ASREngine
	TTS      TTSEngine
	Rewriter Rewriter

	// Provider is the resolved backend name: "local" or "mock".
	Provider string
	Detail   string
}

// ResolveEngines picks engine backends from configuration.
// "local" requires whisper.cpp and piper on this machine; "auto" falls
// back to mock engines when they are missing.
func ResolveEngines(cfg config.Config) (Engines, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	if mode == "" {
		mode = "auto"
	}

	tryLocal := func() (Engines, error) {
		asr, err := NewWhisperEngine(WhisperConfig{
			CLI:       cfg.WhisperCLI,
			ModelPath: cfg.WhisperModelPath,
			Language:  cfg.WhisperLanguage,
			Threads:   cfg.WhisperThreads,
		})
		if err != nil {
			return Engines{}, err
		}
		tts, err := NewPiperEngine(PiperConfig{
			Bin:       cfg.PiperBin,
			VoicePath: cfg.PiperVoicePath,
		})
		if err != nil {
			return Engines{}, err
		}
		return Engines{
			ASR: asr,
			TTS: tts,
			Rewriter: NewVLLMRewriter(VLLMRewriterConfig{
				BaseURL: cfg.VLLMURL,
				Model:   cfg.VLLMModel,
				APIKey:  cfg.VLLMAPIKey,
			}),
			Provider: "local",
			Detail:   "local (whisper.cpp + piper + vllm rewrite)",
		}, nil
	}

	mock := Engines{
		ASR:      NewMockASR(),
		TTS:      NewMockTTS(),
		Rewriter: NewMockRewriter(),
		Provider: "mock",
		Detail:   "mock",
	}

	switch mode {
	case "local":
		return tryLocal()
	case "mock":
		return mock, nil
	case "auto":
		engines, err := tryLocal()
		if err != nil {
			mock.Detail = fmt.Sprintf("mock (local engines unavailable: %v)", err)
			return mock, nil
		}
		return engines, nil
	default:
		return Engines{}, fmt.Errorf("invalid VOICE_PROVIDER: %q (expected auto|local|mock)", cfg.VoiceProvider)
	}
}
