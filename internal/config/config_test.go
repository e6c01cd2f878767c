package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8087" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8087")
	}
	if cfg.SampleRate != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", cfg.SampleRate)
	}
	if cfg.VADThreshold != 0.005 {
		t.Fatalf("VADThreshold = %v, want 0.005", cfg.VADThreshold)
	}
	if cfg.RewriteMaxChars != 200 {
		t.Fatalf("RewriteMaxChars = %d, want 200", cfg.RewriteMaxChars)
	}
	if cfg.SessionIdleTimeout != 45*time.Second {
		t.Fatalf("SessionIdleTimeout = %v, want 45s", cfg.SessionIdleTimeout)
	}
	if cfg.VoiceProvider != "auto" {
		t.Fatalf("VoiceProvider = %q, want %q", cfg.VoiceProvider, "auto")
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOICED_BIND_ADDR", ":9999")
	t.Setenv("VOICED_SESSION_IDLE_TIMEOUT", "30s")
	t.Setenv("VAD_THRESHOLD", "0.02")
	t.Setenv("VOICED_REWRITE_MAX_CHARS", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9999" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9999")
	}
	if cfg.SessionIdleTimeout != 30*time.Second {
		t.Fatalf("SessionIdleTimeout = %v, want 30s", cfg.SessionIdleTimeout)
	}
	if cfg.VADThreshold != 0.02 {
		t.Fatalf("VADThreshold = %v, want 0.02", cfg.VADThreshold)
	}
	if cfg.RewriteMaxChars != 120 {
		t.Fatalf("RewriteMaxChars = %d, want 120", cfg.RewriteMaxChars)
	}
}

func TestLoadRejectsTinyIdleTimeout(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOICED_SESSION_IDLE_TIMEOUT", "1s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for idle timeout below 5s")
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VAD_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for VAD threshold outside (0,1)")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"VOICED_BIND_ADDR",
		"VOICED_METRICS_NAMESPACE",
		"VOICED_SHUTDOWN_TIMEOUT",
		"VOICED_SESSION_IDLE_TIMEOUT",
		"VOICED_SAMPLE_RATE",
		"VOICED_STREAM_CHUNK_BYTES",
		"VOICED_REWRITE_MAX_CHARS",
		"VOICED_ALLOW_ANY_ORIGIN",
		"VAD_THRESHOLD",
		"CAPTURE_FRAME_MS",
		"VOICE_PROVIDER",
		"WHISPER_CLI",
		"WHISPER_MODEL_PATH",
		"WHISPER_LANGUAGE",
		"WHISPER_THREADS",
		"PIPER_BIN",
		"PIPER_VOICE_PATH",
		"PIPER_VOICE_ID",
		"VLLM_URL",
		"VLLM_MODEL",
		"VLLM_API_KEY",
		"DICTATE_SERVER_URL",
		"SPEAK_SERVER_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
