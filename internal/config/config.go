package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice session service and
// its clients.
type Config struct {
	BindAddr           string
	ShutdownTimeout    time.Duration
	SessionIdleTimeout time.Duration
	MetricsNamespace   string
	AllowAnyOrigin     bool

	// Session audio parameters. The sample rate is fixed per deployment;
	// every session on this server speaks 16-bit mono PCM at this rate.
	SampleRate       int
	StreamChunkBytes int

	// Rewrite policy defaults for speech sessions.
	RewriteMaxChars int

	// Client-side capture.
	VADThreshold   float64
	CaptureFrameMS int

	// Engine backends.
	VoiceProvider string

	WhisperCLI       string
	WhisperModelPath string
	WhisperLanguage  string
	WhisperThreads   int

	PiperBin       string
	PiperVoicePath string
	PiperVoiceID   string

	VLLMURL    string
	VLLMModel  string
	VLLMAPIKey string

	// Client endpoints.
	TranscribeURL string
	SpeakURL      string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("VOICED_BIND_ADDR", ":8087"),
		MetricsNamespace: envOrDefault("VOICED_METRICS_NAMESPACE", "voiced"),
		VoiceProvider:    envOrDefault("VOICE_PROVIDER", "auto"),
		WhisperCLI:       envOrDefault("WHISPER_CLI", "whisper-cli"),
		WhisperModelPath: envOrDefault("WHISPER_MODEL_PATH", ".models/whisper/ggml-base.bin"),
		WhisperLanguage:  envOrDefault("WHISPER_LANGUAGE", "en"),
		// 0 means "auto" (picked from CPU count).
		WhisperThreads: 0,
		PiperBin:       envOrDefault("PIPER_BIN", "piper"),
		PiperVoicePath: envOrDefault("PIPER_VOICE_PATH", ".models/piper/en_US-lessac-medium.onnx"),
		PiperVoiceID:   envOrDefault("PIPER_VOICE_ID", "lessac"),
		// vLLM exposes an OpenAI-compatible chat completions API.
		VLLMURL:    envOrDefault("VLLM_URL", "http://localhost:8086/v1"),
		VLLMModel:  strings.TrimSpace(os.Getenv("VLLM_MODEL")),
		VLLMAPIKey: strings.TrimSpace(os.Getenv("VLLM_API_KEY")),

		TranscribeURL: envOrDefault("DICTATE_SERVER_URL", "ws://localhost:8087/v1/transcribe/ws"),
		SpeakURL:      envOrDefault("SPEAK_SERVER_URL", "ws://localhost:8087/v1/speak/ws"),

		ShutdownTimeout:    15 * time.Second,
		SessionIdleTimeout: 45 * time.Second,
		SampleRate:         16000,
		StreamChunkBytes:   32768,
		RewriteMaxChars:    200,
		VADThreshold:       0.005,
		CaptureFrameMS:     100,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("VOICED_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionIdleTimeout, err = durationFromEnv("VOICED_SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SampleRate, err = intFromEnv("VOICED_SAMPLE_RATE", cfg.SampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.StreamChunkBytes, err = intFromEnv("VOICED_STREAM_CHUNK_BYTES", cfg.StreamChunkBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.RewriteMaxChars, err = intFromEnv("VOICED_REWRITE_MAX_CHARS", cfg.RewriteMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.VADThreshold, err = floatFromEnv("VAD_THRESHOLD", cfg.VADThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.CaptureFrameMS, err = intFromEnv("CAPTURE_FRAME_MS", cfg.CaptureFrameMS)
	if err != nil {
		return Config{}, err
	}
	cfg.WhisperThreads, err = intFromEnv("WHISPER_THREADS", cfg.WhisperThreads)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("VOICED_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionIdleTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("VOICED_SESSION_IDLE_TIMEOUT must be at least 5s")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("VOICED_SAMPLE_RATE must be positive")
	}
	if cfg.StreamChunkBytes <= 0 {
		return Config{}, fmt.Errorf("VOICED_STREAM_CHUNK_BYTES must be positive")
	}
	if cfg.RewriteMaxChars <= 0 {
		return Config{}, fmt.Errorf("VOICED_REWRITE_MAX_CHARS must be positive")
	}
	if cfg.VADThreshold <= 0 || cfg.VADThreshold >= 1 {
		return Config{}, fmt.Errorf("VAD_THRESHOLD must be in (0,1)")
	}
	if cfg.CaptureFrameMS <= 0 {
		return Config{}, fmt.Errorf("CAPTURE_FRAME_MS must be positive")
	}
	if cfg.WhisperThreads < 0 {
		return Config{}, fmt.Errorf("WHISPER_THREADS must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
