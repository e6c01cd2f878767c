package voice

import "context"

// EOUMarker is the end-of-utterance token some ASR engines append to their
// output. Sessions strip it before exposing a transcript.
const EOUMarker = "<EOU>"

// ASREngine turns one complete utterance into text. The returned text may
// carry a trailing EOUMarker. Implementations are shared across sessions,
// initialized once at process start, and must be safe for concurrent use.
type ASREngine interface {
	Transcribe(ctx context.Context, pcm16le []byte, sampleRate int) (string, error)
}

// TTSEngine synthesizes one block of text into PCM16LE mono audio at the
// engine's native sample rate.
type TTSEngine interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
	// SampleRate reports the rate of the PCM Synthesize produces.
	SampleRate() int
}

// Rewriter condenses long or technical text into something worth speaking.
// A rewriter failure is never session-fatal; callers fall back to a local
// cleanup of the original text.
type Rewriter interface {
	Rewrite(ctx context.Context, text, instruction string) (string, error)
}

// RewritePolicy decides whether a speech request needs a rewrite before
// synthesis. It is a heuristic gate, replaceable without touching the
// session machinery.
type RewritePolicy func(text string) bool

// State tags the progress of a session. Sessions only move forward.
type State string

const (
	StateOpen         State = "open"
	StateAccumulating State = "accumulating"
	StateFinalizing   State = "finalizing"
	StateDeciding     State = "deciding"
	StateRewriting    State = "rewriting"
	StateSynthesizing State = "synthesizing"
	StateStreaming    State = "streaming"
	StateDone         State = "done"
	StateFailed       State = "failed"
)
