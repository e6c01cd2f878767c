package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabacool/bidirectional-voice-claude/internal/audio"
	"github.com/gabacool/bidirectional-voice-claude/internal/observability"
	"github.com/gabacool/bidirectional-voice-claude/internal/protocol"
)

// RewriteInstruction is the fixed contract handed to the rewriter: turn a
// terminal response into something short enough to listen to.
const RewriteInstruction = `Summarize this terminal response for spoken output.
Rules:
- Convert code blocks to brief descriptions like "I wrote a Python function that does X"
- Skip ASCII diagrams, just describe what they show in one sentence
- Keep it conversational, 2-4 sentences max
- No markdown formatting, code syntax, or special characters in output
- Speak naturally as if explaining to someone verbally`

// SpeakConfig carries the per-deployment knobs of a speech session.
type SpeakConfig struct {
	IdleTimeout    time.Duration
	ChunkBytes     int
	DefaultVoiceID string
	Policy         RewritePolicy
	OnState        func(State)
}

// SpeakSession is the server side of one speech connection: one text
// payload in, one ordered stream of synthesized audio chunks out. The text
// is optionally rewritten first; a rewrite failure degrades to a local
// cleanup of the original text rather than failing the session.
type SpeakSession struct {
	tts      TTSEngine
	rewriter Rewriter
	metrics  *observability.Metrics
	cfg      SpeakConfig

	state State
}

func NewSpeakSession(tts TTSEngine, rewriter Rewriter, metrics *observability.Metrics, cfg SpeakConfig) *SpeakSession {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 45 * time.Second
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = 32768
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultRewritePolicy(DefaultRewriteMaxChars)
	}
	return &SpeakSession{
		tts:      tts,
		rewriter: rewriter,
		metrics:  metrics,
		cfg:      cfg,
		state:    StateOpen,
	}
}

func (s *SpeakSession) State() State { return s.state }

// Run waits for the text command, then rewrites, synthesizes, and streams.
// Each stream puts exactly one of audio-end or error on the wire, except
// connection loss, which the client can already tell apart. After a clean
// stream the loop keeps reading so a second text is answered with a
// protocol violation instead of sitting unread until disconnect.
func (s *SpeakSession) Run(ctx context.Context, inbound <-chan any, outbound chan<- any) error {
	idle := time.NewTimer(s.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			if s.state == StateDone {
				continue
			}
			s.fail(ctx, outbound, protocol.KindTimeout,
				fmt.Sprintf("no activity for %s", s.cfg.IdleTimeout))
			return ErrIdleTimeout
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			resetIdle(idle, s.cfg.IdleTimeout)

			switch m := msg.(type) {
			case protocol.Text:
				if s.state == StateDone {
					err := errors.New("second text on a completed speech session")
					send(ctx, outbound, protocol.NewError(protocol.KindProtocolViolation, err.Error()))
					return err
				}
				if err := s.speak(ctx, outbound, m); err != nil {
					return err
				}
				// Stream delivered. Stop the idle clock: the client decides
				// when to hang up.
				idle.Stop()
			case protocol.Ping:
				send(ctx, outbound, protocol.Pong{Command: protocol.CommandPong})
			case []byte:
				err := errors.New("binary frame on speech session")
				s.fail(ctx, outbound, protocol.KindProtocolViolation, err.Error())
				return err
			case error:
				// The transport forwards unparseable control frames as errors.
				s.fail(ctx, outbound, protocol.KindProtocolViolation, m.Error())
				return m
			default:
				err := fmt.Errorf("unexpected message %T on speech session", m)
				s.fail(ctx, outbound, protocol.KindProtocolViolation, err.Error())
				return err
			}
		}
	}
}

func (s *SpeakSession) speak(ctx context.Context, outbound chan<- any, req protocol.Text) error {
	s.setState(StateDeciding)

	speechText := req.Text
	if !req.SkipRewrite && s.cfg.Policy(req.Text) {
		s.setState(StateRewriting)
		rewritten, err := s.rewriter.Rewrite(ctx, req.Text, RewriteInstruction)
		if err != nil {
			// Degrade, don't fail: speak a locally cleaned-up version of
			// the original instead.
			s.metrics.EngineErrors.WithLabelValues("rewrite", string(protocol.KindEngineFailure)).Inc()
			speechText = SanitizeForSpeech(req.Text)
		} else {
			speechText = rewritten
		}
	} else {
		speechText = StripLightMarkdown(speechText)
	}

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = s.cfg.DefaultVoiceID
	}

	s.setState(StateSynthesizing)
	start := time.Now()
	pcm, err := s.tts.Synthesize(ctx, speechText, voiceID)
	if err != nil {
		s.metrics.EngineErrors.WithLabelValues("tts", string(protocol.KindEngineFailure)).Inc()
		s.fail(ctx, outbound, protocol.KindEngineFailure, err.Error())
		return fmt.Errorf("synthesize: %w", err)
	}
	s.metrics.ObserveSynthesisLatency(time.Since(start))

	s.setState(StateStreaming)
	startMsg := protocol.AudioStart{
		Command: protocol.CommandAudioStart,
		Format:  fmt.Sprintf("pcm_%d", s.tts.SampleRate()),
		Size:    len(pcm),
		Text:    speechText,
	}
	if !send(ctx, outbound, startMsg) {
		return ctx.Err()
	}

	chunks := audio.SplitChunks(pcm, s.cfg.ChunkBytes)
	for _, chunk := range chunks {
		if !send(ctx, outbound, chunk) {
			return ctx.Err()
		}
	}
	s.metrics.StreamedAudioBytes.Add(float64(len(pcm)))

	if !send(ctx, outbound, protocol.AudioEnd{Command: protocol.CommandAudioEnd, Chunks: len(chunks)}) {
		return ctx.Err()
	}
	s.setState(StateDone)
	return nil
}

func (s *SpeakSession) fail(ctx context.Context, outbound chan<- any, kind protocol.ErrorKind, message string) {
	s.setState(StateFailed)
	send(ctx, outbound, protocol.NewError(kind, message))
}

func (s *SpeakSession) setState(next State) {
	// Done is terminal; late traffic must not drag the state backward.
	if s.state == next || s.state == StateDone {
		return
	}
	s.state = next
	if s.cfg.OnState != nil {
		s.cfg.OnState(next)
	}
}
