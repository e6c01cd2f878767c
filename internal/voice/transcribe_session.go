package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabacool/bidirectional-voice-claude/internal/observability"
	"github.com/gabacool/bidirectional-voice-claude/internal/protocol"
)

var ErrIdleTimeout = errors.New("session idle timeout")

// TranscribeConfig carries the per-deployment knobs of a transcription
// session.
type TranscribeConfig struct {
	SampleRate  int
	IdleTimeout time.Duration
	// OnState, when set, observes forward state transitions (used by the
	// server to keep the session registry current).
	OnState func(State)
}

// TranscribeSession is the server side of one transcription connection.
// It accumulates gated audio frames into a single buffer and calls the ASR
// engine exactly once, at finalize. Transcribing chunk by chunk starves the
// engine of context and fragments the text, so partial transcription is
// deliberately not offered.
type TranscribeSession struct {
	engine  ASREngine
	metrics *observability.Metrics
	cfg     TranscribeConfig

	state  State
	buf    []byte
	frames int
}

func NewTranscribeSession(engine ASREngine, metrics *observability.Metrics, cfg TranscribeConfig) *TranscribeSession {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 45 * time.Second
	}
	return &TranscribeSession{
		engine:  engine,
		metrics: metrics,
		cfg:     cfg,
		state:   StateOpen,
	}
}

func (s *TranscribeSession) State() State { return s.state }

// Run drives the session until it produces a result, fails, or the peer
// goes away. Inbound elements are raw PCM frames ([]byte) or parsed control
// messages; outbound receives control messages to write to the wire.
// Closing inbound before finalize aborts the session: the buffer is
// discarded and the engine is never called.
func (s *TranscribeSession) Run(ctx context.Context, inbound <-chan any, outbound chan<- any) error {
	idle := time.NewTimer(s.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			s.fail(ctx, outbound, protocol.KindTimeout,
				fmt.Sprintf("no activity for %s", s.cfg.IdleTimeout))
			return ErrIdleTimeout
		case msg, ok := <-inbound:
			if !ok {
				// Client aborted before finalize. Drop the partial buffer.
				return nil
			}
			resetIdle(idle, s.cfg.IdleTimeout)

			switch m := msg.(type) {
			case []byte:
				s.setState(StateAccumulating)
				s.buf = append(s.buf, m...)
				s.frames++
				s.metrics.AcceptedFrames.Inc()
			case protocol.Finalize:
				// Run returns here, so a session finalizes at most once.
				return s.finalize(ctx, outbound)
			case protocol.Ping:
				send(ctx, outbound, protocol.Pong{Command: protocol.CommandPong})
			case error:
				// The transport forwards unparseable control frames as errors.
				s.fail(ctx, outbound, protocol.KindProtocolViolation, m.Error())
				return m
			default:
				err := fmt.Errorf("unexpected message %T on transcription session", m)
				s.fail(ctx, outbound, protocol.KindProtocolViolation, err.Error())
				return err
			}
		}
	}
}

func (s *TranscribeSession) finalize(ctx context.Context, outbound chan<- any) error {
	s.setState(StateFinalizing)

	// A silence-only session is a valid outcome, not a fault; skip the
	// engine entirely.
	if len(s.buf) == 0 {
		s.setState(StateDone)
		send(ctx, outbound, protocol.NewResult(""))
		return nil
	}

	start := time.Now()
	raw, err := s.engine.Transcribe(ctx, s.buf, s.cfg.SampleRate)
	if err != nil {
		s.metrics.EngineErrors.WithLabelValues("asr", string(protocol.KindEngineFailure)).Inc()
		s.fail(ctx, outbound, protocol.KindEngineFailure, err.Error())
		return fmt.Errorf("transcribe: %w", err)
	}
	s.metrics.ObserveTranscribeLatency(time.Since(start))

	s.setState(StateDone)
	send(ctx, outbound, protocol.NewResult(StripEOU(raw)))
	return nil
}

func (s *TranscribeSession) fail(ctx context.Context, outbound chan<- any, kind protocol.ErrorKind, message string) {
	s.setState(StateFailed)
	send(ctx, outbound, protocol.NewError(kind, message))
}

func (s *TranscribeSession) setState(next State) {
	if s.state == next {
		return
	}
	s.state = next
	if s.cfg.OnState != nil {
		s.cfg.OnState(next)
	}
}

// StripEOU removes a trailing end-of-utterance marker from engine output.
func StripEOU(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, EOUMarker)
	return strings.TrimSpace(text)
}

func send(ctx context.Context, outbound chan<- any, msg any) bool {
	select {
	case <-ctx.Done():
		return false
	case outbound <- msg:
		return true
	}
}

func resetIdle(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
