package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gabacool/bidirectional-voice-claude/internal/observability"
	"github.com/gabacool/bidirectional-voice-claude/internal/protocol"
)

var metricsSeq atomic.Int64

// newTestMetrics returns metrics under a unique namespace so repeated
// registrations in one test binary do not collide.
func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("test_voice_%d", metricsSeq.Add(1)))
}

type fakeASR struct {
	mu    sync.Mutex
	calls [][]byte
	rates []int
	reply string
	err   error
}

func (f *fakeASR) Transcribe(_ context.Context, pcm16le []byte, sampleRate int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]byte(nil), pcm16le...))
	f.rates = append(f.rates, sampleRate)
	return f.reply, f.err
}

// runSession feeds msgs through a session and returns everything it put on
// the outbound channel alongside Run's error. The inbound channel is closed
// after the last message unless keepOpen is set.
func runSession(t *testing.T, run func(context.Context, <-chan any, chan<- any) error, msgs []any, keepOpen bool) ([]any, error) {
	t.Helper()

	inbound := make(chan any, len(msgs)+1)
	for _, m := range msgs {
		inbound <- m
	}
	if !keepOpen {
		close(inbound)
	}

	outbound := make(chan any, 256)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, inbound, outbound)

	close(outbound)
	var got []any
	for m := range outbound {
		got = append(got, m)
	}
	return got, err
}

func TestTranscribeEmptyFinalizeYieldsEmptyResult(t *testing.T) {
	engine := &fakeASR{reply: "should never be used"}
	s := NewTranscribeSession(engine, newTestMetrics(), TranscribeConfig{SampleRate: 16000})

	out, err := runSession(t, s.Run, []any{protocol.Finalize{Command: protocol.CommandFinalize}}, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(out) != 1 {
		t.Fatalf("outbound count = %d, want 1", len(out))
	}
	result, ok := out[0].(protocol.Result)
	if !ok {
		t.Fatalf("outbound[0] type = %T, want Result", out[0])
	}
	if result.Text != "" {
		t.Fatalf("Text = %q, want empty", result.Text)
	}
	if len(engine.calls) != 0 {
		t.Fatalf("engine called %d times for empty buffer, want 0", len(engine.calls))
	}
	if s.State() != StateDone {
		t.Fatalf("state = %q, want %q", s.State(), StateDone)
	}
}

func TestTranscribeConcatenatesFramesInOrder(t *testing.T) {
	engine := &fakeASR{reply: "hello world" + EOUMarker}
	s := NewTranscribeSession(engine, newTestMetrics(), TranscribeConfig{SampleRate: 16000})

	frames := [][]byte{
		{0x01, 0x02, 0x03, 0x04},
		{0x05, 0x06},
		{0x07, 0x08, 0x09, 0x0a},
	}
	msgs := []any{frames[0], frames[1], frames[2], protocol.Finalize{Command: protocol.CommandFinalize}}

	out, err := runSession(t, s.Run, msgs, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(engine.calls) != 1 {
		t.Fatalf("engine called %d times, want exactly 1", len(engine.calls))
	}
	want := bytes.Join(frames, nil)
	if !bytes.Equal(engine.calls[0], want) {
		t.Fatalf("engine input = %v, want frames concatenated in receipt order %v", engine.calls[0], want)
	}
	if engine.rates[0] != 16000 {
		t.Fatalf("engine sample rate = %d, want 16000", engine.rates[0])
	}

	result, ok := out[len(out)-1].(protocol.Result)
	if !ok {
		t.Fatalf("last outbound type = %T, want Result", out[len(out)-1])
	}
	if result.Text != "hello world" {
		t.Fatalf("Text = %q, want %q (end-of-utterance marker stripped)", result.Text, "hello world")
	}
}

func TestTranscribeEngineFailure(t *testing.T) {
	engine := &fakeASR{err: errors.New("model exploded")}
	s := NewTranscribeSession(engine, newTestMetrics(), TranscribeConfig{})

	msgs := []any{[]byte{1, 2}, protocol.Finalize{Command: protocol.CommandFinalize}}
	out, err := runSession(t, s.Run, msgs, false)
	if err == nil {
		t.Fatalf("Run() error = nil, want engine failure")
	}

	if len(out) != 1 {
		t.Fatalf("outbound count = %d, want 1", len(out))
	}
	wireErr, ok := out[0].(protocol.Error)
	if !ok {
		t.Fatalf("outbound[0] type = %T, want Error", out[0])
	}
	if wireErr.Kind != protocol.KindEngineFailure {
		t.Fatalf("Kind = %q, want %q", wireErr.Kind, protocol.KindEngineFailure)
	}
	if s.State() != StateFailed {
		t.Fatalf("state = %q, want %q", s.State(), StateFailed)
	}
}

func TestTranscribeRejectsSpeechDirectionCommand(t *testing.T) {
	engine := &fakeASR{}
	s := NewTranscribeSession(engine, newTestMetrics(), TranscribeConfig{})

	msgs := []any{protocol.Text{Command: protocol.CommandText, Text: "wrong endpoint"}}
	out, err := runSession(t, s.Run, msgs, false)
	if err == nil {
		t.Fatalf("Run() error = nil, want protocol violation")
	}

	wireErr, ok := out[0].(protocol.Error)
	if !ok {
		t.Fatalf("outbound[0] type = %T, want Error", out[0])
	}
	if wireErr.Kind != protocol.KindProtocolViolation {
		t.Fatalf("Kind = %q, want %q", wireErr.Kind, protocol.KindProtocolViolation)
	}
	if len(engine.calls) != 0 {
		t.Fatalf("engine called after protocol violation")
	}
}

func TestTranscribeIdleTimeout(t *testing.T) {
	engine := &fakeASR{}
	s := NewTranscribeSession(engine, newTestMetrics(), TranscribeConfig{IdleTimeout: 30 * time.Millisecond})

	out, err := runSession(t, s.Run, nil, true)
	if !errors.Is(err, ErrIdleTimeout) {
		t.Fatalf("Run() error = %v, want ErrIdleTimeout", err)
	}

	if len(out) != 1 {
		t.Fatalf("outbound count = %d, want 1", len(out))
	}
	wireErr, ok := out[0].(protocol.Error)
	if !ok {
		t.Fatalf("outbound[0] type = %T, want Error", out[0])
	}
	if wireErr.Kind != protocol.KindTimeout {
		t.Fatalf("Kind = %q, want %q", wireErr.Kind, protocol.KindTimeout)
	}
}

func TestTranscribeAbortBeforeFinalizeDiscardsBuffer(t *testing.T) {
	engine := &fakeASR{reply: "never"}
	s := NewTranscribeSession(engine, newTestMetrics(), TranscribeConfig{})

	// Frames arrive, then the client drops the connection: inbound closes
	// with no finalize.
	out, err := runSession(t, s.Run, []any{[]byte{1, 2}, []byte{3, 4}}, false)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil on client abort", err)
	}
	if len(out) != 0 {
		t.Fatalf("outbound count = %d, want 0", len(out))
	}
	if len(engine.calls) != 0 {
		t.Fatalf("engine called %d times after abort, want 0", len(engine.calls))
	}
}

func TestTranscribePingPong(t *testing.T) {
	engine := &fakeASR{reply: "ok"}
	s := NewTranscribeSession(engine, newTestMetrics(), TranscribeConfig{})

	msgs := []any{
		protocol.Ping{Command: protocol.CommandPing},
		protocol.Finalize{Command: protocol.CommandFinalize},
	}
	out, err := runSession(t, s.Run, msgs, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("outbound count = %d, want 2", len(out))
	}
	if _, ok := out[0].(protocol.Pong); !ok {
		t.Fatalf("outbound[0] type = %T, want Pong", out[0])
	}
	if _, ok := out[1].(protocol.Result); !ok {
		t.Fatalf("outbound[1] type = %T, want Result", out[1])
	}
}

func TestTranscribeStateTransitionsForward(t *testing.T) {
	var states []State
	engine := &fakeASR{reply: "hi"}
	s := NewTranscribeSession(engine, newTestMetrics(), TranscribeConfig{
		OnState: func(st State) { states = append(states, st) },
	})

	msgs := []any{[]byte{1, 2}, protocol.Finalize{Command: protocol.CommandFinalize}}
	if _, err := runSession(t, s.Run, msgs, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []State{StateAccumulating, StateFinalizing, StateDone}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestStripEOU(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"hello world<EOU>", "hello world"},
		{"hello world <EOU>", "hello world"},
		{"hello world", "hello world"},
		{"<EOU>", ""},
		{"  trimmed  ", "trimmed"},
	}
	for _, tc := range cases {
		if got := StripEOU(tc.in); got != tc.want {
			t.Fatalf("StripEOU(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
