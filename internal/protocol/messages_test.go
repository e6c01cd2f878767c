package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseControlFinalize(t *testing.T) {
	msg, err := ParseControl([]byte(`{"command":"finalize"}`))
	if err != nil {
		t.Fatalf("ParseControl() error = %v", err)
	}
	if _, ok := msg.(Finalize); !ok {
		t.Fatalf("message type = %T, want Finalize", msg)
	}
}

func TestParseControlText(t *testing.T) {
	raw := []byte(`{"command":"text","text":"hello there","voice_id":"lessac","skip_rewrite":true}`)
	msg, err := ParseControl(raw)
	if err != nil {
		t.Fatalf("ParseControl() error = %v", err)
	}

	text, ok := msg.(Text)
	if !ok {
		t.Fatalf("message type = %T, want Text", msg)
	}
	if text.Text != "hello there" {
		t.Fatalf("Text = %q, want %q", text.Text, "hello there")
	}
	if text.VoiceID != "lessac" {
		t.Fatalf("VoiceID = %q, want %q", text.VoiceID, "lessac")
	}
	if !text.SkipRewrite {
		t.Fatalf("SkipRewrite = false, want true")
	}
}

func TestParseControlRejectsEmptyText(t *testing.T) {
	if _, err := ParseControl([]byte(`{"command":"text","text":""}`)); err == nil {
		t.Fatalf("expected validation error for empty text")
	}
}

func TestParseControlRejectsInvalidUTF8(t *testing.T) {
	raw := append([]byte(`{"command":"text","text":"`), 0xff, 0xfe)
	raw = append(raw, []byte(`"}`)...)
	if _, err := ParseControl(raw); err == nil {
		t.Fatalf("expected validation error for invalid utf-8")
	}
}

func TestParseControlRejectsUnknownCommand(t *testing.T) {
	_, err := ParseControl([]byte(`{"command":"rewind"}`))
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("error = %v, want ErrUnknownCommand", err)
	}
}

func TestParseControlError(t *testing.T) {
	raw := []byte(`{"command":"error","kind":"timeout","message":"session idle too long"}`)
	msg, err := ParseControl(raw)
	if err != nil {
		t.Fatalf("ParseControl() error = %v", err)
	}

	wireErr, ok := msg.(Error)
	if !ok {
		t.Fatalf("message type = %T, want Error", msg)
	}
	if wireErr.Kind != KindTimeout {
		t.Fatalf("Kind = %q, want %q", wireErr.Kind, KindTimeout)
	}
}

func TestParseControlErrorRequiresKind(t *testing.T) {
	if _, err := ParseControl([]byte(`{"command":"error","message":"nope"}`)); err == nil {
		t.Fatalf("expected validation error for missing kind")
	}
}

func TestResultRoundTripsEmptyText(t *testing.T) {
	raw, err := json.Marshal(NewResult(""))
	if err != nil {
		t.Fatalf("Marshal(Result) error = %v", err)
	}
	msg, err := ParseControl(raw)
	if err != nil {
		t.Fatalf("ParseControl() error = %v", err)
	}
	result, ok := msg.(Result)
	if !ok {
		t.Fatalf("message type = %T, want Result", msg)
	}
	if result.Text != "" {
		t.Fatalf("Text = %q, want empty", result.Text)
	}
}

func TestParseControlAudioEnd(t *testing.T) {
	msg, err := ParseControl([]byte(`{"command":"audio-end","chunks":3}`))
	if err != nil {
		t.Fatalf("ParseControl() error = %v", err)
	}
	end, ok := msg.(AudioEnd)
	if !ok {
		t.Fatalf("message type = %T, want AudioEnd", msg)
	}
	if end.Chunks != 3 {
		t.Fatalf("Chunks = %d, want 3", end.Chunks)
	}
}

func TestCommandOf(t *testing.T) {
	cmd, ok := CommandOf(NewError(KindEngineFailure, "boom"))
	if !ok || cmd != CommandError {
		t.Fatalf("CommandOf = %q, %v, want %q, true", cmd, ok, CommandError)
	}
	if _, ok := CommandOf([]byte("binary")); ok {
		t.Fatalf("CommandOf should not classify binary payloads")
	}
}

func BenchmarkParseControlText(b *testing.B) {
	raw := []byte(`{"command":"text","text":"summarize the last terminal block for speech"}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseControl(raw)
		if err != nil {
			b.Fatalf("ParseControl() error = %v", err)
		}
		if _, ok := msg.(Text); !ok {
			b.Fatalf("message type = %T, want Text", msg)
		}
	}
}
