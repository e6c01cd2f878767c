package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gabacool/bidirectional-voice-claude/internal/capture"
	"github.com/gabacool/bidirectional-voice-claude/internal/protocol"
)

// ErrServer wraps a wire error the server sent before closing the session.
type ErrServer struct {
	Kind    protocol.ErrorKind
	Message string
}

func (e *ErrServer) Error() string {
	return fmt.Sprintf("server error (%s): %s", e.Kind, e.Message)
}

// VoiceConfig configures one dictation run.
type VoiceConfig struct {
	// URL of the transcription websocket endpoint.
	URL string
	// ResultTimeout bounds the wait between sending finalize and the
	// transcript arriving. Covers one full ASR pass.
	ResultTimeout time.Duration
}

// VoiceClient drives one dictation session: stream gated microphone frames
// to the server, then finalize and wait for the single transcript. There is
// no retry; a failed session is reported, not repeated.
type VoiceClient struct {
	cfg  VoiceConfig
	conn *websocket.Conn
}

func DialVoice(ctx context.Context, cfg VoiceConfig) (*VoiceClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("transcription endpoint URL required")
	}
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = 60 * time.Second
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	return &VoiceClient{cfg: cfg, conn: conn}, nil
}

func (c *VoiceClient) Close() error {
	return c.conn.Close()
}

// Stream forwards capture frames until the frame channel closes or ctx is
// cancelled, then finalizes and returns the transcript. An empty transcript
// is a valid outcome of a silence-only run.
func (c *VoiceClient) Stream(ctx context.Context, frames <-chan capture.Frame) (string, error) {
	for {
		select {
		case <-ctx.Done():
			// Abort without finalize: the server discards the buffer.
			return "", ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return c.Finalize(ctx)
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, f.PCM); err != nil {
				return "", fmt.Errorf("send frame %d: %w", f.Seq, err)
			}
		}
	}
}

// Finalize asks the server to transcribe everything sent so far and waits
// for the one result.
func (c *VoiceClient) Finalize(ctx context.Context) (string, error) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(protocol.Finalize{Command: protocol.CommandFinalize}); err != nil {
		return "", fmt.Errorf("send finalize: %w", err)
	}

	deadline := time.Now().Add(c.cfg.ResultTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("await result: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseControl(data)
		if err != nil {
			return "", fmt.Errorf("await result: %w", err)
		}
		switch m := parsed.(type) {
		case protocol.Result:
			return m.Text, nil
		case protocol.Error:
			return "", &ErrServer{Kind: m.Kind, Message: m.Message}
		case protocol.Pong:
			continue
		default:
			return "", fmt.Errorf("unexpected reply %T while awaiting result", m)
		}
	}
}
