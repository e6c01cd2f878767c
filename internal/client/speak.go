package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gabacool/bidirectional-voice-claude/internal/protocol"
)

// ErrStreamDropped means the connection died mid-stream: audio chunks
// arrived but no audio-end did. Partial audio may already have played.
var ErrStreamDropped = errors.New("audio stream dropped before audio-end")

// Player consumes the synthesized PCM as it arrives. Start is called once
// with the announced format before the first chunk; Finish after the last.
type Player interface {
	Start(format string, totalBytes int) error
	Write(pcm []byte) error
	Finish() error
}

// SpeakResult summarizes one completed speech request.
type SpeakResult struct {
	// SpokenText is the text the server actually synthesized, after any
	// rewrite.
	SpokenText string
	Chunks     int
	Bytes      int
}

// SpeakConfig configures one speech run.
type SpeakConfig struct {
	URL string
	// StreamTimeout bounds the whole request, synthesis included.
	StreamTimeout time.Duration
}

// SpeakClient sends one block of text and plays the audio stream that comes
// back. A clean stream ends with audio-end; anything else is reported as a
// drop so the caller knows playback may have been cut short.
type SpeakClient struct {
	cfg  SpeakConfig
	conn *websocket.Conn
}

func DialSpeak(ctx context.Context, cfg SpeakConfig) (*SpeakClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("speech endpoint URL required")
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 120 * time.Second
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	return &SpeakClient{cfg: cfg, conn: conn}, nil
}

func (c *SpeakClient) Close() error {
	return c.conn.Close()
}

// Speak sends text and streams the reply into player. VoiceID and
// skipRewrite pass through to the server unchanged.
func (c *SpeakClient) Speak(ctx context.Context, text, voiceID string, skipRewrite bool, player Player) (SpeakResult, error) {
	req := protocol.Text{
		Command:     protocol.CommandText,
		Text:        text,
		VoiceID:     voiceID,
		SkipRewrite: skipRewrite,
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(req); err != nil {
		return SpeakResult{}, fmt.Errorf("send text: %w", err)
	}

	deadline := time.Now().Add(c.cfg.StreamTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)

	var res SpeakResult
	started := false
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if started {
				return res, fmt.Errorf("%w: %v", ErrStreamDropped, err)
			}
			return res, fmt.Errorf("await audio: %w", err)
		}

		if msgType == websocket.BinaryMessage {
			if !started {
				return res, errors.New("audio chunk before audio-start")
			}
			res.Chunks++
			res.Bytes += len(data)
			if err := player.Write(data); err != nil {
				return res, fmt.Errorf("play chunk %d: %w", res.Chunks, err)
			}
			continue
		}
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseControl(data)
		if err != nil {
			return res, fmt.Errorf("await audio: %w", err)
		}
		switch m := parsed.(type) {
		case protocol.AudioStart:
			started = true
			res.SpokenText = m.Text
			if err := player.Start(m.Format, m.Size); err != nil {
				return res, fmt.Errorf("start playback: %w", err)
			}
		case protocol.AudioEnd:
			if m.Chunks != res.Chunks {
				return res, fmt.Errorf("audio-end announced %d chunks, received %d", m.Chunks, res.Chunks)
			}
			if err := player.Finish(); err != nil {
				return res, fmt.Errorf("finish playback: %w", err)
			}
			return res, nil
		case protocol.Error:
			return res, &ErrServer{Kind: m.Kind, Message: m.Message}
		case protocol.Pong:
			continue
		default:
			return res, fmt.Errorf("unexpected reply %T during audio stream", m)
		}
	}
}
