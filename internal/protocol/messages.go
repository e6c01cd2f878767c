package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Command names the structured control messages exchanged on a voice session.
// Binary websocket frames carry raw PCM16LE samples and have no envelope.
type Command string

const (
	// Client to server, transcription direction.
	CommandFinalize Command = "finalize"
	// Server to client, transcription direction.
	CommandResult Command = "result"
	// Client to server, speech direction.
	CommandText Command = "text"
	// Server to client, speech direction.
	CommandAudioStart Command = "audio-start"
	CommandAudioEnd   Command = "audio-end"
	// Either direction.
	CommandError Command = "error"
	CommandPing  Command = "ping"
	CommandPong  Command = "pong"
)

// ErrorKind classifies session-fatal (and client-side) failures on the wire.
type ErrorKind string

const (
	KindProtocolViolation ErrorKind = "protocol_violation"
	KindEngineFailure     ErrorKind = "engine_failure"
	KindTimeout           ErrorKind = "timeout"
	KindDeviceUnavailable ErrorKind = "device_unavailable"
)

var ErrUnknownCommand = errors.New("unknown command")

type Envelope struct {
	Command Command `json:"command"`
}

type Finalize struct {
	Command Command `json:"command"`
}

type Result struct {
	Command Command `json:"command"`
	Text    string  `json:"text"`
}

type Text struct {
	Command     Command `json:"command"`
	Text        string  `json:"text"`
	VoiceID     string  `json:"voice_id,omitempty"`
	SkipRewrite bool    `json:"skip_rewrite,omitempty"`
}

type AudioStart struct {
	Command Command `json:"command"`
	Format  string  `json:"format"`
	Size    int     `json:"size"`
	Text    string  `json:"text"`
}

type AudioEnd struct {
	Command Command `json:"command"`
	Chunks  int     `json:"chunks"`
}

type Error struct {
	Command Command   `json:"command"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

type Ping struct {
	Command Command `json:"command"`
}

type Pong struct {
	Command Command `json:"command"`
}

// NewResult wraps a final transcript. Empty text is a valid result: a
// silence-only session transcribes to nothing.
func NewResult(text string) Result {
	return Result{Command: CommandResult, Text: text}
}

func NewError(kind ErrorKind, message string) Error {
	return Error{Command: CommandError, Kind: kind, Message: message}
}

// ParseControl decodes one text frame into its typed control message.
func ParseControl(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid control envelope: %w", err)
	}

	switch env.Command {
	case CommandFinalize:
		return Finalize{Command: CommandFinalize}, nil
	case CommandResult:
		var msg Result
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case CommandText:
		var msg Text
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("text command requires non-empty text")
		}
		if !utf8.ValidString(msg.Text) {
			return nil, errors.New("text command requires valid UTF-8")
		}
		return msg, nil
	case CommandAudioStart:
		var msg AudioStart
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case CommandAudioEnd:
		var msg AudioEnd
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Chunks < 0 {
			return nil, errors.New("audio-end chunk count must be non-negative")
		}
		return msg, nil
	case CommandError:
		var msg Error
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Kind == "" {
			return nil, errors.New("error command requires a kind")
		}
		return msg, nil
	case CommandPing:
		return Ping{Command: CommandPing}, nil
	case CommandPong:
		return Pong{Command: CommandPong}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Command)
	}
}

// CommandOf reports the command of a typed control message, used by the
// websocket glue for per-type metrics.
func CommandOf(v any) (Command, bool) {
	switch m := v.(type) {
	case Finalize:
		return m.Command, true
	case Result:
		return m.Command, true
	case Text:
		return m.Command, true
	case AudioStart:
		return m.Command, true
	case AudioEnd:
		return m.Command, true
	case Error:
		return m.Command, true
	case Ping:
		return m.Command, true
	case Pong:
		return m.Command, true
	default:
		return "", false
	}
}
