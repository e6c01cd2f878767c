package capture

import (
	"sync"
	"time"

	"github.com/gabacool/bidirectional-voice-claude/internal/vad"
)

// Frame is one fixed-duration slice of microphone audio that passed the
// energy gate. Seq increases by one per delivered frame; gaps mean the
// consumer fell behind and frames were dropped.
type Frame struct {
	Seq    uint64
	PCM    []byte
	Energy float64
}

// LoopConfig sizes the capture loop. FrameDuration is how much audio each
// Frame carries; the gate decides which frames are worth sending.
type LoopConfig struct {
	SampleRate    int
	FrameDuration time.Duration
	Gate          *vad.Gate
	// ChannelDepth is the Frames buffer. When full, new frames are dropped
	// rather than blocking the audio callback.
	ChannelDepth int
}

// Loop frames the device's byte stream, classifies each frame with the
// gate, and delivers speech frames on a channel. The device callback only
// appends and signals; all channel sends happen on the loop's own
// goroutine so the audio thread never blocks on a slow consumer.
type Loop struct {
	device Device
	gate   *vad.Gate
	cfg    LoopConfig

	frameBytes int
	frames     chan Frame

	mu      sync.Mutex
	cond    *sync.Cond
	pending []byte
	running bool
	stopped bool

	seq     uint64
	dropped uint64
}

func NewLoop(device Device, cfg LoopConfig) *Loop {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 100 * time.Millisecond
	}
	if cfg.Gate == nil {
		cfg.Gate = vad.NewGate(vad.DefaultThreshold)
	}
	if cfg.ChannelDepth <= 0 {
		cfg.ChannelDepth = 64
	}
	l := &Loop{
		device: device,
		gate:   cfg.Gate,
		cfg:    cfg,
		// 2 bytes per PCM16 sample.
		frameBytes: 2 * cfg.SampleRate * int(cfg.FrameDuration.Milliseconds()) / 1000,
		frames:     make(chan Frame, cfg.ChannelDepth),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Frames delivers gated speech frames. The channel closes after Stop once
// the partial tail frame has been flushed.
func (l *Loop) Frames() <-chan Frame { return l.frames }

// Dropped reports frames discarded because the consumer fell behind.
func (l *Loop) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

func (l *Loop) Start() error {
	l.mu.Lock()
	if l.running || l.stopped {
		l.mu.Unlock()
		return ErrCaptureActive
	}
	l.running = true
	l.mu.Unlock()

	if err := l.device.Start(l.onData); err != nil {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		return err
	}

	go l.run()
	return nil
}

// Stop halts the device, flushes any partial frame through the gate, and
// closes the frame channel. Safe to call once; later calls are no-ops.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.running || l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	l.cond.Signal()
	l.mu.Unlock()

	return l.device.Stop()
}

func (l *Loop) onData(input []byte) {
	l.mu.Lock()
	l.pending = append(l.pending, input...)
	l.mu.Unlock()
	l.cond.Signal()
}

func (l *Loop) run() {
	defer close(l.frames)

	for {
		l.mu.Lock()
		for len(l.pending) < l.frameBytes && !l.stopped {
			l.cond.Wait()
		}

		if l.stopped {
			// Flush whatever accumulated, including a short tail frame.
			tail := l.pending
			l.pending = nil
			l.mu.Unlock()
			for len(tail) >= l.frameBytes {
				l.emit(tail[:l.frameBytes])
				tail = tail[l.frameBytes:]
			}
			if len(tail) >= 2 {
				l.emit(tail)
			}
			return
		}

		frame := make([]byte, l.frameBytes)
		copy(frame, l.pending[:l.frameBytes])
		l.pending = l.pending[l.frameBytes:]
		l.mu.Unlock()

		l.emit(frame)
	}
}

func (l *Loop) emit(pcm []byte) {
	energy := vad.EnergyPCM16LE(pcm)
	if energy <= l.gate.Threshold() {
		return
	}

	l.mu.Lock()
	l.seq++
	f := Frame{Seq: l.seq, PCM: pcm, Energy: energy}
	l.mu.Unlock()

	select {
	case l.frames <- f:
	default:
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
	}
}
