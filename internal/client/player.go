package client

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer plays PCM16LE mono audio through the default output device.
// The oto context is created lazily in Start because the sample rate is
// only known from the audio-start announcement.
type OtoPlayer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool

	otoCtx *oto.Context
	player *oto.Player
}

func NewOtoPlayer() *OtoPlayer {
	p := &OtoPlayer{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start opens the output device at the announced rate. Formats look like
// "pcm_22050"; anything else is refused rather than played at a guess.
func (p *OtoPlayer) Start(format string, _ int) error {
	rate, err := parsePCMFormat(format)
	if err != nil {
		return err
	}

	opts := &oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms of 16-bit mono audio; small enough to stop quickly.
		BufferSize: rate / 5,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return fmt.Errorf("open output device: %w", err)
	}
	<-ready

	p.mu.Lock()
	p.otoCtx = otoCtx
	p.buf = p.buf[:0]
	p.closed = false
	p.mu.Unlock()
	return nil
}

func (p *OtoPlayer) Write(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.otoCtx == nil {
		return fmt.Errorf("player not started")
	}
	p.buf = append(p.buf, pcm...)
	if p.player == nil {
		p.player = p.otoCtx.NewPlayer(p)
		p.player.Play()
	}
	p.cond.Signal()
	return nil
}

// Finish blocks until the buffered audio has drained, then releases the
// device.
func (p *OtoPlayer) Finish() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	player := p.player
	p.player = nil
	p.mu.Unlock()

	if player == nil {
		return nil
	}
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	return player.Close()
}

// Read implements io.Reader for the oto player, which pulls audio on its
// own schedule. EOF after close lets oto play out its buffered tail and
// stop.
func (p *OtoPlayer) Read(out []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.buf) == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed && len(p.buf) == 0 {
		return 0, io.EOF
	}

	n := copy(out, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func parsePCMFormat(format string) (int, error) {
	rest, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("unsupported audio format %q", format)
	}
	rate, err := strconv.Atoi(rest)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("unsupported audio format %q", format)
	}
	return rate, nil
}
