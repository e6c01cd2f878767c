package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gabacool/bidirectional-voice-claude/internal/capture"
	"github.com/gabacool/bidirectional-voice-claude/internal/client"
	"github.com/gabacool/bidirectional-voice-claude/internal/config"
	"github.com/gabacool/bidirectional-voice-claude/internal/vad"
)

// dictate records from the microphone while running, streams speech frames
// to the transcription server, and prints the transcript on interrupt.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	serverURL := flag.String("server", cfg.TranscribeURL, "transcription websocket URL")
	maxDuration := flag.Duration("max", 2*time.Minute, "stop recording after this long")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *maxDuration)
	defer cancel()

	device := capture.NewMalgoDevice(capture.DeviceConfig{SampleRate: cfg.SampleRate})
	loop := capture.NewLoop(device, capture.LoopConfig{
		SampleRate:    cfg.SampleRate,
		FrameDuration: time.Duration(cfg.CaptureFrameMS) * time.Millisecond,
		Gate:          vad.NewGate(cfg.VADThreshold),
	})

	// Claim the microphone before touching the network so a busy or missing
	// device is reported without opening a connection.
	if err := loop.Start(); err != nil {
		if errors.Is(err, capture.ErrDeviceUnavailable) {
			log.Fatalf("microphone unavailable: %v", err)
		}
		log.Fatalf("capture start: %v", err)
	}

	c, err := client.DialVoice(ctx, client.VoiceConfig{URL: *serverURL})
	if err != nil {
		_ = loop.Stop()
		log.Fatalf("connect: %v", err)
	}
	defer c.Close()

	// Ctrl-C ends the utterance; the capture loop flushes its tail frame
	// and the frame channel closes, which triggers finalize.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		_ = loop.Stop()
	}()

	log.Printf("recording (ctrl-c to finish)")
	text, err := c.Stream(ctx, loop.Frames())
	if err != nil {
		log.Fatalf("dictation failed: %v", err)
	}
	if dropped := loop.Dropped(); dropped > 0 {
		log.Printf("warning: %d frames dropped", dropped)
	}

	fmt.Println(text)
}
