package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/gabacool/bidirectional-voice-claude/internal/client"
	"github.com/gabacool/bidirectional-voice-claude/internal/config"
)

// speak reads text from arguments or stdin, sends it to the speech server,
// and plays the synthesized audio.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	serverURL := flag.String("server", cfg.SpeakURL, "speech websocket URL")
	voiceID := flag.String("voice", "", "voice to synthesize with (server default when empty)")
	skipRewrite := flag.Bool("verbatim", false, "speak the text as-is, skipping the rewrite step")
	flag.Parse()

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("read stdin: %v", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		log.Fatalf("nothing to speak: pass text as arguments or on stdin")
	}

	ctx := context.Background()
	c, err := client.DialSpeak(ctx, client.SpeakConfig{URL: *serverURL})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer c.Close()

	res, err := c.Speak(ctx, text, *voiceID, *skipRewrite, client.NewOtoPlayer())
	if err != nil {
		log.Fatalf("speech failed: %v", err)
	}
	log.Printf("spoke %q (%d bytes in %d chunks)", res.SpokenText, res.Bytes, res.Chunks)
}
