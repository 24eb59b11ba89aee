package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MEKXH/intentpilot/internal/bus"
	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/MEKXH/intentpilot/internal/engine"
	"github.com/MEKXH/intentpilot/internal/voice"
	"github.com/spf13/cobra"
)

const audioChunkSize = 4096

type voiceOptions struct {
	audio      []string
	stream     bool
	streamURL  string
	intent     string
	resume     bool
	continuous *bool
}

func NewVoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Drive the active intent by voice",
		Long: `Listens for voice commands against the active intent.

Transcripts come from recorded clips (--audio), from the speech service
websocket fed with raw audio on stdin (--stream), or, by default, from
typed lines on stdin.`,
		RunE: runVoice,
	}
	cmd.Flags().StringSlice("audio", nil, "Audio clips to transcribe, in order")
	cmd.Flags().Bool("stream", false, "Stream stdin audio to the speech service websocket")
	cmd.Flags().String("ws-url", "", "Speech service websocket URL (default from config)")
	cmd.Flags().String("intent", "", "Submit this intent before listening")
	cmd.Flags().Bool("resume", false, "Resume the open intent before listening")
	cmd.Flags().Bool("continuous", false, "Keep listening after each command")
	return cmd
}

func runVoice(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var opts voiceOptions
	opts.audio, _ = cmd.Flags().GetStringSlice("audio")
	opts.stream, _ = cmd.Flags().GetBool("stream")
	opts.streamURL, _ = cmd.Flags().GetString("ws-url")
	opts.intent, _ = cmd.Flags().GetString("intent")
	opts.resume, _ = cmd.Flags().GetBool("resume")
	if cmd.Flags().Changed("continuous") {
		v, _ := cmd.Flags().GetBool("continuous")
		opts.continuous = &v
	}
	return listen(ctx, cfg, nil, opts, os.Stdin, os.Stdout)
}

func listen(ctx context.Context, cfg *config.Config, collaborators *engine.Collaborators, opts voiceOptions, in io.Reader, out io.Writer) error {
	if opts.continuous != nil {
		cfg.Voice.Continuous = *opts.continuous
	}
	a, err := newApp(ctx, cfg, collaborators, out)
	if err != nil {
		return err
	}
	defer a.close()

	if opts.resume {
		a.handle(ctx, "/resume")
	}
	if strings.TrimSpace(opts.intent) != "" {
		if err := a.submit(ctx, opts.intent); err != nil {
			return err
		}
	}

	src, err := openSource(ctx, cfg, opts, in)
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Fprintln(out, "Listening. Say 'Confirm' or 'Cancel' when asked.")
	if err := a.voice.Run(ctx, src); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openSource(ctx context.Context, cfg *config.Config, opts voiceOptions, in io.Reader) (bus.Source, error) {
	switch {
	case len(opts.audio) > 0:
		t, err := voice.NewTranscriber(cfg.Voice.Transcriber, cfg.EngineTimeout())
		if err != nil {
			return nil, err
		}
		clips := make([]voice.Clip, 0, len(opts.audio))
		for _, path := range opts.audio {
			clip, err := voice.LoadClip(path)
			if err != nil {
				return nil, err
			}
			clips = append(clips, clip)
		}
		return voice.NewClipSource(ctx, t, clips...), nil

	case opts.stream:
		url := strings.TrimSpace(opts.streamURL)
		if url == "" {
			url = cfg.Voice.SpeechWSURL
		}
		src, err := voice.DialStream(ctx, url)
		if err != nil {
			return nil, err
		}
		go pumpAudio(src, in)
		return src, nil

	default:
		return typedSource(ctx, in), nil
	}
}

// pumpAudio forwards raw audio from r until it ends or the socket fails.
func pumpAudio(src *voice.StreamSource, r io.Reader) {
	buf := make([]byte, audioChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if sendErr := src.SendAudio(buf[:n]); sendErr != nil {
				slog.Warn("audio stream stopped", "error", sendErr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("read audio failed", "error", err)
			}
			return
		}
	}
}

// lineSource treats every non-empty line of a reader as one transcript.
type lineSource struct {
	*bus.ChannelSource
	cancel context.CancelFunc
}

func typedSource(ctx context.Context, r io.Reader) *lineSource {
	ctx, cancel := context.WithCancel(ctx)
	src := &lineSource{ChannelSource: bus.NewChannelSource(1), cancel: cancel}
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if src.Publish(ctx, bus.Transcript(line)) != nil {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			_ = src.Publish(ctx, bus.Failure(err))
		}
		_ = src.Publish(ctx, bus.End())
	}()
	return src
}

// Close unblocks a pending publish before closing the stream. A reader
// blocked on input is left to the process exit.
func (s *lineSource) Close() error {
	s.cancel()
	return s.ChannelSource.Close()
}
