// Command slice cuts audio files into segments at silent stretches.
//
// Usage:
//
//	slice [-out DIR] [-prefix P] [-decoder ffmpeg|wav] [-v] FILE...
//
// Slicing and normalization parameters come from the same environment
// variables as the server. Each file is sliced independently; a file that
// fails is logged and skipped. The exit status is non-zero only when no
// file could be sliced.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/maauso/voxslice/internal/audio"
	"github.com/maauso/voxslice/internal/bootstrap"
	"github.com/maauso/voxslice/internal/config"
)

var (
	errNoInputs   = errors.New("no input files given")
	errAllFailed  = errors.New("no input file could be sliced")
	errBadDecoder = errors.New("decoder must be ffmpeg or wav")
)

type appFlags struct {
	out     string
	prefix  string
	decoder string
	verbose bool
	inputs  []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (appFlags, error) {
	var f appFlags
	fs := flag.NewFlagSet("slice", flag.ContinueOnError)
	fs.StringVar(&f.out, "out", ".", "output directory for segment files")
	fs.StringVar(&f.prefix, "prefix", "", "file name prefix (default: current Unix time)")
	fs.StringVar(&f.decoder, "decoder", "", "audio decoder: ffmpeg or wav (default: AUDIO_DECODER)")
	fs.BoolVar(&f.verbose, "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return appFlags{}, err
	}

	f.inputs = fs.Args()
	if len(f.inputs) == 0 {
		return appFlags{}, errNoInputs
	}
	switch f.decoder {
	case "", config.DecoderFFmpeg, config.DecoderWAV:
	default:
		return appFlags{}, fmt.Errorf("%w, got %q", errBadDecoder, f.decoder)
	}
	return f, nil
}

// run slices every input and prints the written segment paths to stdout.
// Logs go to stderr so stdout can be piped.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.decoder != "" {
		cfg.AudioDecoder = flags.decoder
	}
	if flags.verbose {
		cfg.LogLevel = "debug"
	}
	logger := cfg.NewLoggerTo(stderr)

	if err := os.MkdirAll(cfg.TempDir, 0750); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}

	splitter := bootstrap.NewSplitter(cfg, logger, nil)
	base := flags.prefix
	if base == "" {
		base = strconv.FormatInt(time.Now().Unix(), 10)
	}

	failed := 0
	for i, input := range flags.inputs {
		opts := cfg.SplitOpts()
		opts.Prefix = base
		if len(flags.inputs) > 1 {
			opts.Prefix = fmt.Sprintf("%s_%03d", base, i)
		}

		segments, err := splitter.Split(ctx, input, flags.out, opts)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("interrupted: %w", ctx.Err())
			}
			failed++
			logger.Error("failed to slice file",
				slog.String("input", input),
				slog.String("error", err.Error()),
			)
			continue
		}
		printSegments(stdout, segments)
	}

	if failed == len(flags.inputs) {
		return fmt.Errorf("%w (%d files)", errAllFailed, failed)
	}
	if failed > 0 {
		logger.Warn("some files were skipped",
			slog.Int("failed", failed),
			slog.Int("total", len(flags.inputs)),
		)
	}
	return nil
}

func printSegments(w io.Writer, segments []audio.Segment) {
	for _, seg := range segments {
		fmt.Fprintln(w, seg.Path)
	}
}
