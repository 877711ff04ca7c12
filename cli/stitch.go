package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/georgepadayatti/pdfstitch/config"
	"github.com/georgepadayatti/pdfstitch/stitch"
)

// StitchOptions contains options for the stitch command.
type StitchOptions struct {
	Odd        string
	Even       string
	Output     string
	Policy     string
	Strict     bool
	Compress   bool
	Parallel   bool
	ConfigFile string
	LogLevel   string
	Title      string
	Timestamp  bool
}

// StitchCommand implements the 'stitch' command.
func StitchCommand(args []string) {
	stitchFlags := flag.NewFlagSet("stitch", flag.ContinueOnError)
	stitchFlags.SetOutput(stderr)

	var opts StitchOptions

	stitchFlags.StringVar(&opts.Odd, "odd", "", "PDF holding the odd pages, first page first")
	stitchFlags.StringVar(&opts.Even, "even", "", "PDF holding the even pages, last page first")
	stitchFlags.StringVar(&opts.Output, "output", "", "Output PDF file")
	stitchFlags.StringVar(&opts.Policy, "policy", "reverse-interleave", "Page order: reverse-interleave, interleave")
	stitchFlags.BoolVar(&opts.Strict, "strict", false, "Fail on references to missing objects")
	stitchFlags.BoolVar(&opts.Compress, "compress", false, "Compress uncompressed streams in the output")
	stitchFlags.BoolVar(&opts.Parallel, "parallel", false, "Parse both inputs concurrently")
	stitchFlags.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	stitchFlags.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	stitchFlags.StringVar(&opts.Title, "title", "", "Document title for the output")
	stitchFlags.BoolVar(&opts.Timestamp, "timestamp", false, "Record the creation time in the output")

	stitchFlags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s stitch [options] --odd <odd.pdf> --even <even.pdf> --output <output.pdf>\n", progName())
		fmt.Fprintf(stderr, "       %s stitch [options] <odd.pdf> <even.pdf> <output.pdf>\n\n", progName())
		fmt.Fprintln(stderr, "Interleave the pages of two scans of a double-sided document.")
		fmt.Fprintln(stderr, "The odd file holds pages 1, 3, 5, ... and the even file holds ..., 6, 4, 2.")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Options:")
		stitchFlags.PrintDefaults()
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Examples:")
		fmt.Fprintf(stderr, "  %s stitch --odd front.pdf --even back.pdf --output book.pdf\n", progName())
		fmt.Fprintf(stderr, "  %s stitch --policy interleave --compress a.pdf b.pdf out.pdf\n", progName())
	}

	if err := stitchFlags.Parse(args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		osExit(1)
		return
	}

	if rest := stitchFlags.Args(); len(rest) == 3 && opts.Odd == "" && opts.Even == "" && opts.Output == "" {
		opts.Odd, opts.Even, opts.Output = rest[0], rest[1], rest[2]
	} else if len(rest) > 0 {
		fmt.Fprintf(stderr, "Unexpected arguments: %v\n\n", rest)
		stitchFlags.Usage()
		osExit(1)
		return
	}
	if opts.Odd == "" || opts.Even == "" || opts.Output == "" {
		stitchFlags.Usage()
		osExit(1)
		return
	}

	set := make(map[string]bool)
	stitchFlags.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	cfg, err := resolveConfig(&opts, set)
	if err != nil {
		printError(err)
		osExit(1)
		return
	}

	if err := stitchPDF(&opts, cfg); err != nil {
		printError(err)
		osExit(1)
		return
	}
}

// resolveConfig loads the configuration file, if any, and applies the flags
// that were given explicitly on top of it.
func resolveConfig(opts *StitchOptions, set map[string]bool) (*config.AppConfig, error) {
	cfg := config.DefaultAppConfig()
	if opts.ConfigFile != "" {
		loaded, err := config.LoadAppConfig(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if set["policy"] || opts.ConfigFile == "" {
		cfg.Stitch.Policy = opts.Policy
	}
	if set["strict"] {
		cfg.Stitch.Strict = opts.Strict
	}
	if set["compress"] {
		cfg.Stitch.Compress = opts.Compress
	}
	if set["parallel"] {
		cfg.Stitch.ParallelParse = opts.Parallel
	}
	if set["log-level"] || opts.ConfigFile == "" {
		cfg.Logging.Level = opts.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stitchPDF runs the pipeline with the resolved configuration.
func stitchPDF(opts *StitchOptions, cfg *config.AppConfig) error {
	logger, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	policy, err := cfg.Stitch.PolicyValue()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var created time.Time
	if opts.Timestamp {
		created = time.Now()
	}

	res, err := stitch.Run(ctx, stitch.Options{
		OddPath:    opts.Odd,
		EvenPath:   opts.Even,
		OutputPath: opts.Output,
		Policy:     policy,
		Strict:     cfg.Stitch.Strict,
		Compress:   cfg.Stitch.Compress,
		Parallel:   cfg.Stitch.ParallelParse,
		Producer:   cfg.Stitch.Producer,
		Title:      opts.Title,
		Created:    created,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	printSuccess("Output file is saved at %s (%d pages)", res.OutputPath, res.Pages)
	return nil
}
