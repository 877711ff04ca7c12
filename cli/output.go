package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/georgepadayatti/pdfstitch/config"
	"github.com/georgepadayatti/pdfstitch/pdf/assemble"
	"github.com/georgepadayatti/pdfstitch/stitch"
)

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colorFor(w io.Writer, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if isTerminal(w) {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// printError writes a single diagnostic line for err.
func printError(err error) {
	label := colorFor(stderr, color.FgRed, color.Bold).Sprint("Error:")
	fmt.Fprintf(stderr, "%s %s\n", label, describe(err))
}

// printSuccess writes the final status line.
func printSuccess(format string, args ...any) {
	fmt.Fprintln(stdout, colorFor(stdout, color.FgGreen).Sprintf(format, args...))
}

// describe renders err for humans, naming the failed stage.
func describe(err error) string {
	var asmErr *assemble.AssemblyError
	if errors.As(err, &asmErr) && asmErr.Kind == assemble.PageCountMismatch {
		return fmt.Sprintf("number of pages in odd and even files should be equal (odd has %d, even has %d)",
			asmErr.LenA, asmErr.LenB)
	}

	var stageErr *stitch.StageError
	if errors.As(err, &stageErr) {
		return fmt.Sprintf("%s failed: %v", stageErr.Stage, stageErr.Err)
	}
	return err.Error()
}

// newLogger builds the slog logger described by cfg. The returned function
// closes a log file opened for it.
func newLogger(cfg *config.LoggingConfig) (*slog.Logger, func() error, error) {
	closer := func() error { return nil }

	var w io.Writer
	switch cfg.Output {
	case "stdout":
		w = stdout
	case "stderr", "":
		w = stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, closer, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closer = f.Close
	}

	opts := &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closer, nil
}
