// Package stitch runs the end-to-end pipeline: read two PDF files, interleave
// their pages and write the result atomically.
package stitch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/georgepadayatti/pdfstitch/pdf/assemble"
	"github.com/georgepadayatti/pdfstitch/pdf/metadata"
	"github.com/georgepadayatti/pdfstitch/pdf/pages"
	"github.com/georgepadayatti/pdfstitch/pdf/reader"
	"github.com/georgepadayatti/pdfstitch/pdf/writer"
)

// Stage names a step of the pipeline.
type Stage string

// Pipeline stages
const (
	StageReadOdd     Stage = "read-odd"
	StageReadEven    Stage = "read-even"
	StageExtractOdd  Stage = "extract-odd"
	StageExtractEven Stage = "extract-even"
	StageAssemble    Stage = "assemble"
	StageWrite       Stage = "write"
	StageOutput      Stage = "output"
)

// StageError reports the stage at which the pipeline failed.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Options configures Run.
type Options struct {
	OddPath    string
	EvenPath   string
	OutputPath string

	// Policy defaults to assemble.ReverseInterleave.
	Policy   assemble.Policy
	Strict   bool
	Compress bool
	// Parallel parses both inputs concurrently.
	Parallel bool
	Producer string
	// Title sets the output /Title when not empty.
	Title string
	// Created stamps CreationDate and ModDate when not zero.
	Created time.Time

	// Logger defaults to discarding everything.
	Logger *slog.Logger
}

// Result describes a completed run.
type Result struct {
	OutputPath string
	OddPages   int
	EvenPages  int
	Pages      int
	Bytes      int
}

type side struct {
	path    string
	read    Stage
	extract Stage
	pages   []*pages.Page
}

// Run executes the pipeline. On failure the output path is left untouched.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	policy := opts.Policy
	if policy == nil {
		policy = assemble.ReverseInterleave
	}

	odd := &side{path: opts.OddPath, read: StageReadOdd, extract: StageExtractOdd}
	even := &side{path: opts.EvenPath, read: StageReadEven, extract: StageExtractEven}

	if opts.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for _, s := range []*side{odd, even} {
			s := s
			g.Go(func() error {
				return load(gctx, s, opts.Strict, logger)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, s := range []*side{odd, even} {
			if err := load(ctx, s, opts.Strict, logger); err != nil {
				return nil, err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageAssemble, Err: err}
	}
	info := metadata.DocumentInfo{Title: opts.Title, Producer: opts.Producer}
	if !opts.Created.IsZero() {
		info.Created = &opts.Created
		info.LastModified = &opts.Created
	}
	out, err := assemble.Assemble(odd.pages, even.pages, policy, assemble.WithInfo(info))
	if err != nil {
		return nil, &StageError{Stage: StageAssemble, Err: err}
	}
	logger.Debug("pages assembled", "policy", policy.Name(), "pages", len(odd.pages)+len(even.pages))

	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageWrite, Err: err}
	}
	data, err := writer.Write(out, writer.WithCompression(opts.Compress))
	if err != nil {
		return nil, &StageError{Stage: StageWrite, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageOutput, Err: err}
	}
	if err := writeFileAtomic(opts.OutputPath, data); err != nil {
		return nil, &StageError{Stage: StageOutput, Err: err}
	}
	logger.Info("output written", "path", opts.OutputPath, "pages", len(odd.pages)+len(even.pages), "bytes", len(data))

	return &Result{
		OutputPath: opts.OutputPath,
		OddPages:   len(odd.pages),
		EvenPages:  len(even.pages),
		Pages:      len(odd.pages) + len(even.pages),
		Bytes:      len(data),
	}, nil
}

func load(ctx context.Context, s *side, strict bool, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: s.read, Err: err}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return &StageError{Stage: s.read, Err: err}
	}
	doc, err := reader.Parse(data, reader.WithStrict(strict))
	if err != nil {
		return &StageError{Stage: s.read, Err: fmt.Errorf("%s: %w", s.path, err)}
	}

	if err := ctx.Err(); err != nil {
		return &StageError{Stage: s.extract, Err: err}
	}
	ps, err := pages.Extract(doc)
	if err != nil {
		return &StageError{Stage: s.extract, Err: fmt.Errorf("%s: %w", s.path, err)}
	}
	s.pages = ps
	logger.Debug("document read", "path", s.path, "version", doc.Version(), "pages", len(ps))
	return nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
