package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/georgepadayatti/pdfstitch/config"
	"github.com/georgepadayatti/pdfstitch/internal/testpdf"
	"github.com/georgepadayatti/pdfstitch/pdf/assemble"
	"github.com/georgepadayatti/pdfstitch/pdf/pages"
	"github.com/georgepadayatti/pdfstitch/pdf/reader"
	"github.com/georgepadayatti/pdfstitch/stitch"
)

type result struct {
	code   int
	stdout string
	stderr string
}

// runCLI runs the CLI with args after the program name, capturing output
// and the exit code. A run that never exits reports code 0.
func runCLI(t *testing.T, args ...string) result {
	t.Helper()

	var out, errOut bytes.Buffer
	code := 0
	exited := false

	oldExit, oldOut, oldErr := osExit, stdout, stderr
	osExit = func(c int) {
		if !exited {
			code = c
			exited = true
		}
	}
	stdout, stderr = &out, &errOut
	t.Cleanup(func() {
		osExit, stdout, stderr = oldExit, oldOut, oldErr
	})

	Run(append([]string{"pdfstitch"}, args...))
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func markers(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	doc, err := reader.Parse(data, reader.WithStrict(true))
	if err != nil {
		t.Fatalf("Output does not parse: %v", err)
	}
	ps, err := pages.Extract(doc)
	if err != nil {
		t.Fatalf("Output pages: %v", err)
	}
	var got []string
	for _, p := range ps {
		content, err := p.Content()
		if err != nil {
			t.Fatalf("Content: %v", err)
		}
		got = append(got, testpdf.Marker(content))
	}
	return got
}

func TestRunVersion(t *testing.T) {
	oldVersion, oldBuild := Version, BuildTime
	Version, BuildTime = "1.2.3", "2026-10-14"
	defer func() { Version, BuildTime = oldVersion, oldBuild }()

	res := runCLI(t, "version")
	if res.code != 0 {
		t.Errorf("exit code = %d, want 0", res.code)
	}
	want := "pdfstitch version 1.2.3\nBuild time: 2026-10-14\n"
	if res.stdout != want {
		t.Errorf("stdout = %q, want %q", res.stdout, want)
	}
}

func TestRunHelp(t *testing.T) {
	for _, args := range [][]string{nil, {"help"}, {"-h"}, {"--help"}} {
		res := runCLI(t, args...)
		if res.code != 0 {
			t.Errorf("%v: exit code = %d, want 0", args, res.code)
		}
		if !strings.Contains(res.stdout, "Commands:") || !strings.Contains(res.stdout, "stitch") {
			t.Errorf("%v: usage missing commands:\n%s", args, res.stdout)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	res := runCLI(t, "merge")
	if res.code != 1 {
		t.Errorf("exit code = %d, want 1", res.code)
	}
	if !strings.Contains(res.stderr, "Unknown command: merge") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestStitchCommand(t *testing.T) {
	dir := t.TempDir()
	odd := writeFile(t, dir, "odd.pdf", testpdf.PagesPDF("1", "3", "5"))
	even := writeFile(t, dir, "even.pdf", testpdf.Nested("6", "4", "2").Build("/Root 1 0 R"))
	out := filepath.Join(dir, "out.pdf")

	res := runCLI(t, "stitch", "--odd", odd, "--even", even, "--output", out)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
	if want := fmt.Sprintf("Output file is saved at %s (6 pages)\n", out); res.stdout != want {
		t.Errorf("stdout = %q, want %q", res.stdout, want)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "4", "5", "6"}, markers(t, out)); diff != "" {
		t.Errorf("page order mismatch (-want +got):\n%s", diff)
	}
}

func TestStitchCommandPositional(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", testpdf.PagesPDF("a0", "a1"))
	b := writeFile(t, dir, "b.pdf", testpdf.PagesPDF("b0", "b1"))
	out := filepath.Join(dir, "out.pdf")

	res := runCLI(t, "stitch", "-policy", "interleave", "-compress", a, b, out)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
	if diff := cmp.Diff([]string{"a0", "b0", "a1", "b1"}, markers(t, out)); diff != "" {
		t.Errorf("page order mismatch (-want +got):\n%s", diff)
	}
}

func TestStitchCommandPageCountMismatch(t *testing.T) {
	dir := t.TempDir()
	odd := writeFile(t, dir, "odd.pdf", testpdf.PagesPDF("1", "3", "5"))
	even := writeFile(t, dir, "even.pdf", testpdf.PagesPDF("4", "2"))
	out := filepath.Join(dir, "out.pdf")

	res := runCLI(t, "stitch", "--odd", odd, "--even", even, "--output", out)
	if res.code != 1 {
		t.Errorf("exit code = %d, want 1", res.code)
	}
	want := "Error: number of pages in odd and even files should be equal (odd has 3, even has 2)\n"
	if res.stderr != want {
		t.Errorf("stderr = %q, want %q", res.stderr, want)
	}
	if res.stdout != "" {
		t.Errorf("stdout = %q, want nothing", res.stdout)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output file exists after failure: %v", err)
	}
}

func TestStitchCommandUsageErrors(t *testing.T) {
	dir := t.TempDir()
	odd := writeFile(t, dir, "odd.pdf", testpdf.PagesPDF("1"))

	tests := []struct {
		name string
		args []string
	}{
		{name: "no arguments", args: []string{"stitch"}},
		{name: "missing even", args: []string{"stitch", "--odd", odd, "--output", "out.pdf"}},
		{name: "unknown flag", args: []string{"stitch", "--shuffle"}},
		{name: "stray argument", args: []string{"stitch", "--odd", odd, "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.args...)
			if res.code != 1 {
				t.Errorf("exit code = %d, want 1", res.code)
			}
			if res.stderr == "" {
				t.Error("expected usage on stderr")
			}
		})
	}
}

func TestStitchCommandHelp(t *testing.T) {
	res := runCLI(t, "stitch", "-h")
	if res.code != 0 {
		t.Errorf("exit code = %d, want 0", res.code)
	}
	if !strings.Contains(res.stderr, "-odd") || !strings.Contains(res.stderr, "-even") {
		t.Errorf("help missing flags:\n%s", res.stderr)
	}
}

func TestStitchCommandStageError(t *testing.T) {
	dir := t.TempDir()
	even := writeFile(t, dir, "even.pdf", testpdf.PagesPDF("2"))

	res := runCLI(t, "stitch", "--odd", filepath.Join(dir, "missing.pdf"), "--even", even,
		"--output", filepath.Join(dir, "out.pdf"))
	if res.code != 1 {
		t.Errorf("exit code = %d, want 1", res.code)
	}
	if !strings.HasPrefix(res.stderr, "Error: read-odd failed:") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestStitchCommandConfig(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", testpdf.PagesPDF("a0", "a1"))
	b := writeFile(t, dir, "b.pdf", testpdf.PagesPDF("b0", "b1"))
	logFile := filepath.Join(dir, "stitch.log")
	cfg := writeFile(t, dir, "pdfstitch.yaml", []byte(fmt.Sprintf(`
stitch:
  policy: interleave
  parallel_parse: true
logging:
  level: debug
  output: %s
`, logFile)))

	out := filepath.Join(dir, "out.pdf")
	res := runCLI(t, "stitch", "--config", cfg, a, b, out)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
	if diff := cmp.Diff([]string{"a0", "b0", "a1", "b1"}, markers(t, out)); diff != "" {
		t.Errorf("config policy not applied (-want +got):\n%s", diff)
	}

	logs, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(logs), "document read") || strings.Contains(string(logs), "time=") {
		t.Errorf("unexpected log contents:\n%s", logs)
	}

	// An explicit flag wins over the file.
	res = runCLI(t, "stitch", "--config", cfg, "--policy", "reverse-interleave", a, b, out)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
	if diff := cmp.Diff([]string{"a0", "b1", "a1", "b0"}, markers(t, out)); diff != "" {
		t.Errorf("flag did not override config (-want +got):\n%s", diff)
	}
}

func TestStitchCommandInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "bad.yaml", []byte("stitch:\n  policy: shuffle\n"))

	res := runCLI(t, "stitch", "--config", cfg, "a.pdf", "b.pdf", "out.pdf")
	if res.code != 1 {
		t.Errorf("exit code = %d, want 1", res.code)
	}
	if !strings.Contains(res.stderr, "stitch.policy") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestResolveConfig(t *testing.T) {
	tests := []struct {
		name string
		opts StitchOptions
		set  map[string]bool
		want *config.StitchConfig
	}{
		{
			name: "defaults",
			opts: StitchOptions{Policy: "reverse-interleave", LogLevel: "info"},
			want: &config.StitchConfig{Policy: "reverse-interleave", Producer: "pdfstitch"},
		},
		{
			name: "flags",
			opts: StitchOptions{Policy: "interleave", Strict: true, Compress: true, Parallel: true, LogLevel: "info"},
			set:  map[string]bool{"policy": true, "strict": true, "compress": true, "parallel": true},
			want: &config.StitchConfig{Policy: "interleave", Strict: true, Compress: true, ParallelParse: true, Producer: "pdfstitch"},
		},
		{
			name: "unset flags ignored",
			opts: StitchOptions{Policy: "reverse-interleave", Strict: true, LogLevel: "info"},
			want: &config.StitchConfig{Policy: "reverse-interleave", Producer: "pdfstitch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := resolveConfig(&tt.opts, tt.set)
			if err != nil {
				t.Fatalf("resolveConfig failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, cfg.Stitch); diff != "" {
				t.Errorf("Stitch mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "mismatch",
			err: &stitch.StageError{Stage: stitch.StageAssemble, Err: &assemble.AssemblyError{
				Kind: assemble.PageCountMismatch, LenA: 4, LenB: 5,
			}},
			want: "number of pages in odd and even files should be equal (odd has 4, even has 5)",
		},
		{
			name: "stage",
			err:  &stitch.StageError{Stage: stitch.StageWrite, Err: errors.New("disk full")},
			want: "write failed: disk full",
		},
		{
			name: "plain",
			err:  errors.New("boom"),
			want: "boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describe(tt.err); got != tt.want {
				t.Errorf("describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfoCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nested.pdf", testpdf.Nested("p1", "p2").Build("/Root 1 0 R"))

	res := runCLI(t, "info", path)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
	for _, want := range []string{
		"Version:  1.7",
		"Pages:    2",
		"Page 1: MediaBox [0 0 595 842] Content",
		"Page 2: MediaBox [0 0 612 792] Rotate 90 Content",
	} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("output missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestInfoCommandJSON(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", testpdf.PagesPDF("a0"))
	b := writeFile(t, dir, "b.pdf", testpdf.PagesPDF("b0"))
	out := filepath.Join(dir, "out.pdf")
	if res := runCLI(t, "stitch", "--title", "Duplex", "--timestamp", a, b, out); res.code != 0 {
		t.Fatalf("stitch failed: %s", res.stderr)
	}

	res := runCLI(t, "info", "-json", out)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}

	var got InfoOutput
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, res.stdout)
	}
	if got.Producer != "pdfstitch" || got.Title != "Duplex" || got.Pages != 2 || len(got.PageInfo) != 2 {
		t.Errorf("unexpected info: %+v", got)
	}
	if _, err := time.Parse(time.RFC3339, got.Created); err != nil {
		t.Errorf("creation_date %q: %v", got.Created, err)
	}
	if got.PageInfo[0].MediaBox != [4]float64{0, 0, 612, 792} {
		t.Errorf("MediaBox = %v", got.PageInfo[0].MediaBox)
	}
	wantLen := len(testpdf.Content("a0"))
	if got.PageInfo[0].ContentBytes != wantLen {
		t.Errorf("ContentBytes = %d, want %d", got.PageInfo[0].ContentBytes, wantLen)
	}
}

func TestInfoCommandErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := writeFile(t, dir, "garbage.pdf", []byte("not a pdf"))

	tests := []struct {
		name string
		args []string
	}{
		{name: "no file", args: []string{"info"}},
		{name: "missing file", args: []string{"info", filepath.Join(dir, "missing.pdf")}},
		{name: "garbage", args: []string{"info", garbage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := runCLI(t, tt.args...); res.code != 1 {
				t.Errorf("exit code = %d, want 1", res.code)
			}
		})
	}
}
