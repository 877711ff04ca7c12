// Package cli provides the command-line interface for stitching scanned
// odd and even page PDF files.
package cli

import (
	"fmt"
	"io"
	"os"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// osExit is a variable for os.Exit to allow testing
var osExit = os.Exit

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Run executes the CLI with the given arguments.
// This is the main entry point for the CLI.
func Run(args []string) {
	if len(args) < 2 {
		Usage()
		return
	}

	command := args[1]

	switch command {
	case "stitch":
		StitchCommand(args)
	case "info":
		InfoCommand(args)
	case "version":
		VersionCommand()
	case "help", "-h", "--help":
		Usage()
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		Usage()
		osExit(1)
	}
}

// Usage prints the CLI usage information.
func Usage() {
	fmt.Fprintf(stdout, "pdfstitch - interleave the odd and even pages of a duplex scan\n\n")
	fmt.Fprintf(stdout, "Usage: %s <command> [options] <args>\n\n", progName())
	fmt.Fprintln(stdout, "Commands:")
	fmt.Fprintln(stdout, "  stitch   Combine an odd-page PDF and a reversed even-page PDF")
	fmt.Fprintln(stdout, "  info     Show the version and pages of a PDF file")
	fmt.Fprintln(stdout, "  version  Show version information")
	fmt.Fprintln(stdout, "  help     Show this help message")
	fmt.Fprintln(stdout, "")
	fmt.Fprintf(stdout, "Use '%s <command> -h' for command-specific help\n", progName())
	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "Examples:")
	fmt.Fprintf(stdout, "  %s stitch --odd odd.pdf --even even.pdf --output book.pdf\n", progName())
	fmt.Fprintf(stdout, "  %s info book.pdf\n", progName())
	fmt.Fprintf(stdout, "  %s info -json book.pdf\n", progName())
}

// VersionCommand prints version information.
func VersionCommand() {
	fmt.Fprintf(stdout, "pdfstitch version %s\n", Version)
	fmt.Fprintf(stdout, "Build time: %s\n", BuildTime)
}

func progName() string {
	if len(os.Args) > 0 {
		return os.Args[0]
	}
	return "pdfstitch"
}
