// Command pdfstitch combines the two halves of a duplex scan into one PDF.
//
// A sheet feeder without duplex support scans the front sides in order and,
// after the stack is flipped, the back sides in reverse. pdfstitch takes the
// two resulting files and interleaves them back into reading order.
//
// Usage:
//
//	pdfstitch <command> [options] <args>
//
// Commands:
//
//	stitch   Combine an odd-page PDF and a reversed even-page PDF
//	info     Show the version and pages of a PDF file
//	version  Show version information
//	help     Show help message
//
// Examples:
//
//	# Stitch a duplex scan
//	pdfstitch stitch --odd odd.pdf --even even.pdf --output book.pdf
//
//	# Inspect the result
//	pdfstitch info -json book.pdf
package main

import (
	"os"

	"github.com/georgepadayatti/pdfstitch/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/pdfstitch
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime
	cli.Run(os.Args)
}
