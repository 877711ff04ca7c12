package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/georgepadayatti/pdfstitch/pdf/metadata"
	"github.com/georgepadayatti/pdfstitch/pdf/pages"
	"github.com/georgepadayatti/pdfstitch/pdf/reader"
)

// InfoOptions contains options for the info command.
type InfoOptions struct {
	JSON   bool
	Strict bool
}

// InfoCommand implements the 'info' command.
func InfoCommand(args []string) {
	infoFlags := flag.NewFlagSet("info", flag.ContinueOnError)
	infoFlags.SetOutput(stderr)

	var opts InfoOptions

	infoFlags.BoolVar(&opts.JSON, "json", false, "Output results in JSON format")
	infoFlags.BoolVar(&opts.Strict, "strict", false, "Fail on references to missing objects")

	infoFlags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s info [options] <input.pdf>\n\n", progName())
		fmt.Fprintln(stderr, "Show the version and pages of a PDF file.")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Options:")
		infoFlags.PrintDefaults()
	}

	if err := infoFlags.Parse(args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		osExit(1)
		return
	}

	if len(infoFlags.Args()) != 1 {
		infoFlags.Usage()
		osExit(1)
		return
	}

	output, err := documentInfo(infoFlags.Arg(0), &opts)
	if err != nil {
		printError(err)
		osExit(1)
		return
	}

	if opts.JSON {
		outputJSON(output)
	} else {
		outputText(output)
	}
}

// InfoOutput describes a PDF file.
type InfoOutput struct {
	File     string      `json:"file"`
	Version  string      `json:"version"`
	Title    string      `json:"title,omitempty"`
	Producer string      `json:"producer,omitempty"`
	Created  string      `json:"creation_date,omitempty"`
	Pages    int         `json:"pages"`
	PageInfo []*PageInfo `json:"page_info"`
}

// PageInfo describes one page with its inherited attributes resolved.
type PageInfo struct {
	Number       int        `json:"number"`
	Object       string     `json:"object,omitempty"`
	MediaBox     [4]float64 `json:"media_box"`
	Rotate       int        `json:"rotate"`
	ContentBytes int        `json:"content_bytes"`
}

func documentInfo(path string, opts *InfoOptions) (*InfoOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	doc, err := reader.Parse(data, reader.WithStrict(opts.Strict))
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	ps, err := pages.Extract(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to read pages: %w", err)
	}

	output := &InfoOutput{
		File:     path,
		Version:  doc.Version(),
		Pages:    len(ps),
		PageInfo: make([]*PageInfo, 0, len(ps)),
	}

	info, err := metadata.ReadInfo(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to read document info: %w", err)
	}
	if info != nil {
		output.Title = info.Title
		output.Producer = info.Producer
		if info.Created != nil {
			output.Created = info.Created.Format(time.RFC3339)
		}
	}

	for _, p := range ps {
		pi := &PageInfo{
			Number: p.Index() + 1,
			Rotate: p.Rotate(),
		}
		if ref := p.Ref(); ref.ObjectNumber > 0 {
			pi.Object = fmt.Sprintf("%d %d R", ref.ObjectNumber, ref.GenerationNumber)
		}
		box, err := p.MediaBox()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pi.Number, err)
		}
		pi.MediaBox = [4]float64{box.LLX, box.LLY, box.URX, box.URY}
		content, err := p.Content()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pi.Number, err)
		}
		pi.ContentBytes = len(content)
		output.PageInfo = append(output.PageInfo, pi)
	}

	return output, nil
}

func outputJSON(output *InfoOutput) {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error encoding JSON: %v\n", err)
		osExit(1)
		return
	}
	fmt.Fprintln(stdout, string(data))
}

func outputText(output *InfoOutput) {
	fmt.Fprintf(stdout, "File:     %s\n", output.File)
	fmt.Fprintf(stdout, "Version:  %s\n", output.Version)
	if output.Title != "" {
		fmt.Fprintf(stdout, "Title:    %s\n", output.Title)
	}
	if output.Producer != "" {
		fmt.Fprintf(stdout, "Producer: %s\n", output.Producer)
	}
	if output.Created != "" {
		fmt.Fprintf(stdout, "Created:  %s\n", output.Created)
	}
	fmt.Fprintf(stdout, "Pages:    %d\n", output.Pages)

	for _, pi := range output.PageInfo {
		b := pi.MediaBox
		fmt.Fprintf(stdout, "  Page %d: MediaBox [%g %g %g %g]", pi.Number, b[0], b[1], b[2], b[3])
		if pi.Rotate != 0 {
			fmt.Fprintf(stdout, " Rotate %d", pi.Rotate)
		}
		fmt.Fprintf(stdout, " Content %d bytes\n", pi.ContentBytes)
	}
}
