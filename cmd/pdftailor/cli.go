package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/yourusername/pdf-tailor/internal/tailor"
)

const version = "0.1.0"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type command int

const (
	commandUnknown command = iota
	commandStitch
	commandUnstitch
)

func parseCommand(name string) command {
	switch name {
	case "stitch":
		return commandStitch
	case "unstitch":
		return commandUnstitch
	default:
		return commandUnknown
	}
}

func (c command) String() string {
	switch c {
	case commandStitch:
		return "stitch"
	case commandUnstitch:
		return "unstitch"
	default:
		return "unknown"
	}
}

const usageText = `pdftailor %s

Usage:
  pdftailor stitch --output <file.pdf> <input.pdf> [input.pdf ...]
  pdftailor unstitch [--output <name>] <input.pdf>

Commands:
  stitch     Concatenate every page of the inputs, in order, into one PDF.
  unstitch   Write each page of the input to its own PDF.

Options:
  -o, --output   stitch: destination file (required).
                 unstitch: output name. "%%d" (or "%%03d") is replaced by the page
                 number; otherwise "_<page>.pdf" is appended to the name without
                 its .pdf extension. Defaults to the input path.
  --verbose      Log each page as it is written.
  --version      Print the version and exit.

Examples:
  pdftailor stitch -o book.pdf cover.pdf body.pdf appendix.pdf
  pdftailor unstitch --output scans/page_%%03d.pdf scans.pdf
  pdftailor unstitch report.pdf        # report_1.pdf, report_2.pdf, ...
`

func printUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, version)
}

type options struct {
	output  string
	verbose bool
	version bool
	files   []string
}

// parseArgs はフラグとファイル引数が混在していても解釈します。"--" 以降はすべてファイルです。
func parseArgs(name string, args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.output, "output", "", "")
	fs.StringVar(&opts.output, "o", "", "")
	fs.BoolVar(&opts.verbose, "verbose", false, "")
	fs.BoolVar(&opts.version, "version", false, "")

	rest := args
	for len(rest) > 0 {
		if err := fs.Parse(rest); err != nil {
			return options{}, err
		}
		consumed := len(rest) - fs.NArg()
		if consumed > 0 && rest[consumed-1] == "--" {
			opts.files = append(opts.files, fs.Args()...)
			break
		}
		if fs.NArg() == 0 {
			break
		}
		opts.files = append(opts.files, fs.Arg(0))
		rest = fs.Args()[1:]
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, lib tailor.Library) int {
	if len(args) == 0 {
		printUsage(stdout)
		return exitOK
	}
	if args[0] == "--version" || args[0] == "-version" {
		fmt.Fprintf(stdout, "pdftailor %s\n", version)
		return exitOK
	}

	cmd := parseCommand(args[0])
	if cmd == commandUnknown {
		printUsage(stdout)
		return exitOK
	}

	opts, err := parseArgs(cmd.String(), args[1:])
	if err != nil {
		return usageError(stderr, err.Error())
	}
	if opts.version {
		fmt.Fprintf(stdout, "pdftailor %s\n", version)
		return exitOK
	}

	logger := log.New(io.Discard, "", 0)
	if opts.verbose {
		logger = log.New(stderr, "pdftailor: ", 0)
	}

	switch cmd {
	case commandStitch:
		return runStitch(ctx, opts, stdout, stderr, lib, logger)
	case commandUnstitch:
		return runUnstitch(ctx, opts, stdout, stderr, lib, logger)
	default:
		printUsage(stdout)
		return exitOK
	}
}

func runStitch(ctx context.Context, opts options, stdout, stderr io.Writer, lib tailor.Library, logger *log.Logger) int {
	if strings.TrimSpace(opts.output) == "" {
		return usageError(stderr, "stitch requires --output")
	}
	if len(opts.files) == 0 {
		return usageError(stderr, "stitch requires at least one input file")
	}

	report, err := tailor.NewStitcher(lib, logger).Stitch(ctx, tailor.StitchRequest{
		Inputs: opts.files,
		Output: opts.output,
	})
	if err != nil {
		return failure(stderr, err)
	}
	fmt.Fprintf(stdout, "%s: %d pages from %d files\n", report.Output, report.Pages, len(report.Sources))
	return exitOK
}

func runUnstitch(ctx context.Context, opts options, stdout, stderr io.Writer, lib tailor.Library, logger *log.Logger) int {
	if len(opts.files) == 0 {
		return usageError(stderr, "unstitch requires an input file")
	}
	if extra := opts.files[1:]; len(extra) > 0 {
		fmt.Fprintf(stderr, "Warning: unstitch uses only %s; ignoring %s\n", opts.files[0], strings.Join(extra, ", "))
	}

	logger.Printf("unstitching %q", opts.files[0])
	report, err := tailor.NewUnstitcher(lib, logger).Unstitch(ctx, tailor.UnstitchRequest{
		Input:    opts.files[0],
		Template: opts.output,
	})
	if report != nil {
		for _, path := range report.Outputs {
			fmt.Fprintln(stdout, path)
		}
	}
	if err != nil {
		if report != nil && len(report.Outputs) > 0 {
			fmt.Fprintf(stderr, "%d of %d pages were written before the failure.\n", len(report.Outputs), report.Pages)
		}
		return failure(stderr, err)
	}
	return exitOK
}

func usageError(stderr io.Writer, message string) int {
	fmt.Fprintf(stderr, "Error: %s\n\n", message)
	printUsage(stderr)
	return exitUsage
}

func failure(stderr io.Writer, err error) int {
	switch {
	case errors.Is(err, tailor.ErrEncrypted):
		fmt.Fprintln(stderr, "Error: Encrypted PDF")
		var pathErr *tailor.PathError
		if errors.As(err, &pathErr) {
			fmt.Fprintf(stderr, "  %s is password protected.\n", pathErr.Path)
		}
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "Error: interrupted")
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitFailure
}
