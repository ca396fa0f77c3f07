// Command perfil-extract extracts Perfil Único fields from PDF files and
// prints them as JSON or text, optionally collecting them in a workbook.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-perfil-reader/internal/config"
	"github.com/a3tai/mcp-perfil-reader/internal/export"
	"github.com/a3tai/mcp-perfil-reader/internal/log"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf"
	"github.com/a3tai/mcp-perfil-reader/internal/pipeline"
)

const (
	formatJSON = "json"
	formatText = "text"

	stdinName = "stdin.pdf"
)

// extractor is the part of pdf.Service the command uses
type extractor interface {
	Extract(ctx context.Context, path string) (*pdf.ExtractResult, error)
	ExtractBytes(ctx context.Context, filename string, data []byte) (*pdf.ExtractResult, error)
	Fields() *pdf.FieldsResult
}

type runner struct {
	svc      extractor
	search   *pdf.Search
	format   string
	xlsxPath string

	stdin  io.Reader
	stdout io.Writer
}

// failure is the JSON entry of a document that could not be processed
type failure struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// expand turns arguments into documents: directories contribute the PDFs
// below them, "-" is standard input.
func (r *runner) expand(args []string) ([]string, error) {
	var docs []string
	for _, arg := range args {
		if arg == "-" {
			docs = append(docs, arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			docs = append(docs, arg)
			continue
		}
		files, err := r.search.FindPDFsInDirectory(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", arg, err)
		}
		if len(files) == 0 {
			log.Warnf("No PDF files found in %s", arg)
		}
		for _, f := range files {
			docs = append(docs, f.Path)
		}
	}
	return docs, nil
}

func (r *runner) extractOne(ctx context.Context, doc string) (*pdf.ExtractResult, error) {
	if doc != "-" {
		return r.svc.Extract(ctx, doc)
	}
	data, err := io.ReadAll(r.stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read standard input: %w", err)
	}
	return r.svc.ExtractBytes(ctx, stdinName, data)
}

// run processes every document and returns how many failed.
func (r *runner) run(ctx context.Context, args []string) (int, error) {
	if r.format != formatJSON && r.format != formatText {
		return 0, fmt.Errorf("unknown format %q (expected json or text)", r.format)
	}

	docs, err := r.expand(args)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, errors.New("no PDF files to process")
	}

	var names []string
	for _, f := range r.svc.Fields().Fields {
		names = append(names, f.Name)
	}

	var wb *export.Workbook
	if r.xlsxPath != "" {
		if wb, err = export.NewWorkbook(names); err != nil {
			return 0, err
		}
		defer wb.Close()
	}

	var (
		failed  int
		entries []any
	)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return failed, err
		}

		name := doc
		if doc == "-" {
			name = stdinName
		}

		result, err := r.extractOne(ctx, doc)
		if err != nil {
			failed++
			log.Errorf("Failed to process %s: %v", name, err)
			entries = append(entries, failure{Filename: name, Error: err.Error()})
			if wb != nil {
				if err := wb.AddFailure(name, err); err != nil {
					return failed, err
				}
			}
			continue
		}

		entries = append(entries, result)
		if wb != nil {
			if err := wb.Add(result); err != nil {
				return failed, err
			}
		}
		if r.format == formatText {
			if len(entries) > 1 {
				fmt.Fprintln(r.stdout)
			}
			if err := export.WriteText(r.stdout, result, names); err != nil {
				return failed, err
			}
		}
	}

	if r.format == formatJSON {
		enc := json.NewEncoder(r.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return failed, err
		}
	}

	if wb != nil {
		if err := wb.SaveAs(r.xlsxPath); err != nil {
			return failed, err
		}
		log.Infof("Wrote %d row(s) to %s", wb.Rows(), r.xlsxPath)
	}
	return failed, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <file.pdf|directory|->...\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nExtracts Perfil Único fields from PDF files. Directories are searched\n")
	fmt.Fprintf(os.Stderr, "recursively and - reads one PDF from standard input.\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	pflag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s perfil.pdf\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --format=text --acquisition=exhaustive escaneado.pdf\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --xlsx=perfiles.xlsx convocatoria/\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  cat perfil.pdf | %s -\n", os.Args[0])
}

func main() {
	format := pflag.String("format", formatJSON, "Output format: json or text")
	xlsxPath := pflag.String("xlsx", "", "Also write results to this XLSX workbook")

	cfg, err := config.Load(usage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}
	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.LogLevel)

	if pflag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	r := &runner{
		svc:      p.Service,
		search:   pdf.NewSearch(cfg.MaxFileSize),
		format:   *format,
		xlsxPath: *xlsxPath,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
	}
	failed, err := r.run(ctx, pflag.Args())
	stop()
	p.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
