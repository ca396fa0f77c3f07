// Package pipeline assembles the extraction service from configuration:
// loader, OCR engine, acquisition policy and field parser.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/a3tai/mcp-perfil-reader/internal/config"
	"github.com/a3tai/mcp-perfil-reader/internal/log"
	"github.com/a3tai/mcp-perfil-reader/internal/ocr"
	"github.com/a3tai/mcp-perfil-reader/internal/ocr/tesseract"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf/acquire"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf/loader"
	"github.com/a3tai/mcp-perfil-reader/internal/perfil"
)

// Pipeline owns the service and the resources behind it.
type Pipeline struct {
	Service *pdf.Service

	policy  *acquire.Policy
	adapter *ocr.Adapter
}

// New builds the pipeline with a Tesseract engine. When Tesseract cannot be
// initialised extraction still runs, on embedded text only.
func New(cfg *config.Config) (*Pipeline, error) {
	opts := cfg.PipelineOptions()

	var engine ocr.Engine
	tess, err := tesseract.New(tesseract.Options{
		Language:       opts.Acquire.Language,
		PageSegMode:    opts.PageSegMode,
		TessdataPrefix: opts.TessdataPrefix,
	})
	if err != nil {
		log.Warnf("OCR disabled, Tesseract unavailable: %v", err)
		engine = ocr.Unavailable{}
	} else {
		engine = tess
	}

	return NewWithEngine(cfg, engine)
}

// NewWithEngine builds the pipeline around an explicit OCR engine.
func NewWithEngine(cfg *config.Config, engine ocr.Engine) (*Pipeline, error) {
	opts := cfg.PipelineOptions()
	adapter := ocr.NewAdapter(engine)

	policy, err := acquire.New(loader.New(), adapter, opts.Acquire)
	if err != nil {
		adapter.Close()
		return nil, fmt.Errorf("failed to create acquisition policy: %w", err)
	}

	svc, err := pdf.NewService(
		pdf.Options{MaxFileSize: cfg.MaxFileSize, Directory: cfg.PDFDirectory},
		policy,
		perfil.NewParser(opts.Perfil),
	)
	if err != nil {
		policy.Close()
		adapter.Close()
		return nil, fmt.Errorf("failed to create PDF service: %w", err)
	}

	log.Debugf("Pipeline ready: acquisition=%s threshold=%d lang=%s workers=%d timeout=%s",
		opts.Acquire.Mode, opts.Acquire.FallbackThreshold, opts.Acquire.Language,
		opts.Acquire.Workers, opts.Acquire.Timeout)

	return &Pipeline{Service: svc, policy: policy, adapter: adapter}, nil
}

// Close releases the worker pool and the OCR engine.
func (p *Pipeline) Close() error {
	return errors.Join(p.policy.Close(), p.adapter.Close())
}
