// Package pdf exposes the profile extraction pipeline to the MCP, HTTP and CLI
// front ends.
package pdf

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/a3tai/mcp-perfil-reader/internal/log"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf/acquire"
	pdferrors "github.com/a3tai/mcp-perfil-reader/internal/pdf/errors"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf/security"
	"github.com/a3tai/mcp-perfil-reader/internal/perfil"
)

// Acquirer produces the text blob of one document. *acquire.Policy implements it.
type Acquirer interface {
	Acquire(ctx context.Context, path string) (*acquire.Report, error)
	AcquireBytes(ctx context.Context, name string, data []byte) (*acquire.Report, error)
	Options() acquire.Options
}

// Options configures a Service
type Options struct {
	MaxFileSize int64
	// Directory confines MCP path access
	Directory string
}

// Service runs acquisition then field parsing for one document per call.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	maxFileSize   int64
	validator     *Validator
	search        *Search
	acquirer      Acquirer
	parser        *perfil.Parser
	pathValidator *security.PathValidator
	info          *ServerInfo
}

// NewService creates a service over an acquirer and a field parser
func NewService(opts Options, acquirer Acquirer, parser *perfil.Parser) (*Service, error) {
	if acquirer == nil {
		return nil, fmt.Errorf("acquirer is required")
	}
	if parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	pathValidator, err := security.NewPathValidator(opts.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	s := &Service{
		maxFileSize:   opts.MaxFileSize,
		validator:     NewValidator(opts.MaxFileSize),
		search:        NewSearch(opts.MaxFileSize),
		acquirer:      acquirer,
		parser:        parser,
		pathValidator: pathValidator,
	}
	s.info = NewServerInfo(s)
	return s, nil
}

// Extract runs the pipeline on the PDF at path
func (s *Service) Extract(ctx context.Context, path string) (*ExtractResult, error) {
	return s.ExtractAs(ctx, path, filepath.Base(path))
}

// ExtractAs runs the pipeline on the PDF at path and reports it as filename.
// Uploads staged in temp files keep their client name this way.
func (s *Service) ExtractAs(ctx context.Context, path, filename string) (*ExtractResult, error) {
	start := time.Now()
	if err := s.validator.validateDocument(path, filename); err != nil {
		return nil, err
	}

	report, err := s.acquirer.Acquire(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.finish(filename, report, start), nil
}

// ExtractBytes runs the pipeline on an in-memory PDF
func (s *Service) ExtractBytes(ctx context.Context, filename string, data []byte) (*ExtractResult, error) {
	start := time.Now()
	if err := s.validator.checkSize(int64(len(data))); err != nil {
		return nil, err
	}
	if !HasPDFHeader(data) {
		return nil, pdferrors.NewDocumentOpenError(filename, fmt.Errorf("missing %s header", pdfMagic))
	}

	report, err := s.acquirer.AcquireBytes(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	return s.finish(filename, report, start), nil
}

// ExtractFile resolves req.Path inside the configured directory, then extracts
func (s *Service) ExtractFile(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	path, err := s.pathValidator.Resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	return s.Extract(ctx, path)
}

func (s *Service) finish(filename string, report *acquire.Report, start time.Time) *ExtractResult {
	parsed := s.parser.Parse(report.Text)

	res := &ExtractResult{
		Success:       true,
		Filename:      filename,
		ExtractedData: parsed.Values,
		FieldsFound:   parsed.FieldsFound(),
		TotalFields:   parsed.TotalFields(),
		Defaulted:     parsed.Defaulted,
		Metadata: Metadata{
			Report:       *report,
			TextLength:   utf8.RuneCountInString(report.Text),
			ProcessingMS: time.Since(start).Milliseconds(),
		},
	}

	log.With("document", filename).Infof("extracted %d/%d fields (mode=%s, fallback=%t, ocr=%d, %dms)",
		res.FieldsFound, res.TotalFields, report.Mode, report.FallbackTriggered,
		report.OCRInvocations, res.Metadata.ProcessingMS)
	return res
}

// Fields lists the declared fields in extraction order
func (s *Service) Fields() *FieldsResult {
	specs := s.parser.Specs()
	out := &FieldsResult{Fields: make([]FieldInfo, 0, len(specs))}
	for _, spec := range specs {
		out.Fields = append(out.Fields, FieldInfo{
			Name:        spec.Name,
			Description: spec.Description,
			Patterns:    len(spec.Patterns),
			Validation:  spec.Rule,
			Default:     spec.Default,
		})
	}
	out.TotalCount = len(out.Fields)
	return out
}

// SearchDirectory lists PDFs under a directory inside the configured root.
// An empty directory means the root itself.
func (s *Service) SearchDirectory(req SearchDirectoryRequest) (*SearchDirectoryResult, error) {
	dir := req.Directory
	if dir == "" {
		dir = s.pathValidator.ConfiguredDirectory()
	}
	resolved, err := s.pathValidator.Resolve(dir)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if err := s.pathValidator.ValidateDirectory(resolved); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	req.Directory = resolved
	return s.search.SearchDirectory(req)
}

// ServerInfo describes the server, its tools and the active pipeline
func (s *Service) ServerInfo(ctx context.Context, serverName, version string) *ServerInfoResult {
	return s.info.Get(ctx, serverName, version)
}

// Pipeline returns the active acquisition configuration
func (s *Service) Pipeline() PipelineInfo {
	opts := s.acquirer.Options()
	return PipelineInfo{
		Mode:              string(opts.Mode),
		FallbackThreshold: opts.FallbackThreshold,
		OCRLanguage:       opts.Language,
		OCRWorkers:        opts.Workers,
		TimeoutSeconds:    int(opts.Timeout / time.Second),
	}
}

// MaxFileSize returns the maximum file size limit
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// ConfiguredDirectory returns the root of MCP path access
func (s *Service) ConfiguredDirectory() string {
	return s.pathValidator.ConfiguredDirectory()
}
