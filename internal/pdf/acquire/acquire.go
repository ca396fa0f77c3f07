// Package acquire builds the single text blob of a document from its embedded
// text and, when needed, OCR over its embedded images.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-perfil-reader/internal/log"
	"github.com/a3tai/mcp-perfil-reader/internal/ocr"
	pdferrors "github.com/a3tai/mcp-perfil-reader/internal/pdf/errors"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf/loader"
)

// Mode selects when OCR runs
type Mode string

const (
	// ModeExhaustive runs OCR on every embedded image regardless of embedded text.
	ModeExhaustive Mode = "exhaustive"
	// ModeFallback runs OCR only when embedded text is shorter than the threshold.
	ModeFallback Mode = "fallback"
)

// ParseMode parses a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeExhaustive:
		return ModeExhaustive, nil
	case ModeFallback, "":
		return ModeFallback, nil
	}
	return "", fmt.Errorf("unknown acquisition mode %q (expected exhaustive or fallback)", s)
}

// Defaults
const (
	DefaultFallbackThreshold = 100
	DefaultWorkers           = 4
	DefaultTimeout           = 60 * time.Second
)

// Options parameterizes the policy
type Options struct {
	Mode              Mode
	FallbackThreshold int           // in characters of trimmed embedded text
	Language          string        // OCR language hint
	Workers           int           // concurrent OCR calls across all requests
	Timeout           time.Duration // per document; zero disables the deadline
}

// DefaultOptions returns fallback mode with Spanish OCR
func DefaultOptions() Options {
	return Options{
		Mode:              ModeFallback,
		FallbackThreshold: DefaultFallbackThreshold,
		Language:          ocr.DefaultLanguage,
		Workers:           DefaultWorkers,
		Timeout:           DefaultTimeout,
	}
}

// Recognizer is the OCR capability the policy needs. *ocr.Adapter implements it.
type Recognizer interface {
	Recognize(ctx context.Context, ref loader.ImageRef, lang string) ocr.Result
}

// Report is the acquired text plus counters describing how it was produced
type Report struct {
	Text              string `json:"-"`
	Mode              Mode   `json:"mode"`
	FallbackTriggered bool   `json:"fallback_triggered"`
	Pages             int    `json:"pages"`
	EmbeddedChars     int    `json:"embedded_chars"`
	FormFields        int    `json:"form_fields"`
	PageErrors        int    `json:"page_errors"`
	Images            int    `json:"images"`
	ImageErrors       int    `json:"image_errors"`
	OCRInvocations    int    `json:"ocr_invocations"`
	OCRFailures       int    `json:"ocr_failures"`
	TimedOut          bool   `json:"timed_out"`
}

// Policy owns the loader, the OCR recognizer and a bounded worker pool shared
// by all requests. A Policy is safe for concurrent use.
type Policy struct {
	loader     loader.Loader
	recognizer Recognizer
	opts       Options
	pool       *ants.PoolWithFunc
}

// New creates a policy. Close releases its worker pool.
func New(l loader.Loader, r Recognizer, opts Options) (*Policy, error) {
	if l == nil {
		return nil, errors.New("loader is required")
	}
	if r == nil {
		return nil, errors.New("recognizer is required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeFallback
	}
	if opts.Mode != ModeFallback && opts.Mode != ModeExhaustive {
		return nil, fmt.Errorf("unknown acquisition mode %q", opts.Mode)
	}
	if opts.FallbackThreshold < 0 {
		return nil, fmt.Errorf("fallback threshold must be >= 0, got %d", opts.FallbackThreshold)
	}
	if opts.Language == "" {
		opts.Language = ocr.DefaultLanguage
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	p := &Policy{loader: l, recognizer: r, opts: opts}
	pool, err := createOCRPool(opts.Workers)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// Options returns the effective options
func (p *Policy) Options() Options {
	return p.opts
}

// Close releases the worker pool
func (p *Policy) Close() error {
	p.pool.Release()
	return nil
}

// Acquire opens the document at path and builds its text blob.
// Only a failure to open the document is returned as an error.
func (p *Policy) Acquire(ctx context.Context, path string) (*Report, error) {
	doc, err := p.loader.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return p.acquire(ctx, path, doc), nil
}

// AcquireBytes is Acquire for an in-memory document
func (p *Policy) AcquireBytes(ctx context.Context, name string, data []byte) (*Report, error) {
	doc, err := p.loader.OpenBytes(name, data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return p.acquire(ctx, name, doc), nil
}

func (p *Policy) acquire(ctx context.Context, name string, doc loader.Document) *Report {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}
	logger := log.With("document", name)

	report := &Report{Mode: p.opts.Mode, Pages: doc.PageCount()}

	var blob strings.Builder
	first := true
	for page := range doc.Pages() {
		text, err := page.Text()
		if err != nil {
			report.PageErrors++
			logger.Warnf("Embedded text unavailable on page %d: %v", page.Number(), err)
			text = ""
		}
		if !first {
			blob.WriteString("\n")
		}
		first = false
		blob.WriteString(text)
	}
	if forms, ok := doc.(loader.FormReader); ok {
		p.appendFormFields(forms, logger, report, &blob)
	}
	report.EmbeddedChars = utf8.RuneCountInString(strings.TrimSpace(blob.String()))

	runOCR := p.opts.Mode == ModeExhaustive
	if p.opts.Mode == ModeFallback && report.EmbeddedChars < p.opts.FallbackThreshold {
		runOCR = true
		report.FallbackTriggered = true
		logger.Infof("Embedded text has %d chars (< %d), falling back to OCR",
			report.EmbeddedChars, p.opts.FallbackThreshold)
	}

	if runOCR {
		images := p.collectImages(ctx, doc, logger, report)

		for _, res := range p.recognizeAll(ctx, images) {
			if res.invoked {
				report.OCRInvocations++
			}
			switch {
			case res.skipped:
				report.TimedOut = true
				logger.Debugf("%v", res.Err)
			case res.Status == ocr.StatusFailed:
				report.OCRFailures++
			case res.Text != "":
				blob.WriteString("\n")
				blob.WriteString(res.Text)
			}
		}
	}

	if ctx.Err() != nil {
		report.TimedOut = true
		logger.Warnf("Processing deadline reached, returning partial text")
	}

	report.Text = blob.String()
	return report
}

// appendFormFields adds filled-in form values as "label: value" lines after
// the page text. They count as embedded text.
func (p *Policy) appendFormFields(forms loader.FormReader, logger *zap.SugaredLogger, report *Report, blob *strings.Builder) {
	fields, err := forms.FormFields()
	if err != nil {
		logger.Warnf("Form fields unavailable: %v", err)
		return
	}
	for _, f := range fields {
		blob.WriteString("\n")
		blob.WriteString(f.Text())
	}
	report.FormFields = len(fields)
	if len(fields) > 0 {
		logger.Debugf("Read %d filled-in form field(s)", len(fields))
	}
}

// collectImages gathers every decodable embedded image in document order:
// page order, then encounter order within the page. An image that failed to
// decode is counted and left out. Extraction is sequential because the
// underlying pdfcpu context is not safe for concurrent use.
func (p *Policy) collectImages(ctx context.Context, doc loader.Document, logger *zap.SugaredLogger, report *Report) []loader.ImageRef {
	var images []loader.ImageRef
	for page := range doc.Pages() {
		if ctx.Err() != nil {
			report.TimedOut = true
			break
		}
		refs, err := page.Images()
		if err != nil {
			report.PageErrors++
			logger.Warnf("Images unavailable on page %d: %v", page.Number(), err)
			continue
		}
		for _, ref := range refs {
			report.Images++
			if ref.Err != nil {
				report.ImageErrors++
				logger.Warnf("Skipping image: %v", ref.Err)
				continue
			}
			images = append(images, ref)
		}
	}
	return images
}

type slot struct {
	ocr.Result
	invoked bool
	skipped bool
}

type ocrTask struct {
	idx     int
	ctx     context.Context
	ref     loader.ImageRef
	lang    string
	rec     Recognizer
	results []slot
	wg      *sync.WaitGroup
}

func (t *ocrTask) reset() {
	*t = ocrTask{}
}

var ocrTaskPool = &sync.Pool{
	New: func() any { return new(ocrTask) },
}

func createOCRPool(size int) (*ants.PoolWithFunc, error) {
	pool, err := ants.NewPoolWithFunc(size, func(args any) {
		task, ok := args.(*ocrTask)
		if !ok {
			panic("ocr pool args type error")
		}
		wg := task.wg
		defer func() {
			wg.Done()
			task.reset()
			ocrTaskPool.Put(task)
		}()
		if err := task.ctx.Err(); err != nil {
			task.results[task.idx] = slot{
				Result: ocr.Result{
					Status: ocr.StatusFailed,
					Err: pdferrors.WrapError(pdferrors.ErrorTypeTimeout, "ocr skipped", err).
						WithPage(task.ref.PageNumber).
						WithImage(task.ref.Index),
				},
				skipped: true,
			}
			return
		}
		task.results[task.idx] = slot{
			Result:  task.rec.Recognize(task.ctx, task.ref, task.lang),
			invoked: true,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create ocr pool: %w", err)
	}
	return pool, nil
}

// recognizeAll runs OCR over images on the worker pool. Results come back in
// input order whatever order the workers finish in.
func (p *Policy) recognizeAll(ctx context.Context, images []loader.ImageRef) []slot {
	results := make([]slot, len(images))
	var wg sync.WaitGroup
	for idx, ref := range images {
		wg.Add(1)
		task := ocrTaskPool.Get().(*ocrTask)
		task.idx = idx
		task.ctx = ctx
		task.ref = ref
		task.lang = p.opts.Language
		task.rec = p.recognizer
		task.results = results
		task.wg = &wg
		if err := p.pool.Invoke(task); err != nil {
			wg.Done()
			results[idx] = slot{Result: ocr.Result{
				Status: ocr.StatusFailed,
				Err:    pdferrors.NewOCRFailure(ref.PageNumber, ref.Index, fmt.Errorf("submit ocr task: %w", err)),
			}}
			task.reset()
			ocrTaskPool.Put(task)
		}
	}
	wg.Wait()
	return results
}
