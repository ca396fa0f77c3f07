// Package tesseract implements ocr.Engine on top of Tesseract via gosseract.
//
// Requires libtesseract and the traineddata files for every language used,
// e.g. apt-get install tesseract-ocr tesseract-ocr-spa libtesseract-dev.
package tesseract

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/a3tai/mcp-perfil-reader/internal/log"
)

// Options configures the engine. It is built once from configuration and
// passed in explicitly; the engine reads no process-wide state.
type Options struct {
	// Language is the default language, e.g. "spa" or "spa+eng".
	Language string
	// PageSegMode is the Tesseract PSM (0-13). Out of range keeps Tesseract's default.
	PageSegMode int
	// TessdataPrefix overrides TESSDATA_PREFIX when set.
	TessdataPrefix string
}

// Engine recognizes text with pooled gosseract clients. Clients are expensive
// to initialise per language, so there is one pool per language string.
type Engine struct {
	opts Options

	mu     sync.Mutex
	pools  map[string]*sync.Pool
	closed bool
}

// New creates an engine and checks that the default language is installed.
func New(opts Options) (*Engine, error) {
	if opts.Language == "" {
		opts.Language = "spa"
	}
	if opts.PageSegMode < 0 || opts.PageSegMode > 13 {
		opts.PageSegMode = 0
	}

	if opts.TessdataPrefix == "" {
		if err := checkLanguages(opts.Language); err != nil {
			return nil, err
		}
	}

	return &Engine{
		opts:  opts,
		pools: make(map[string]*sync.Pool),
	}, nil
}

func checkLanguages(lang string) error {
	available, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("failed to list tesseract languages: %w", err)
	}
	for _, l := range splitLanguages(lang) {
		if !slices.Contains(available, l) {
			return fmt.Errorf("tesseract language %q is not installed", l)
		}
	}
	return nil
}

// splitLanguages turns "spa+eng" into ["spa", "eng"]
func splitLanguages(lang string) []string {
	var out []string
	for _, l := range strings.Split(lang, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func (e *Engine) pool(lang string) (*sync.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("tesseract engine is closed")
	}
	if p, ok := e.pools[lang]; ok {
		return p, nil
	}

	langs := splitLanguages(lang)
	opts := e.opts
	if opts.TessdataPrefix == "" && lang != opts.Language {
		if err := checkLanguages(lang); err != nil {
			return nil, err
		}
	}

	// the first client surfaces configuration errors to the caller
	first, err := newClient(langs, opts)
	if err != nil {
		return nil, err
	}
	p := &sync.Pool{
		New: func() any {
			client, err := newClient(langs, opts)
			if err != nil {
				log.Warnf("Tesseract client for %q not created: %v", lang, err)
				return nil
			}
			return client
		},
	}
	p.Put(first)
	e.pools[lang] = p
	return p, nil
}

func newClient(langs []string, opts Options) (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(langs...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set language %q: %w", strings.Join(langs, "+"), err)
	}
	if opts.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set page segmentation mode %d: %w", opts.PageSegMode, err)
		}
	}
	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	return client, nil
}

// Recognize runs OCR on a PNG encoded image. It respects ctx cancellation; a
// cancelled call abandons the in-flight recognition, whose client is then
// dropped instead of being returned to the pool.
func (e *Engine) Recognize(ctx context.Context, img []byte, lang string) (string, error) {
	if len(img) == 0 {
		return "", fmt.Errorf("empty image")
	}
	if lang == "" {
		lang = e.opts.Language
	}
	if len(splitLanguages(lang)) == 0 {
		return "", fmt.Errorf("invalid language %q", lang)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	p, err := e.pool(lang)
	if err != nil {
		return "", err
	}

	type result struct {
		text string
		err  error
	}
	// buffered so the worker never blocks after a cancellation
	resultCh := make(chan result, 1)

	client, ok := p.Get().(*gosseract.Client)
	if !ok || client == nil {
		return "", fmt.Errorf("no tesseract client available for %q", lang)
	}
	go func() {
		text, err := recognize(client, img)
		if ctx.Err() == nil {
			p.Put(client)
		} else {
			_ = client.Close()
		}
		resultCh <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		return res.text, res.err
	}
}

func recognize(client *gosseract.Client, img []byte) (string, error) {
	if err := client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close drops all pooled clients. Calls made after Close fail.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.pools = nil
	return nil
}
