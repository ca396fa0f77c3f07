// Package ocr turns embedded page images into text.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"strings"

	_ "golang.org/x/image/tiff" // pdfcpu emits TIFF for flate-encoded CMYK images

	"github.com/a3tai/mcp-perfil-reader/internal/log"
	pdferrors "github.com/a3tai/mcp-perfil-reader/internal/pdf/errors"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf/loader"
)

// DefaultLanguage is the Tesseract language code used for Spanish documents
const DefaultLanguage = "spa"

// ErrEngineUnavailable is returned by Unavailable on every call
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Status describes the outcome of recognizing one image
type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// Result is the text recognized from one image. Failures never abort a
// document; they surface as StatusFailed with empty text.
type Result struct {
	Text   string `json:"text"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
}

// Engine recognizes text in a PNG encoded image
type Engine interface {
	Recognize(ctx context.Context, img []byte, lang string) (string, error)
	Close() error
}

// Adapter normalizes embedded images and feeds them to an Engine
type Adapter struct {
	engine Engine
}

// NewAdapter creates an adapter over engine
func NewAdapter(engine Engine) *Adapter {
	if engine == nil {
		engine = Unavailable{}
	}
	return &Adapter{engine: engine}
}

// Recognize runs OCR on ref. It never returns an error: decode and engine
// failures are logged and reported through Result.Status.
func (a *Adapter) Recognize(ctx context.Context, ref loader.ImageRef, lang string) Result {
	if lang == "" {
		lang = DefaultLanguage
	}

	data, err := Normalize(ref.Data)
	if err != nil {
		err = pdferrors.NewImageDecodeError(ref.PageNumber, ref.Index, err).
			WithContext(fmt.Sprintf("format=%s colorspace=%s", ref.Format, ref.ColorSpace))
		log.Warnf("Skipping image: %v", err)
		return Result{Status: StatusFailed, Err: err}
	}

	text, err := a.engine.Recognize(ctx, data, lang)
	if err != nil {
		err = pdferrors.NewOCRFailure(ref.PageNumber, ref.Index, err)
		log.Warnf("OCR failed: %v", err)
		return Result{Status: StatusFailed, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Status: StatusEmpty}
	}
	return Result{Text: text, Status: StatusOK}
}

// Close releases the engine
func (a *Adapter) Close() error {
	return a.engine.Close()
}

// Normalize decodes an embedded image of any supported format and color model
// and re-encodes it as 8-bit RGBA PNG, the one form every engine accepts.
func Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, errors.New("image has no pixels")
	}

	// draw converts CMYK, gray and paletted sources into RGB
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Unavailable is the engine used when Tesseract could not be initialised.
// Every image then reports StatusFailed and extraction runs on embedded text.
type Unavailable struct{}

func (Unavailable) Recognize(context.Context, []byte, string) (string, error) {
	return "", ErrEngineUnavailable
}

func (Unavailable) Close() error { return nil }
