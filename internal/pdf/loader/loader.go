// Package loader opens PDF documents and exposes their pages, embedded text
// and embedded raster images.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	pdfcpuAPI "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	pdferrors "github.com/a3tai/mcp-perfil-reader/internal/pdf/errors"
)

// ColorSpace tags the color model of an embedded image
type ColorSpace string

const (
	ColorSpaceGray    ColorSpace = "gray"
	ColorSpaceRGB     ColorSpace = "rgb"
	ColorSpaceCMYK    ColorSpace = "cmyk"
	ColorSpaceUnknown ColorSpace = "unknown"
)

// ImageRef is one embedded raster image as encoded bytes
type ImageRef struct {
	PageNumber int        `json:"page_number"`
	Index      int        `json:"index"` // position within the page
	ObjectNr   int        `json:"object_nr"`
	Format     string     `json:"format"` // "jpg", "png", "tif", ...
	ColorSpace ColorSpace `json:"color_space"`
	Data       []byte     `json:"-"`
	// Err is set when the image could not be decoded; Data is then nil.
	Err error `json:"-"`
}

// Page is one page of an open Document
type Page interface {
	Number() int
	// Text returns the embedded (non-OCR) text, possibly empty.
	Text() (string, error)
	// Images returns the embedded raster images in a stable order. A failure
	// confined to one image is reported on that ImageRef, not as an error.
	Images() ([]ImageRef, error)
}

// Document is an open multi-page document. Close must be called on every exit path.
type Document interface {
	PageCount() int
	// Pages yields every page in order. The sequence can be ranged over more than once.
	Pages() iter.Seq[Page]
	Close() error
}

// Loader opens documents
type Loader interface {
	Open(path string) (Document, error)
	OpenBytes(name string, data []byte) (Document, error)
}

// PDFLoader opens PDFs with ledongthuc/pdf for text and pdfcpu for images
type PDFLoader struct{}

// New creates a PDF loader
func New() *PDFLoader {
	return &PDFLoader{}
}

// Open reads the file at path and opens it as a PDF
func (l *PDFLoader) Open(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pdferrors.NewDocumentOpenError(path, err)
	}
	return l.OpenBytes(path, data)
}

// OpenBytes opens an in-memory PDF. name is only used for error reporting.
func (l *PDFLoader) OpenBytes(name string, data []byte) (doc Document, err error) {
	if len(data) == 0 {
		return nil, pdferrors.NewDocumentOpenError(name, fmt.Errorf("empty document"))
	}

	// ledongthuc/pdf panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = pdferrors.NewDocumentOpenError(name, fmt.Errorf("malformed PDF: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, pdferrors.NewDocumentOpenError(name, err)
	}

	return &pdfDocument{
		name:      name,
		data:      data,
		reader:    reader,
		pageCount: reader.NumPage(),
	}, nil
}

type pdfDocument struct {
	name      string
	data      []byte
	reader    *pdf.Reader
	pageCount int

	cpuOnce sync.Once
	cpuCtx  *model.Context
	cpuErr  error

	mu     sync.Mutex
	closed bool
}

func (d *pdfDocument) PageCount() int {
	return d.pageCount
}

func (d *pdfDocument) Pages() iter.Seq[Page] {
	return func(yield func(Page) bool) {
		for n := 1; n <= d.pageCount; n++ {
			if d.isClosed() {
				return
			}
			if !yield(&pdfPage{doc: d, number: n}) {
				return
			}
		}
	}
}

// Close drops every reference to the parsed document so it can be collected.
func (d *pdfDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.reader = nil
	d.cpuCtx = nil
	d.data = nil
	return nil
}

func (d *pdfDocument) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// cpuContext lazily builds the pdfcpu context used for images and form
// fields. Requests served by page text alone never pay for it.
func (d *pdfDocument) cpuContext() (*model.Context, error) {
	d.cpuOnce.Do(func() {
		d.mu.Lock()
		data := d.data
		d.mu.Unlock()
		if data == nil {
			d.cpuErr = fmt.Errorf("document is closed")
			return
		}

		conf := model.NewDefaultConfiguration()
		conf.Cmd = model.EXTRACTIMAGES
		conf.ValidationMode = model.ValidationRelaxed
		ctx, err := pdfcpuAPI.ReadValidateAndOptimize(bytes.NewReader(data), conf)
		if err != nil {
			d.cpuErr = fmt.Errorf("failed to read PDF structure: %w", err)
			return
		}
		d.cpuCtx = ctx
	})
	return d.cpuCtx, d.cpuErr
}

type pdfPage struct {
	doc    *pdfDocument
	number int
}

func (p *pdfPage) Number() int {
	return p.number
}

func (p *pdfPage) Text() (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = pdferrors.NewPDFError(pdferrors.ErrorTypePageText, fmt.Sprintf("panic reading text: %v", r)).
				WithPage(p.number)
		}
	}()

	p.doc.mu.Lock()
	reader := p.doc.reader
	p.doc.mu.Unlock()
	if reader == nil {
		return "", pdferrors.NewPDFError(pdferrors.ErrorTypePageText, "document is closed").WithPage(p.number)
	}

	page := reader.Page(p.number)
	if page.V.IsNull() {
		return "", nil
	}

	content, err := page.GetPlainText(nil)
	if err != nil {
		return "", pdferrors.WrapError(pdferrors.ErrorTypePageText, "cannot extract text", err).WithPage(p.number)
	}
	return content, nil
}

// Images extracts the page's image XObjects one at a time, in object number
// order. An image that cannot be decoded keeps its slot with Err set, so the
// other images of the page are still returned. Page thumbnails are not images
// of the page content and are skipped.
func (p *pdfPage) Images() (refs []ImageRef, err error) {
	defer func() {
		if r := recover(); r != nil {
			refs = nil
			err = pdferrors.NewPDFError(pdferrors.ErrorTypeImageDecode, fmt.Sprintf("panic extracting images: %v", r)).
				WithPage(p.number)
		}
	}()

	ctx, err := p.doc.cpuContext()
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeImageDecode, "image extraction unavailable", err).
			WithPage(p.number)
	}

	objNrs := pdfcpu.ImageObjNrs(ctx, p.number)
	sort.Ints(objNrs)

	refs = make([]ImageRef, 0, len(objNrs))
	for _, objNr := range objNrs {
		obj, ok := ctx.Optimize.ImageObjects[objNr]
		if !ok || obj == nil || obj.ImageDict == nil {
			continue
		}
		refs = append(refs, p.extractImage(ctx, objNr, obj, len(refs)))
	}
	return refs, nil
}

func (p *pdfPage) extractImage(ctx *model.Context, objNr int, obj *model.ImageObject, index int) (ref ImageRef) {
	ref = ImageRef{PageNumber: p.number, Index: index, ObjectNr: objNr}
	defer func() {
		if r := recover(); r != nil {
			ref.Data = nil
			ref.Err = pdferrors.NewImageDecodeError(p.number, index, fmt.Errorf("panic: %v", r))
		}
	}()

	sd := obj.ImageDict
	ref.ColorSpace = imageColorSpace(ctx, sd)

	img, err := pdfcpu.ExtractImage(ctx, sd, false, obj.ResourceNames[p.number-1], objNr, false)
	if err != nil {
		ref.Err = pdferrors.NewImageDecodeError(p.number, index, err)
		return ref
	}
	if img == nil || img.Reader == nil {
		ref.Err = pdferrors.NewImageDecodeError(p.number, index, fmt.Errorf("object %d has no image data", objNr))
		return ref
	}
	ref.Format = strings.ToLower(img.FileType)

	data, err := io.ReadAll(img.Reader)
	if err == nil && len(data) == 0 {
		err = fmt.Errorf("object %d is empty", objNr)
	}
	if err != nil {
		ref.Err = pdferrors.NewImageDecodeError(p.number, index, err)
		return ref
	}
	ref.Data = data
	return ref
}

// imageColorSpace reads the /ColorSpace of an image dict. A malformed entry
// yields ColorSpaceUnknown rather than failing the image.
func imageColorSpace(ctx *model.Context, sd *types.StreamDict) (cs ColorSpace) {
	defer func() {
		if recover() != nil {
			cs = ColorSpaceUnknown
		}
	}()

	name, err := pdfcpu.ColorSpaceString(ctx, sd)
	if err != nil {
		return ColorSpaceUnknown
	}
	components, err := pdfcpu.ColorSpaceComponents(ctx.XRefTable, sd)
	if err != nil {
		components = 0
	}
	return colorSpaceOf(name, components)
}

// colorSpaceOf maps a PDF color space name (and component count, for ICC based
// spaces) onto the three color models the OCR step distinguishes.
func colorSpaceOf(cs string, components int) ColorSpace {
	switch cs {
	case "DeviceGray", "CalGray":
		return ColorSpaceGray
	case "DeviceRGB", "CalRGB", "Lab":
		return ColorSpaceRGB
	case "DeviceCMYK":
		return ColorSpaceCMYK
	}
	switch components {
	case 1:
		return ColorSpaceGray
	case 3:
		return ColorSpaceRGB
	case 4:
		return ColorSpaceCMYK
	}
	return ColorSpaceUnknown
}
