// Package pdftest builds small, valid PDF documents for tests: one page with
// a line of text, raster images and an optional filled-in form field.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
)

// Image is a 2x2 image XObject
type Image struct {
	ColorSpace string // "DeviceRGB", "DeviceGray" or "DeviceCMYK"
	// Corrupt replaces the FlateDecode stream with bytes that do not inflate.
	Corrupt bool
}

// Field is a filled-in text field
type Field struct {
	Name, Label, Value string
}

// Document describes the single page of the generated PDF
type Document struct {
	Text   string // shown with Helvetica; keep it ASCII
	Images []Image
	Fields []Field
	// Thumbnail adds a /Thumb image to the page.
	Thumbnail bool
}

// Build renders d as PDF bytes with a correct cross-reference table
func Build(d Document) []byte {
	var b builder
	b.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	// fixed objects: 1 catalog, 2 pages, 3 page, 4 font, 5 contents
	const firstImage = 6
	firstField := firstImage + len(d.Images)
	thumb := firstField + len(d.Fields)

	var fieldRefs, xobjects, draws []string
	for i := range d.Fields {
		fieldRefs = append(fieldRefs, fmt.Sprintf("%d 0 R", firstField+i))
	}
	for i := range d.Images {
		xobjects = append(xobjects, fmt.Sprintf("/Im%d %d 0 R", i+1, firstImage+i))
		draws = append(draws, fmt.Sprintf("q 20 0 0 20 %d 600 cm /Im%d Do Q", 72+30*i, i+1))
	}

	catalog := "<< /Type /Catalog /Pages 2 0 R"
	if len(fieldRefs) > 0 {
		catalog += fmt.Sprintf(" /AcroForm << /Fields [%s] /DA (/Helv 0 Tf 0 g) >>", strings.Join(fieldRefs, " "))
	}
	b.object(catalog + " >>")
	b.object("<< /Type /Pages /Kids [3 0 R] /Count 1 >>")

	page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792]" +
		" /Resources << /Font << /F1 4 0 R >>"
	if len(xobjects) > 0 {
		page += " /XObject << " + strings.Join(xobjects, " ") + " >>"
	}
	page += " >> /Contents 5 0 R"
	if len(fieldRefs) > 0 {
		page += " /Annots [" + strings.Join(fieldRefs, " ") + "]"
	}
	if d.Thumbnail {
		page += fmt.Sprintf(" /Thumb %d 0 R", thumb)
	}
	b.object(page + " >>")
	b.object("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET\n%s", escape(d.Text), strings.Join(draws, "\n"))
	b.stream("", []byte(content))

	for i, img := range d.Images {
		b.stream(fmt.Sprintf("/Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /%s"+
			" /BitsPerComponent 8 /Filter /FlateDecode", img.ColorSpace), imageData(img, i))
	}

	for i, f := range d.Fields {
		b.object(fmt.Sprintf("<< /Type /Annot /Subtype /Widget /FT /Tx /T (%s) /TU (%s) /V (%s)"+
			" /DA (/Helv 0 Tf 0 g) /Rect [72 %d 300 %d] /P 3 0 R /F 4 >>",
			escape(f.Name), escape(f.Label), escape(f.Value), 500-30*i, 520-30*i))
	}

	if d.Thumbnail {
		b.stream("/Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode",
			imageData(Image{ColorSpace: "DeviceRGB"}, len(d.Images)))
	}

	return b.finish()
}

// imageData fills each image with its own shade so no two images are
// identical and none is merged away as a duplicate.
func imageData(img Image, index int) []byte {
	if img.Corrupt {
		return []byte("this stream is not zlib")
	}
	components := 3
	switch img.ColorSpace {
	case "DeviceGray":
		components = 1
	case "DeviceCMYK":
		components = 4
	}
	raw := bytes.Repeat([]byte{byte(0x40 + 0x10*index)}, 2*2*components)

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(raw)
	w.Close()
	return buf.Bytes()
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(s)
}

type builder struct {
	buf     bytes.Buffer
	offsets []int
}

func (b *builder) object(body string) {
	b.offsets = append(b.offsets, b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", len(b.offsets), body)
}

func (b *builder) stream(dict string, data []byte) {
	b.offsets = append(b.offsets, b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", len(b.offsets), dict, len(data))
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
}

func (b *builder) finish() []byte {
	xref := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n0000000000 65535 f \n", len(b.offsets)+1)
	for _, off := range b.offsets {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.offsets)+1, xref)
	return b.buf.Bytes()
}
