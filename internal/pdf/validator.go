package pdf

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"

	pdferrors "github.com/a3tai/mcp-perfil-reader/internal/pdf/errors"
)

// the PDF header may be preceded by junk, readers look for it in the first KB
const headerWindow = 1024

var pdfMagic = []byte("%PDF-")

// Validator rejects inputs before any parsing happens
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateFile checks that path is a readable, non-empty PDF within the size limit
func (v *Validator) ValidateFile(filePath string) error {
	return v.validateDocument(filePath, filePath)
}

// validateDocument checks the file at path; name carries the extension to
// check, which differs from path for uploads staged in temp files.
func (v *Validator) validateDocument(path, name string) error {
	if path == "" {
		return pdferrors.NewInvalidInputError("path cannot be empty")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return pdferrors.NewInvalidInputError("file does not exist").WithFile(path)
	}
	if err != nil {
		return pdferrors.NewDocumentOpenError(path, err)
	}
	if err := v.ValidateFileInfo(name, info); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return pdferrors.NewDocumentOpenError(path, err)
	}
	defer f.Close()

	head := make([]byte, headerWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return pdferrors.NewDocumentOpenError(path, err)
	}
	if !HasPDFHeader(head[:n]) {
		return pdferrors.NewDocumentOpenError(path, fmt.Errorf("missing %s header", pdfMagic))
	}
	return nil
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return pdferrors.NewInvalidInputError("path is a directory, not a file").WithFile(filePath)
	}
	if !IsPDFName(filePath) {
		return pdferrors.NewInvalidInputError("file is not a PDF").WithFile(filePath)
	}
	return v.checkSize(fileInfo.Size())
}

// ValidateUpload checks an upload's declared name, content type and size
// before its payload is stored anywhere.
func (v *Validator) ValidateUpload(filename, contentType string, size int64) error {
	if !IsPDFName(filename) {
		return pdferrors.NewInvalidInputError("only .pdf files are accepted").WithFile(filename)
	}
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil || (mt != "application/pdf" && mt != "application/octet-stream") {
			return pdferrors.NewInvalidInputError("unsupported content type").
				WithContext(contentType).
				WithFile(filename)
		}
	}
	return v.checkSize(size)
}

func (v *Validator) checkSize(size int64) error {
	if size == 0 {
		return pdferrors.NewInvalidInputError("file is empty")
	}
	if v.maxFileSize > 0 && size > v.maxFileSize {
		return pdferrors.NewInvalidInputError(
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", size, v.maxFileSize))
	}
	return nil
}

// IsPDFName reports whether name has a .pdf extension
func IsPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// HasPDFHeader reports whether data carries the %PDF- marker within its first KB
func HasPDFHeader(data []byte) bool {
	if len(data) > headerWindow {
		data = data[:headerWindow]
	}
	return bytes.Contains(data, pdfMagic)
}
