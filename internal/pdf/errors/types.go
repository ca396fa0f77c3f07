package errors

import (
	"errors"
	"fmt"
)

// PDFError represents a failure in the extraction pipeline with enough context
// to decide whether the request can continue
type PDFError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Context    string    `json:"context,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	PageNumber int       `json:"page_number,omitempty"`
	ImageIndex int       `json:"image_index,omitempty"`
	Err        error     `json:"-"`
}

// ErrorType represents the categories of pipeline failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeDocumentOpen means the input is not a readable document. Fatal.
	ErrorTypeDocumentOpen
	// ErrorTypeInvalidInput means the upload was rejected before parsing. Fatal.
	ErrorTypeInvalidInput
	// ErrorTypePageText means embedded text could not be read from one page.
	ErrorTypePageText
	// ErrorTypeImageDecode means one embedded image could not be decoded.
	ErrorTypeImageDecode
	// ErrorTypeOCRFailure means the OCR engine failed on one image.
	ErrorTypeOCRFailure
	// ErrorTypeTimeout means the per-document processing deadline expired.
	ErrorTypeTimeout
)

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *PDFError) Unwrap() error {
	return e.Err
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeDocumentOpen:
		return "DOCUMENT_OPEN"
	case ErrorTypeInvalidInput:
		return "INVALID_INPUT"
	case ErrorTypePageText:
		return "PAGE_TEXT"
	case ErrorTypeImageDecode:
		return "IMAGE_DECODE"
	case ErrorTypeOCRFailure:
		return "OCR_FAILURE"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:    errorType,
		Message: message,
	}
}

// WrapError wraps err as a PDFError of the given type
func WrapError(errorType ErrorType, message string, err error) *PDFError {
	return &PDFError{
		Type:    errorType,
		Message: message,
		Err:     err,
	}
}

// NewDocumentOpenError reports that the document at path could not be opened
func NewDocumentOpenError(path string, err error) *PDFError {
	return WrapError(ErrorTypeDocumentOpen, "cannot open document", err).WithFile(path)
}

// NewInvalidInputError reports an upload rejected before parsing
func NewInvalidInputError(message string) *PDFError {
	return NewPDFError(ErrorTypeInvalidInput, message)
}

// NewImageDecodeError reports an embedded image that could not be decoded
func NewImageDecodeError(pageNumber, imageIndex int, err error) *PDFError {
	return WrapError(ErrorTypeImageDecode, "cannot decode image", err).
		WithPage(pageNumber).
		WithImage(imageIndex)
}

// NewOCRFailure reports an OCR engine failure on one image
func NewOCRFailure(pageNumber, imageIndex int, err error) *PDFError {
	return WrapError(ErrorTypeOCRFailure, "ocr failed", err).
		WithPage(pageNumber).
		WithImage(imageIndex)
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithFile adds file path information to an existing PDFError
func (e *PDFError) WithFile(filePath string) *PDFError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// WithImage adds the image index to an existing PDFError
func (e *PDFError) WithImage(imageIndex int) *PDFError {
	e.ImageIndex = imageIndex
	return e
}

// TypeOf returns the ErrorType carried anywhere in err's chain
func TypeOf(err error) ErrorType {
	var pdfErr *PDFError
	if errors.As(err, &pdfErr) {
		return pdfErr.Type
	}
	return ErrorTypeUnknown
}

// IsDocumentOpen reports whether err is a DocumentOpen failure
func IsDocumentOpen(err error) bool {
	return TypeOf(err) == ErrorTypeDocumentOpen
}

// IsInvalidInput reports whether err is an InvalidInput rejection
func IsInvalidInput(err error) bool {
	return TypeOf(err) == ErrorTypeInvalidInput
}

// IsClientError reports whether err should be surfaced to the caller as a client error
func IsClientError(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeDocumentOpen, ErrorTypeInvalidInput:
		return true
	default:
		return false
	}
}
