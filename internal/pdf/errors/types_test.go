package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{ErrorTypeDocumentOpen, "DOCUMENT_OPEN"},
		{ErrorTypeInvalidInput, "INVALID_INPUT"},
		{ErrorTypePageText, "PAGE_TEXT"},
		{ErrorTypeImageDecode, "IMAGE_DECODE"},
		{ErrorTypeOCRFailure, "OCR_FAILURE"},
		{ErrorTypeTimeout, "TIMEOUT"},
		{ErrorType(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.errType.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPDFError_Error(t *testing.T) {
	err := NewDocumentOpenError("/tmp/x.pdf", io.ErrUnexpectedEOF).WithContext("header")
	msg := err.Error()

	for _, part := range []string{"DOCUMENT_OPEN", "cannot open document", "header", io.ErrUnexpectedEOF.Error()} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, want it to contain %q", msg, part)
		}
	}
	if err.FilePath != "/tmp/x.pdf" {
		t.Errorf("FilePath = %q", err.FilePath)
	}
}

func TestPDFError_Unwrap(t *testing.T) {
	err := NewOCRFailure(2, 5, io.EOF)
	if !errors.Is(err, io.EOF) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if err.PageNumber != 2 || err.ImageIndex != 5 {
		t.Errorf("location = page %d image %d, want page 2 image 5", err.PageNumber, err.ImageIndex)
	}
}

func TestClassification(t *testing.T) {
	wrapped := fmt.Errorf("extract: %w", NewDocumentOpenError("a.pdf", io.EOF))

	if !IsDocumentOpen(wrapped) {
		t.Error("IsDocumentOpen should see through fmt.Errorf wrapping")
	}
	if !IsClientError(wrapped) {
		t.Error("document open failures are client errors")
	}
	if !IsInvalidInput(NewInvalidInputError("not a pdf")) {
		t.Error("IsInvalidInput should match")
	}
	if IsClientError(NewImageDecodeError(1, 0, io.EOF)) {
		t.Error("image decode failures are not client errors")
	}
	if TypeOf(io.EOF) != ErrorTypeUnknown {
		t.Error("plain errors classify as unknown")
	}
}
