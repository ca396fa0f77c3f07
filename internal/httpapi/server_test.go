package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-perfil-reader/internal/log"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf"
	pdferrors "github.com/a3tai/mcp-perfil-reader/internal/pdf/errors"
)

var samplePDF = []byte("%PDF-1.4\n%%EOF\n")

// fakeExtractor records what it was asked to extract
type fakeExtractor struct {
	maxSize  int64
	err      error
	path     string
	filename string
	staged   []byte
}

func (f *fakeExtractor) ExtractAs(_ context.Context, path, filename string) (*pdf.ExtractResult, error) {
	f.path = path
	f.filename = filename
	f.staged, _ = os.ReadFile(path)
	if f.err != nil {
		return nil, f.err
	}
	return &pdf.ExtractResult{
		Success:       true,
		Filename:      filename,
		ExtractedData: map[string]string{"curp": "LOGA850312MCHPRN02", "rfc": ""},
		FieldsFound:   1,
		TotalFields:   2,
	}, nil
}

func (f *fakeExtractor) MaxFileSize() int64 { return f.maxSize }

func newTestServer(t *testing.T, ext *fakeExtractor) *Server {
	t.Helper()
	log.Discard()
	if ext.maxSize == 0 {
		ext.maxSize = 1024
	}
	s, err := New(ext, Options{ServiceName: "mcp-perfil-reader", Version: "test"})
	require.NoError(t, err)
	return s
}

func uploadRequest(t *testing.T, field, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process-pdf", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNew_RequiresExtractor(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestProcessPDF_Success(t *testing.T) {
	ext := &fakeExtractor{}
	s := newTestServer(t, ext)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "file", "perfil.pdf", "application/pdf", samplePDF))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "perfil.pdf", body["filename"])
	assert.Equal(t, float64(1), body["fields_found"])
	assert.Equal(t, float64(2), body["total_fields"])
	data := body["extracted_data"].(map[string]any)
	assert.Equal(t, "LOGA850312MCHPRN02", data["curp"])
	assert.Contains(t, data, "rfc")

	assert.Equal(t, "perfil.pdf", ext.filename)
	assert.Equal(t, samplePDF, ext.staged)
	assert.True(t, strings.HasSuffix(ext.path, ".pdf"))
	_, err := os.Stat(ext.path)
	assert.True(t, os.IsNotExist(err), "staged upload must be removed")
}

func TestProcessPDF_ExtractionErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unopenable document", pdferrors.NewDocumentOpenError("perfil.pdf", assert.AnError), http.StatusBadRequest},
		{"invalid input", pdferrors.NewInvalidInputError("file is empty"), http.StatusBadRequest},
		{"internal failure", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := &fakeExtractor{err: tt.err}
			s := newTestServer(t, ext)

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, uploadRequest(t, "file", "perfil.pdf", "application/pdf", samplePDF))

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "failed to process PDF", body["error"])
			assert.NotEmpty(t, body["details"])
			assert.NotEmpty(t, body["timestamp"])

			_, err := os.Stat(ext.path)
			assert.True(t, os.IsNotExist(err), "staged upload must be removed on failure")
		})
	}
}

func TestProcessPDF_RejectedUploads(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		filename    string
		contentType string
		content     []byte
		wantError   string
	}{
		{"wrong field", "documento", "perfil.pdf", "application/pdf", samplePDF, "no file uploaded"},
		{"wrong extension", "file", "perfil.docx", "application/pdf", samplePDF, "invalid upload"},
		{"wrong content type", "file", "perfil.pdf", "image/png", samplePDF, "invalid upload"},
		{"empty file", "file", "perfil.pdf", "application/pdf", nil, "invalid upload"},
		{"too large", "file", "perfil.pdf", "application/pdf", bytes.Repeat([]byte("x"), 2048), "invalid upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := &fakeExtractor{}
			s := newTestServer(t, ext)

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, uploadRequest(t, tt.field, tt.filename, tt.contentType, tt.content))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantError, decode(t, rec)["error"])
			assert.Empty(t, ext.path, "rejected uploads never reach extraction")
		})
	}
}

func TestProcessPDF_BodyOverLimit(t *testing.T) {
	ext := &fakeExtractor{}
	s := newTestServer(t, ext)

	content := bytes.Repeat([]byte("x"), int(ext.maxSize)+formOverhead+1)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "file", "perfil.pdf", "application/pdf", content))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file too large", decode(t, rec)["error"])
	assert.Empty(t, ext.path)
}

func TestProcessPDF_NotMultipart(t *testing.T) {
	s := newTestServer(t, &fakeExtractor{})

	req := httptest.NewRequest(http.MethodPost, "/process-pdf", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBannerAndHealth(t *testing.T) {
	s := newTestServer(t, &fakeExtractor{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	banner := decode(t, rec)
	assert.Equal(t, "mcp-perfil-reader", banner["service"])
	assert.Equal(t, "running", banner["status"])
	assert.Equal(t, "test", banner["version"])
	assert.Contains(t, banner, "uptime")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeExtractor{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nada", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "/nada", body["path"])
	assert.Equal(t, http.MethodGet, body["method"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process-pdf", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, &fakeExtractor{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	log.Discard()
	s, err := New(&fakeExtractor{maxSize: 1024}, Options{CORSOrigins: []string{"https://sei.example.mx"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/process-pdf", nil)
	req.Header.Set("Origin", "https://sei.example.mx")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://sei.example.mx", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://otro.example.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s := newTestServer(t, &fakeExtractor{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
