// Package httpapi serves the profile extraction pipeline over HTTP: a
// multipart upload endpoint plus banner and health checks.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-perfil-reader/internal/log"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf"
	pdferrors "github.com/a3tai/mcp-perfil-reader/internal/pdf/errors"
)

const (
	// uploadField is the multipart field carrying the document.
	uploadField = "file"
	// RequestIDHeader is echoed on every response.
	RequestIDHeader = "X-Request-ID"

	// multipart framing allowance on top of the document limit
	formOverhead    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Extractor is the part of pdf.Service the HTTP layer consumes.
type Extractor interface {
	ExtractAs(ctx context.Context, path, filename string) (*pdf.ExtractResult, error)
	MaxFileSize() int64
}

// Options configures the HTTP front end.
type Options struct {
	ServiceName string
	Version     string
	CORSOrigins []string
}

// Server routes HTTP requests to the extraction pipeline.
type Server struct {
	opts      Options
	extractor Extractor
	validator *pdf.Validator
	router    *mux.Router
	handler   http.Handler
	started   time.Time
}

// New builds the router with CORS and request id middleware applied.
func New(extractor Extractor, opts Options) (*Server, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		opts:      opts,
		extractor: extractor,
		validator: pdf.NewValidator(extractor.MaxFileSize()),
		router:    mux.NewRouter(),
		started:   time.Now(),
	}
	s.registerRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type", RequestIDHeader},
	})
	// Wrapping the whole router lets preflight and 404 responses carry the
	// same headers as matched routes.
	s.handler = c.Handler(s.withRequestID(s.router))
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/", s.handleBanner).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/process-pdf", s.handleProcessPDF).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Infof("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   s.opts.ServiceName,
		"status":    "running",
		"version":   s.opts.Version,
		"timestamp": timestamp(),
		"uptime":    s.uptime(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": timestamp(),
		"uptime":    s.uptime(),
	})
}

func (s *Server) handleProcessPDF(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.extractor.MaxFileSize()+formOverhead)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusBadRequest, "file too large", fmt.Sprintf("maximum size is %d bytes", s.extractor.MaxFileSize()))
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "no file uploaded", fmt.Sprintf("send the PDF in the %q form field", uploadField))
		default:
			writeError(w, http.StatusBadRequest, "invalid multipart request", err.Error())
		}
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if err := s.validator.ValidateUpload(header.Filename, header.Header.Get("Content-Type"), header.Size); err != nil {
		logger.Warnf("Rejected upload %q: %v", header.Filename, err)
		writeError(w, http.StatusBadRequest, "invalid upload", err.Error())
		return
	}

	path, err := stage(file)
	if err != nil {
		logger.Errorf("Failed to stage upload %q: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, "failed to store upload", err.Error())
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warnf("Failed to remove staged upload %s: %v", path, err)
		}
	}()

	logger.Infof("Processing %q (%d bytes)", header.Filename, header.Size)
	result, err := s.extractor.ExtractAs(r.Context(), path, header.Filename)
	if err != nil {
		status := http.StatusInternalServerError
		if pdferrors.IsClientError(err) {
			status = http.StatusBadRequest
		}
		logger.Errorf("Extraction of %q failed: %v", header.Filename, err)
		writeError(w, status, "failed to process PDF", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"success":   false,
		"error":     "endpoint not found",
		"path":      r.URL.Path,
		"method":    r.Method,
		"timestamp": timestamp(),
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
		"success":   false,
		"error":     "method not allowed",
		"path":      r.URL.Path,
		"method":    r.Method,
		"timestamp": timestamp(),
	})
}

func (s *Server) uptime() float64 {
	return time.Since(s.started).Seconds()
}

// stage copies the upload into a temporary file the caller must remove.
func stage(src multipart.File) (string, error) {
	tmp, err := os.CreateTemp("", "perfil-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

type errorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details, Timestamp: timestamp()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

type loggerKey struct{}

// withRequestID tags each request with an id, reusing the caller's when
// present, and logs one line per completed request.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		logger := log.With("request_id", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), loggerKey{}, logger)))

		logger.Infof("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func loggerFrom(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return l
	}
	return log.With()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
