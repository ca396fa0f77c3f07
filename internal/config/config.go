package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-perfil-reader/internal/pdf/acquire"
	"github.com/a3tai/mcp-perfil-reader/internal/perfil"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB
	DefaultOCRLanguage = "spa"
	DefaultPageSegMode = 3

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "PERFIL"
)

// Config holds all configuration for the profile reader
type Config struct {
	// Server configuration
	Mode        string // "server" or "stdio"
	Host        string
	Port        int
	CORSOrigins []string

	// PDFDirectory confines MCP file access
	PDFDirectory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes

	// Acquisition
	Acquisition       string // "exhaustive" or "fallback"
	FallbackThreshold int
	Timeout           time.Duration

	// OCR
	OCRLanguage    string
	OCRWorkers     int
	OCRPageSegMode int
	TessdataPrefix string

	// Validation
	RFCMinLength int
	RFCMaxLength int
}

// Pipeline groups the option structs the extraction core is built from
type Pipeline struct {
	Acquire acquire.Options
	Perfil  perfil.Options
	// Tesseract settings, kept as plain values so this package stays free of cgo
	PageSegMode    int
	TessdataPrefix string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:              ModeStdio, // stdio for MCP clients
		Host:              DefaultHost,
		Port:              DefaultPort,
		CORSOrigins:       []string{"*"},
		PDFDirectory:      currentDir,
		Version:           "1.0.0",
		ServerName:        "mcp-perfil-reader",
		LogLevel:          DefaultLogLevel,
		MaxFileSize:       DefaultMaxFileSize,
		Acquisition:       string(acquire.ModeFallback),
		FallbackThreshold: acquire.DefaultFallbackThreshold,
		Timeout:           acquire.DefaultTimeout,
		OCRLanguage:       DefaultOCRLanguage,
		OCRWorkers:        acquire.DefaultWorkers,
		OCRPageSegMode:    DefaultPageSegMode,
		RFCMinLength:      perfil.DefaultRFCMinLength,
		RFCMaxLength:      perfil.DefaultRFCMaxLength,
	}
}

// LoadFromFlags parses the server's command line flags and environment
func LoadFromFlags() (*Config, error) {
	return Load(serverUsage)
}

// Load parses flags defined on pflag.CommandLine plus the shared ones and
// returns the validated configuration. usage replaces pflag.Usage when non-nil.
func Load(usage func()) (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	if usage != nil {
		pflag.Usage = usage
	}

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var flagKeys = []string{
	"mode", "host", "port", "cors-origins", "dir", "loglevel", "maxfilesize",
	"acquisition", "fallback-threshold", "timeout",
	"ocr-lang", "ocr-workers", "ocr-psm", "tessdata",
	"rfc-min", "rfc-max",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// PERFIL_FALLBACK_THRESHOLD feeds "fallback-threshold"
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("cors-origins", cfg.CORSOrigins)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("acquisition", cfg.Acquisition)
	viper.SetDefault("fallback-threshold", cfg.FallbackThreshold)
	viper.SetDefault("timeout", cfg.Timeout)
	viper.SetDefault("ocr-lang", cfg.OCRLanguage)
	viper.SetDefault("ocr-workers", cfg.OCRWorkers)
	viper.SetDefault("ocr-psm", cfg.OCRPageSegMode)
	viper.SetDefault("tessdata", cfg.TessdataPrefix)
	viper.SetDefault("rfc-min", cfg.RFCMinLength)
	viper.SetDefault("rfc-max", cfg.RFCMaxLength)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.StringSlice("cors-origins", cfg.CORSOrigins, "Allowed CORS origins (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing profile PDFs")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.String("acquisition", cfg.Acquisition, "Text acquisition: 'fallback' runs OCR only on short text, 'exhaustive' always")
	pflag.Int("fallback-threshold", cfg.FallbackThreshold, "Embedded text length below which OCR runs in fallback mode")
	pflag.Duration("timeout", cfg.Timeout, "Per-document processing timeout (0 disables)")
	pflag.String("ocr-lang", cfg.OCRLanguage, "OCR language, e.g. spa or spa+eng")
	pflag.Int("ocr-workers", cfg.OCRWorkers, "Concurrent OCR workers")
	pflag.Int("ocr-psm", cfg.OCRPageSegMode, "Tesseract page segmentation mode (0-13)")
	pflag.String("tessdata", cfg.TessdataPrefix, "Tesseract tessdata directory (optional)")
	pflag.Int("rfc-min", cfg.RFCMinLength, "Minimum accepted RFC length")
	pflag.Int("rfc-max", cfg.RFCMaxLength, "Maximum accepted RFC length")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

func serverUsage() {
	fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nMCP Perfil Reader - extracts Perfil Único fields from PDF files over MCP or HTTP\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	pflag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s                                         "+
		"# stdio mode, current directory (default)\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/perfiles                 "+
		"# stdio mode with custom directory\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081               # HTTP upload endpoint\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --acquisition=exhaustive                # always OCR embedded images\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  Every flag can be set as %s_<FLAG>, dashes become underscores,\n", envPrefix)
	fmt.Fprintf(os.Stderr, "  e.g. %s_MODE, %s_FALLBACK_THRESHOLD, %s_OCR_LANG\n", envPrefix, envPrefix, envPrefix)
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.CORSOrigins = viper.GetStringSlice("cors-origins")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.Acquisition = viper.GetString("acquisition")
	cfg.FallbackThreshold = viper.GetInt("fallback-threshold")
	cfg.Timeout = viper.GetDuration("timeout")
	cfg.OCRLanguage = viper.GetString("ocr-lang")
	cfg.OCRWorkers = viper.GetInt("ocr-workers")
	cfg.OCRPageSegMode = viper.GetInt("ocr-psm")
	cfg.TessdataPrefix = viper.GetString("tessdata")
	cfg.RFCMinLength = viper.GetInt("rfc-min")
	cfg.RFCMaxLength = viper.GetInt("rfc-max")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Check if PDF directory exists, create if it doesn't
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if _, err := acquire.ParseMode(c.Acquisition); err != nil {
		return err
	}
	if c.FallbackThreshold < 0 {
		return errors.New("fallback threshold cannot be negative")
	}
	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if strings.TrimSpace(c.OCRLanguage) == "" {
		return errors.New("OCR language cannot be empty")
	}
	if c.OCRWorkers < 1 {
		return errors.New("OCR workers must be at least 1")
	}
	if c.OCRPageSegMode < 0 || c.OCRPageSegMode > 13 {
		return fmt.Errorf("invalid OCR page segmentation mode: %d (must be 0-13)", c.OCRPageSegMode)
	}

	// an RFC is 9 (no homoclave, entity) to 13 characters
	if c.RFCMinLength < 9 || c.RFCMaxLength > 13 || c.RFCMinLength > c.RFCMaxLength {
		return fmt.Errorf("invalid RFC length range [%d, %d] (must lie within [9, 13])", c.RFCMinLength, c.RFCMaxLength)
	}

	return nil
}

// PipelineOptions projects the configuration onto the extraction core
func (c *Config) PipelineOptions() Pipeline {
	mode, err := acquire.ParseMode(c.Acquisition)
	if err != nil {
		mode = acquire.ModeFallback
	}
	return Pipeline{
		Acquire: acquire.Options{
			Mode:              mode,
			FallbackThreshold: c.FallbackThreshold,
			Language:          c.OCRLanguage,
			Workers:           c.OCRWorkers,
			Timeout:           c.Timeout,
		},
		Perfil: perfil.Options{
			RFCMinLength: c.RFCMinLength,
			RFCMaxLength: c.RFCMaxLength,
		},
		PageSegMode:    c.OCRPageSegMode,
		TessdataPrefix: c.TessdataPrefix,
	}
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"Acquisition: %s, FallbackThreshold: %d, Timeout: %s, OCRLanguage: %s, OCRWorkers: %d, RFC: [%d, %d]}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.Acquisition, c.FallbackThreshold, c.Timeout, c.OCRLanguage, c.OCRWorkers, c.RFCMinLength, c.RFCMaxLength)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
