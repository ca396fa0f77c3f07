package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var envVars = []string{
	"PERFIL_MODE", "PERFIL_HOST", "PERFIL_PORT", "PERFIL_DIR", "PERFIL_LOGLEVEL",
	"PERFIL_MAXFILESIZE", "PERFIL_ACQUISITION", "PERFIL_FALLBACK_THRESHOLD",
	"PERFIL_OCR_LANG", "PERFIL_OCR_WORKERS", "PERFIL_TIMEOUT", "PERFIL_RFC_MIN",
}

// resetFlags gives each test a fresh flag set and viper instance
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

func clearEnvVars() {
	for _, k := range envVars {
		os.Unsetenv(k)
	}
}

// withArgs runs a load with args and restores global state afterwards
func withArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	})

	os.Args = append([]string{"mcp-perfil-reader"}, args...)
	resetFlags()
	return LoadFromFlags()
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	clearEnvVars()
	cfg, err := withArgs(t, "--dir="+t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.MaxFileSize != 10*1024*1024 {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, 10*1024*1024)
	}
	if cfg.Acquisition != "fallback" {
		t.Errorf("LoadFromFlags() Acquisition = %v, want fallback", cfg.Acquisition)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("LoadFromFlags() CORSOrigins = %v, want [*]", cfg.CORSOrigins)
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server mode with custom host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Address() != "0.0.0.0:9090" || !cfg.IsServerMode() {
					t.Errorf("got %s in mode %s", cfg.Address(), cfg.Mode)
				}
			},
		},
		{
			name: "exhaustive acquisition",
			args: []string{"--acquisition=exhaustive", "--ocr-workers=2"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Acquisition != "exhaustive" || cfg.OCRWorkers != 2 {
					t.Errorf("got acquisition %s with %d workers", cfg.Acquisition, cfg.OCRWorkers)
				}
			},
		},
		{
			name: "threshold and timeout",
			args: []string{"--fallback-threshold=250", "--timeout=15s"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.FallbackThreshold != 250 || cfg.Timeout != 15*time.Second {
					t.Errorf("got threshold %d and timeout %s", cfg.FallbackThreshold, cfg.Timeout)
				}
			},
		},
		{
			name: "ocr language and rfc range",
			args: []string{"--ocr-lang=spa+eng", "--rfc-min=10", "--rfc-max=13"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.OCRLanguage != "spa+eng" || cfg.RFCMinLength != 10 {
					t.Errorf("got language %s and rfc-min %d", cfg.OCRLanguage, cfg.RFCMinLength)
				}
			},
		},
		{
			name: "cors origins",
			args: []string{"--mode=server", "--cors-origins=https://a.mx,https://b.mx"},
			check: func(t *testing.T, cfg *Config) {
				if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.mx" {
					t.Errorf("got origins %v", cfg.CORSOrigins)
				}
			},
		},
		{
			name: "debug logging",
			args: []string{"--loglevel=debug"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.IsDebug() {
					t.Errorf("got log level %s", cfg.LogLevel)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			cfg, err := withArgs(t, append(tt.args, "--dir="+t.TempDir())...)
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("PERFIL_MODE", "server")
	t.Setenv("PERFIL_PORT", "3000")
	t.Setenv("PERFIL_DIR", tempDir)
	t.Setenv("PERFIL_ACQUISITION", "exhaustive")
	t.Setenv("PERFIL_FALLBACK_THRESHOLD", "40")
	t.Setenv("PERFIL_OCR_LANG", "eng")
	t.Setenv("PERFIL_TIMEOUT", "2m")

	cfg, err := withArgs(t)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" || cfg.Port != 3000 {
		t.Errorf("got mode %s port %d", cfg.Mode, cfg.Port)
	}
	if cfg.PDFDirectory != tempDir {
		t.Errorf("PDFDirectory = %s, want %s", cfg.PDFDirectory, tempDir)
	}
	if cfg.Acquisition != "exhaustive" || cfg.FallbackThreshold != 40 {
		t.Errorf("got acquisition %s threshold %d", cfg.Acquisition, cfg.FallbackThreshold)
	}
	if cfg.OCRLanguage != "eng" || cfg.Timeout != 2*time.Minute {
		t.Errorf("got language %s timeout %s", cfg.OCRLanguage, cfg.Timeout)
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	t.Setenv("PERFIL_MODE", "server")
	t.Setenv("PERFIL_ACQUISITION", "exhaustive")

	cfg, err := withArgs(t, "--mode=stdio", "--acquisition=fallback", "--dir="+t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want stdio (should override env)", cfg.Mode)
	}
	if cfg.Acquisition != "fallback" {
		t.Errorf("LoadFromFlags() Acquisition = %v, want fallback (should override env)", cfg.Acquisition)
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"mode", []string{"--mode=invalid"}, "mode must be either 'stdio' or 'server'"},
		{"port", []string{"--mode=server", "--port=99999"}, "port must be between 1 and 65535"},
		{"log level", []string{"--loglevel=invalid"}, "invalid log level"},
		{"acquisition", []string{"--acquisition=never"}, "unknown acquisition mode"},
		{"rfc range", []string{"--rfc-min=5"}, "invalid RFC length range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			_, err := withArgs(t, append(tt.args, "--dir="+t.TempDir())...)
			if err == nil {
				t.Fatal("LoadFromFlags() expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	clearEnvVars()
	_, err := withArgs(t, "--version")
	if err == nil || err.Error() != "version requested" {
		t.Errorf("LoadFromFlags() error = %v, want 'version requested'", err)
	}
}
