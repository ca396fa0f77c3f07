package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-perfil-reader/internal/config"
	"github.com/a3tai/mcp-perfil-reader/internal/descriptions"
	"github.com/a3tai/mcp-perfil-reader/internal/log"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf/acquire"
	"github.com/a3tai/mcp-perfil-reader/internal/perfil"
)

const profileText = `Dra. María Fernanda Ruiz Soto
CURP: RUSM900101MDFZTR05
Correo: mf.ruiz@ipn.mx
`

type stubAcquirer struct{ text string }

func (a stubAcquirer) Acquire(context.Context, string) (*acquire.Report, error) {
	return &acquire.Report{Text: a.text, Mode: acquire.ModeFallback, Pages: 1, EmbeddedChars: len(a.text)}, nil
}

func (a stubAcquirer) AcquireBytes(ctx context.Context, name string, _ []byte) (*acquire.Report, error) {
	return a.Acquire(ctx, name)
}

func (a stubAcquirer) Options() acquire.Options { return acquire.DefaultOptions() }

func newTestServer(t *testing.T, mode string) (*Server, string) {
	t.Helper()
	log.Discard()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Mode = mode
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.PDFDirectory = dir
	cfg.Version = "test"

	svc, err := pdf.NewService(
		pdf.Options{MaxFileSize: cfg.MaxFileSize, Directory: dir},
		stubAcquirer{text: profileText},
		perfil.NewParser(perfil.DefaultOptions()),
	)
	require.NoError(t, err)

	s, err := NewServer(cfg, svc)
	require.NoError(t, err)
	return s, dir
}

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4\n%%EOF\n"), 0o644))
	return p
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func TestNewServer(t *testing.T) {
	svc, err := pdf.NewService(pdf.Options{Directory: t.TempDir()}, stubAcquirer{}, perfil.NewParser(perfil.DefaultOptions()))
	require.NoError(t, err)

	_, err = NewServer(nil, svc)
	assert.Error(t, err)
	_, err = NewServer(config.DefaultConfig(), nil)
	assert.Error(t, err)

	stdio, _ := newTestServer(t, config.ModeStdio)
	assert.NotNil(t, stdio.mcpServer)
	assert.Nil(t, stdio.HTTPHandler(), "stdio mode has no HTTP API")

	srv, _ := newTestServer(t, config.ModeServer)
	assert.NotNil(t, srv.HTTPHandler())
}

func TestServer_HandleExtract(t *testing.T) {
	s, dir := newTestServer(t, config.ModeStdio)
	writePDF(t, dir, "convocatoria/perfil_maria.pdf")

	result, err := s.handleExtract(context.Background(), callRequest(map[string]any{
		"path": "convocatoria/perfil_maria.pdf",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Archivo: perfil_maria.pdf")
	assert.Contains(t, text, "María Fernanda Ruiz Soto")
	assert.Contains(t, text, "RUSM900101MDFZTR05")
	assert.Contains(t, text, `"extracted_data"`)
	assert.Contains(t, text, `"fields_found": 3`)
}

func TestServer_HandleExtractErrors(t *testing.T) {
	s, _ := newTestServer(t, config.ModeStdio)
	outside := writePDF(t, t.TempDir(), "ajeno.pdf")

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing path", map[string]any{}},
		{"path outside directory", map[string]any{"path": outside}},
		{"traversal", map[string]any{"path": "../ajeno.pdf"}},
		{"missing file", map[string]any{"path": "nada.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleExtract(context.Background(), callRequest(tt.args))
			require.NoError(t, err, "tool failures are reported in the result")
			assert.True(t, result.IsError)
			assert.NotEmpty(t, extractTextFromResult(result))
		})
	}
}

func TestServer_HandleFields(t *testing.T) {
	s, _ := newTestServer(t, config.ModeStdio)

	result, err := s.handleFields(context.Background(), callRequest(nil))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "13 fields")
	assert.Contains(t, text, "1. "+perfil.FieldNombreCompleto)
	assert.Contains(t, text, "Default: "+perfil.DefaultNacionalidad)
}

func TestServer_HandleSearchDirectory(t *testing.T) {
	s, dir := newTestServer(t, config.ModeStdio)
	writePDF(t, dir, "perfil_ana.pdf")
	writePDF(t, dir, "perfil_luis.pdf")

	tests := []struct {
		name string
		args map[string]any
		want []string
	}{
		{"default directory", map[string]any{}, []string{"Found 2 PDF file(s)", "perfil_ana.pdf", "perfil_luis.pdf"}},
		{"query", map[string]any{"query": "luis"}, []string{"Found 1 PDF file(s)", "Search query: luis"}},
		{"no match", map[string]any{"query": "pedro"}, []string{"No PDF files found", "(searched for: pedro)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleSearchDirectory(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			require.False(t, result.IsError)
			text := extractTextFromResult(result)
			for _, w := range tt.want {
				assert.Contains(t, text, w)
			}
		})
	}

	result, err := s.handleSearchDirectory(context.Background(), callRequest(map[string]any{"directory": t.TempDir()}))
	require.NoError(t, err)
	assert.True(t, result.IsError, "directories outside the root are rejected")
}

func TestServer_HandleServerInfo(t *testing.T) {
	s, dir := newTestServer(t, config.ModeStdio)
	writePDF(t, dir, "perfil.pdf")

	result, err := s.handleServerInfo(context.Background(), callRequest(nil))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "mcp-perfil-reader vtest")
	assert.Contains(t, text, "Acquisition: fallback")
	assert.Contains(t, text, "perfil.pdf")
	for _, name := range descriptions.GetAllToolNames() {
		assert.Contains(t, text, name)
	}
}

func TestServer_ToolsList(t *testing.T) {
	s, _ := newTestServer(t, config.ModeStdio)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := s.mcpServer.HandleMessage(context.Background(), msg)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))

	var names []string
	for _, tool := range decoded.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, descriptions.GetAllToolNames(), names)
}

// extractTextFromResult returns the first text content of a tool result
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
