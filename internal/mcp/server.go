package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-perfil-reader/internal/config"
	"github.com/a3tai/mcp-perfil-reader/internal/descriptions"
	"github.com/a3tai/mcp-perfil-reader/internal/export"
	"github.com/a3tai/mcp-perfil-reader/internal/httpapi"
	"github.com/a3tai/mcp-perfil-reader/internal/log"
	"github.com/a3tai/mcp-perfil-reader/internal/pdf"
)

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	httpServer *httpapi.Server
}

// NewServer creates a new MCP server instance. In server mode the HTTP
// upload API is built as well.
func NewServer(cfg *config.Config, pdfService *pdf.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool set is fixed
		server.WithRecovery(),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
	}
	s.registerTools()

	if cfg.IsServerMode() {
		httpServer, err := httpapi.New(pdfService, httpapi.Options{
			ServiceName: cfg.ServerName,
			Version:     cfg.Version,
			CORSOrigins: cfg.CORSOrigins,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP server: %w", err)
		}
		s.httpServer = httpServer
	}

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	extractTool := mcp.NewTool(
		descriptions.ToolExtract,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolExtract)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF, absolute or relative to the configured directory"),
		),
	)
	s.mcpServer.AddTool(extractTool, s.handleExtract)

	fieldsTool := mcp.NewTool(
		descriptions.ToolFields,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolFields)),
	)
	s.mcpServer.AddTool(fieldsTool, s.handleFields)

	searchTool := mcp.NewTool(
		descriptions.ToolSearchDirectory,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolSearchDirectory)),
		mcp.WithString("directory",
			mcp.Description("Directory to search (uses the configured directory if empty)"),
		),
		mcp.WithString("query",
			mcp.Description("Optional fuzzy filename query"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearchDirectory)

	infoTool := mcp.NewTool(
		descriptions.ToolServerInfo,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolServerInfo)),
	)
	s.mcpServer.AddTool(infoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.ExtractFile(ctx, pdf.ExtractRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text, err := s.formatExtractResult(result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleFields(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatFieldsResult(s.pdfService.Fields())), nil
}

func (s *Server) handleSearchDirectory(_ context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	req := pdf.SearchDirectoryRequest{
		Directory: request.GetString("directory", ""),
		Query:     request.GetString("query", ""),
	}

	result, err := s.pdfService.SearchDirectory(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.TotalCount == 0 {
		responseText = fmt.Sprintf("No PDF files found in directory: %s", result.Directory)
		if result.SearchQuery != "" {
			responseText += fmt.Sprintf(" (searched for: %s)", result.SearchQuery)
		}
	} else {
		responseText = s.formatSearchDirectoryResult(result)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.pdfService.ServerInfo(ctx, s.config.ServerName, s.config.Version)
	return mcp.NewToolResultText(s.formatServerInfoResult(result)), nil
}

// Formatting methods

// formatExtractResult renders the fields for reading followed by the JSON
// envelope the HTTP API returns.
func (s *Server) formatExtractResult(result *pdf.ExtractResult) (string, error) {
	fields := s.pdfService.Fields()
	names := make([]string, 0, len(fields.Fields))
	for _, f := range fields.Fields {
		names = append(names, f.Name)
	}

	var b bytes.Buffer
	if err := export.WriteText(&b, result, names); err != nil {
		return "", err
	}

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	b.WriteString("\nJSON:\n")
	b.Write(raw)
	return b.String(), nil
}

func (s *Server) formatFieldsResult(result *pdf.FieldsResult) string {
	text := fmt.Sprintf("%d fields, extracted in this order:\n", result.TotalCount)
	for i, f := range result.Fields {
		text += fmt.Sprintf("\n%d. %s\n", i+1, f.Name)
		text += fmt.Sprintf("   %s\n", f.Description)
		text += fmt.Sprintf("   Patterns: %d\n", f.Patterns)
		if f.Validation != "" {
			text += fmt.Sprintf("   Validation: %s\n", f.Validation)
		}
		if f.Default != "" {
			text += fmt.Sprintf("   Default: %s\n", f.Default)
		}
	}
	return text
}

func (s *Server) formatSearchDirectoryResult(result *pdf.SearchDirectoryResult) string {
	text := fmt.Sprintf("Found %d PDF file(s) in directory: %s\n", result.TotalCount, result.Directory)
	if result.SearchQuery != "" {
		text += fmt.Sprintf("Search query: %s\n", result.SearchQuery)
	}
	text += "\nFiles:\n"

	for i, file := range result.Files {
		text += fmt.Sprintf("%d. %s\n", i+1, file.Name)
		text += fmt.Sprintf("   Path: %s\n", file.Path)
		text += fmt.Sprintf("   Size: %d bytes\n", file.Size)
		text += fmt.Sprintf("   Modified: %s\n", file.ModifiedTime)
		if i < len(result.Files)-1 {
			text += "\n"
		}
	}

	return text
}

func (s *Server) formatServerInfoResult(result *pdf.ServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Default Directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))

	p := result.Pipeline
	text += fmt.Sprintf("⚙️  Acquisition: %s (threshold %d chars), OCR %s with %d worker(s), timeout %ds\n\n",
		p.Mode, p.FallbackThreshold, p.OCRLanguage, p.OCRWorkers, p.TimeoutSeconds)

	if len(result.DirectoryContents) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d PDF files found):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 {
				text += fmt.Sprintf("   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No PDF files found in default directory\n\n"
	}

	text += fmt.Sprintf("🧾 Fields (%d):\n", len(result.Fields))
	for _, name := range result.Fields {
		text += fmt.Sprintf("  • %s\n", name)
	}

	text += "\n🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Description: %s\n", tool.Description)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\n" + result.UsageGuidance

	return text
}

// Run starts the server in the configured mode and blocks until ctx is
// cancelled or the transport fails.
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx, os.Stdin, os.Stdout)
}

// runStdioMode serves MCP over the given streams
func (s *Server) runStdioMode(ctx context.Context, in io.Reader, out io.Writer) error {
	log.Debugf("Starting MCP server in stdio mode")
	log.Debugf("PDF directory: %s", s.config.PDFDirectory)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(log.With("transport", "stdio").Desugar()))

	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return ctx.Err()
}

// runServerMode serves the HTTP upload API
func (s *Server) runServerMode(ctx context.Context) error {
	if s.httpServer == nil {
		return fmt.Errorf("HTTP server not configured")
	}
	log.Infof("Starting %s %s in server mode on %s", s.config.ServerName, s.config.Version, s.config.Address())
	log.Infof("PDF directory: %s", s.config.PDFDirectory)
	return s.httpServer.ListenAndServe(ctx, s.config.Address())
}

// HTTPHandler returns the HTTP API handler, or nil in stdio mode
func (s *Server) HTTPHandler() http.Handler {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Handler()
}
