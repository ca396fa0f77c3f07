package pdf

import "github.com/a3tai/mcp-perfil-reader/internal/pdf/acquire"

// FileInfo represents information about a PDF file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Request Types

// ExtractRequest asks for the profile fields of one PDF file
type ExtractRequest struct {
	Path string `json:"path"`
}

// SearchDirectoryRequest represents a request to search for PDF files in a directory
type SearchDirectoryRequest struct {
	Directory string `json:"directory"`
	Query     string `json:"query"`
}

// Response Types

// ExtractResult is the response envelope of one extraction. ExtractedData
// always carries every declared field.
type ExtractResult struct {
	Success       bool              `json:"success"`
	Filename      string            `json:"filename"`
	ExtractedData map[string]string `json:"extracted_data"`
	FieldsFound   int               `json:"fields_found"`
	TotalFields   int               `json:"total_fields"`
	// Defaulted lists fields holding a default instead of an extracted value
	Defaulted []string `json:"defaulted"`
	Metadata  Metadata `json:"metadata"`
}

// Metadata describes how the text behind an ExtractResult was acquired
type Metadata struct {
	acquire.Report
	TextLength   int   `json:"text_length"`
	ProcessingMS int64 `json:"processing_ms"`
}

// FieldInfo describes one declared field
type FieldInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Patterns    int    `json:"patterns"`
	Validation  string `json:"validation,omitempty"`
	Default     string `json:"default,omitempty"`
}

// FieldsResult lists the declared fields in extraction order
type FieldsResult struct {
	Fields     []FieldInfo `json:"fields"`
	TotalCount int         `json:"total_count"`
}

// SearchDirectoryResult represents the result of a PDF search operation
type SearchDirectoryResult struct {
	Files       []FileInfo `json:"files"`
	TotalCount  int        `json:"total_count"`
	Directory   string     `json:"directory"`
	SearchQuery string     `json:"search_query,omitempty"`
}

// PipelineInfo is the active acquisition configuration
type PipelineInfo struct {
	Mode              string `json:"mode"`
	FallbackThreshold int    `json:"fallback_threshold"`
	OCRLanguage       string `json:"ocr_language"`
	OCRWorkers        int    `json:"ocr_workers"`
	TimeoutSeconds    int    `json:"timeout_seconds"`
}

// ServerInfoResult represents server information and usage guidance
type ServerInfoResult struct {
	ServerName        string       `json:"server_name"`
	Version           string       `json:"version"`
	DefaultDirectory  string       `json:"default_directory"`
	MaxFileSize       int64        `json:"max_file_size"`
	Pipeline          PipelineInfo `json:"pipeline"`
	Fields            []string     `json:"fields"`
	AvailableTools    []ToolInfo   `json:"available_tools"`
	DirectoryContents []FileInfo   `json:"directory_contents"`
	UsageGuidance     string       `json:"usage_guidance"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}
