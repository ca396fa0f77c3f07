package pdf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/a3tai/mcp-perfil-reader/internal/descriptions"
)

const (
	listingTTL     = 5 * time.Minute
	listingLimit   = 100
	listingTimeout = 5 * time.Second
)

// listingCache holds the last directory listing per directory
type listingCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]listingEntry
}

type listingEntry struct {
	files []FileInfo
	at    time.Time
}

func newListingCache(ttl time.Duration) *listingCache {
	return &listingCache{ttl: ttl, entries: make(map[string]listingEntry)}
}

func (c *listingCache) get(dir string) ([]FileInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[dir]
	if !ok || time.Since(e.at) > c.ttl {
		return nil, false
	}
	return e.files, true
}

func (c *listingCache) set(dir string, files []FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[dir] = listingEntry{files: files, at: time.Now()}
}

// ServerInfo builds server info results with a cached directory listing
type ServerInfo struct {
	service *Service
	cache   *listingCache
}

// NewServerInfo creates a server info handler for service
func NewServerInfo(service *Service) *ServerInfo {
	return &ServerInfo{service: service, cache: newListingCache(listingTTL)}
}

// Get returns server information. A directory scan that fails or outlives
// its deadline yields an empty listing, never an error.
func (p *ServerInfo) Get(ctx context.Context, serverName, version string) *ServerInfoResult {
	dir := p.service.ConfiguredDirectory()

	fields := p.service.Fields()
	names := make([]string, 0, len(fields.Fields))
	for _, f := range fields.Fields {
		names = append(names, f.Name)
	}

	return &ServerInfoResult{
		ServerName:        serverName,
		Version:           version,
		DefaultDirectory:  dir,
		MaxFileSize:       p.service.MaxFileSize(),
		Pipeline:          p.service.Pipeline(),
		Fields:            names,
		AvailableTools:    availableTools(),
		DirectoryContents: p.listing(ctx, dir),
		UsageGuidance:     p.usageGuidance(),
	}
}

func (p *ServerInfo) listing(ctx context.Context, dir string) []FileInfo {
	if files, ok := p.cache.get(dir); ok {
		return files
	}

	ctx, cancel := context.WithTimeout(ctx, listingTimeout)
	defer cancel()

	done := make(chan []FileInfo, 1)
	go func() {
		files, err := p.service.search.FindPDFsInDirectoryLimited(dir, listingLimit)
		if err != nil {
			files = []FileInfo{}
		}
		done <- files
	}()

	select {
	case files := <-done:
		p.cache.set(dir, files)
		return files
	case <-ctx.Done():
		return []FileInfo{}
	}
}

func availableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        descriptions.ToolExtract,
			Description: descriptions.GetToolDescription(descriptions.ToolExtract),
			Usage:       "Use this tool to pull the profile fields out of one PDF, scanned or text-native.",
			Parameters:  "path (required): PDF path, absolute or relative to the configured directory",
		},
		{
			Name:        descriptions.ToolFields,
			Description: descriptions.GetToolDescription(descriptions.ToolFields),
			Usage:       "Use this tool to see which fields are extracted and how each is validated.",
			Parameters:  "No parameters required",
		},
		{
			Name:        descriptions.ToolSearchDirectory,
			Description: descriptions.GetToolDescription(descriptions.ToolSearchDirectory),
			Usage:       "Use this tool to find profile PDFs before extracting them.",
			Parameters: "directory (optional): directory to search, defaults to the configured directory, " +
				"query (optional): fuzzy filename filter",
		},
		{
			Name:        descriptions.ToolServerInfo,
			Description: descriptions.GetToolDescription(descriptions.ToolServerInfo),
			Usage:       "Use this tool to discover server capabilities and configuration.",
			Parameters:  "No parameters required",
		},
	}
}

func (p *ServerInfo) usageGuidance() string {
	pipeline := p.service.Pipeline()
	maxFileSizeMB := p.service.MaxFileSize() / (1024 * 1024)

	var ocrWhen string
	if pipeline.Mode == "exhaustive" {
		ocrWhen = "OCR runs on every embedded image"
	} else {
		ocrWhen = fmt.Sprintf("OCR runs only when embedded text is under %d characters", pipeline.FallbackThreshold)
	}

	return fmt.Sprintf(`Perfil Único extraction guide:

1. FIND FILES:
   - Use '%s' to list PDFs under %s

2. EXTRACT:
   - Use '%s' with a path; every field is always present in extracted_data
   - Empty values mean not found or rejected by validation (CURP, RFC, email, phone)
   - 'defaulted' lists fields filled with a default rather than read from the document

3. INSPECT:
   - Use '%s' to see the fields and their validation rules

ACQUISITION:
   - Mode: %s (%s)
   - OCR language: %s
   - Per-document timeout: %ds, partial results are returned on expiry

LIMITS:
   - Maximum file size: %dMB
`,
		descriptions.ToolSearchDirectory, p.service.ConfiguredDirectory(),
		descriptions.ToolExtract,
		descriptions.ToolFields,
		pipeline.Mode, ocrWhen,
		pipeline.OCRLanguage,
		pipeline.TimeoutSeconds,
		maxFileSizeMB)
}
