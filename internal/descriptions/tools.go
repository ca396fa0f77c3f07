package descriptions

// Tool names exposed over MCP
const (
	ToolExtract         = "perfil_extract"
	ToolFields          = "perfil_fields"
	ToolSearchDirectory = "perfil_search_directory"
	ToolServerInfo      = "perfil_server_info"
)

const (
	PerfilExtractDescription = `Extract the labeled fields of a Mexican "Perfil Único" PDF.

**When to use:** You have a profile PDF (text-native or scanned) and need its name, CURP, RFC, CVU, email, phone, degree, job, birth date, nationality, institution, area and project.

**How it works:** Embedded text is read from every page. When it is too short (fallback mode) or always (exhaustive mode), embedded images are run through OCR in Spanish. Each field is then matched against an ordered list of patterns, first match wins, and structurally invalid values (bad CURP, RFC or email) are dropped.

**Examples:**
• "Extract the fields of perfiles/perfil-ana-lopez.pdf"
• "What CURP appears in solicitud_2024.pdf?"

**Reading the result:** extracted_data always holds every field, empty when not found. fields_found excludes defaulted values; defaulted lists them (nacionalidad defaults to "Mexicana"). metadata tells whether OCR fallback fired.`

	PerfilFieldsDescription = `List the fields perfil_extract returns, in extraction order, with the number of candidate patterns and the validation rule applied to each.

**When to use:** Before building a review form or a spreadsheet from extraction results, or to explain why a value came back empty.`

	PerfilSearchDirectoryDescription = `Find profile PDFs under the configured directory with optional fuzzy filename matching.

**When to use:** You do not know the exact path of a profile, or want to process every profile in a folder.

**Examples:**
• "Find PDFs whose name mentions garcia"
• "List all PDFs in convocatoria-2024/"`

	PerfilServerInfoDescription = `Describe this server: available tools, declared fields, the active acquisition mode and OCR settings, the configured directory and a sample of the PDFs it contains.

**When to use:** At the start of a session to discover what can be extracted and where files are expected.`
)

var toolDescriptions = map[string]string{
	ToolExtract:         PerfilExtractDescription,
	ToolFields:          PerfilFieldsDescription,
	ToolSearchDirectory: PerfilSearchDirectoryDescription,
	ToolServerInfo:      PerfilServerInfoDescription,
}

// GetToolDescription returns the description of a tool, or "" if unknown
func GetToolDescription(toolName string) string {
	return toolDescriptions[toolName]
}

// GetAllToolNames returns all tool names in registration order
func GetAllToolNames() []string {
	return []string{ToolExtract, ToolFields, ToolSearchDirectory, ToolServerInfo}
}
