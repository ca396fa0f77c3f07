package pdf

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, content, 0o644); err != nil {
			t.Fatalf("failed to create test file %s: %v", name, err)
		}
	}
}

func TestSearch_SearchDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string][]byte{
		"perfil_ana_garcia.pdf":      make([]byte, 1024),
		"perfil-luis-hernandez.pdf":  make([]byte, 512),
		"convocatoria/solicitud.pdf": make([]byte, 256),
		"notas.txt":                  []byte("not a pdf"),
		"vacio.pdf":                  {},
		"enorme.pdf":                 make([]byte, 2*1024*1024),
		".cache/perfil_oculto.pdf":   make([]byte, 128),
		"convocatoria/anexo.PDF":     make([]byte, 64),
	})

	search := NewSearch(1024 * 1024)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"anexo.PDF", "solicitud.pdf", "perfil-luis-hernandez.pdf", "perfil_ana_garcia.pdf"}},
		{"substring", "garcia", []string{"perfil_ana_garcia.pdf"}},
		{"case insensitive", "HERNANDEZ", []string{"perfil-luis-hernandez.pdf"}},
		{"word match", "ana perfil", []string{"perfil_ana_garcia.pdf"}},
		{"no match", "inexistente", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := search.SearchDirectory(SearchDirectoryRequest{Directory: dir, Query: tt.query})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.TotalCount != len(tt.want) {
				t.Fatalf("expected %d files, got %d: %+v", len(tt.want), result.TotalCount, result.Files)
			}
			for i, f := range result.Files {
				if f.Name != tt.want[i] {
					t.Errorf("file %d = %s, want %s", i, f.Name, tt.want[i])
				}
			}
			if result.SearchQuery != tt.query {
				t.Errorf("search query = %q, want %q", result.SearchQuery, tt.query)
			}
		})
	}
}

func TestSearch_Errors(t *testing.T) {
	search := NewSearch(1024)

	if _, err := search.SearchDirectory(SearchDirectoryRequest{}); err == nil {
		t.Error("expected error for empty directory")
	}
	if _, err := search.FindPDFsInDirectory(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestSearch_FindPDFsInDirectoryLimited(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string][]byte{
		"a.pdf": {1}, "b.pdf": {1}, "c.pdf": {1}, "d.pdf": {1},
	})
	search := NewSearch(1024)

	files, err := search.FindPDFsInDirectoryLimited(dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 files, got %d", len(files))
	}

	all, err := search.FindPDFsInDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 files, got %d", len(all))
	}
}

func TestMatchesQuery(t *testing.T) {
	tests := []struct {
		filename string
		query    string
		want     bool
	}{
		{"perfil_unico_2024.pdf", "unico", true},
		{"perfil_unico_2024.pdf", "2024 perfil", true},
		{"perfil_unico_2024.pdf", "perfil 2023", false},
		{"Perfil Único.pdf", "único", true},
		{"cv.pdf", "perfil", false},
	}
	for _, tt := range tests {
		if got := matchesQuery(tt.filename, tt.query); got != tt.want {
			t.Errorf("matchesQuery(%q, %q) = %v, want %v", tt.filename, tt.query, got, tt.want)
		}
	}
}
