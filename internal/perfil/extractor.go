// Package perfil recognizes the labeled fields of a Perfil Único in acquired text.
package perfil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Extractor applies each field's patterns to a text, first match wins
type Extractor struct {
	specs []FieldSpec
}

// NewExtractor creates an extractor over specs
func NewExtractor(specs []FieldSpec) *Extractor {
	return &Extractor{specs: specs}
}

// Fields returns the declared field names in order
func (e *Extractor) Fields() []string {
	names := make([]string, len(e.specs))
	for i, s := range e.specs {
		names[i] = s.Name
	}
	return names
}

// Extract returns the raw matched value for every declared field. Fields
// without a match map to "". The result always carries every declared key.
func (e *Extractor) Extract(text string) map[string]string {
	text = prepare(text)

	out := make(map[string]string, len(e.specs))
	for _, spec := range e.specs {
		out[spec.Name] = matchFirst(spec, text)
	}
	return out
}

// matchFirst returns the value captured by the first pattern that matches.
// A pattern whose capture is blank counts as no match.
func matchFirst(spec FieldSpec, text string) string {
	for _, re := range spec.Patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := m[0]
		if len(m) > 1 {
			value = m[1]
		}
		if value = collapseSpace(value); value != "" {
			return value
		}
	}
	return ""
}

// prepare composes accents (PDF text often carries decomposed forms) and
// turns every non-newline space into a plain space so patterns can stay ASCII.
func prepare(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\r':
			return '\n'
		case r == '\n':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, text)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
