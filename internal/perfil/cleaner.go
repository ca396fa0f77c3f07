package perfil

import "strings"

// Result is the validated field map of one document
type Result struct {
	Values    map[string]string `json:"extracted_data"`
	Defaulted []string          `json:"defaulted"`
	// Order lists the field names in declaration order
	Order []string `json:"-"`
}

// FieldsFound counts fields with an extracted value. Defaulted fields are not counted.
func (r *Result) FieldsFound() int {
	n := 0
	for name, v := range r.Values {
		if v != "" && !r.IsDefaulted(name) {
			n++
		}
	}
	return n
}

// TotalFields is the number of declared fields
func (r *Result) TotalFields() int {
	return len(r.Order)
}

// IsDefaulted reports whether name holds a default rather than an extracted value
func (r *Result) IsDefaulted(name string) bool {
	for _, d := range r.Defaulted {
		if d == name {
			return true
		}
	}
	return false
}

// Cleaner validates raw extracted values and applies defaults
type Cleaner struct {
	specs []FieldSpec
}

// NewCleaner creates a cleaner over specs
func NewCleaner(specs []FieldSpec) *Cleaner {
	return &Cleaner{specs: specs}
}

// Clean returns exactly the declared keys. Values failing validation become ""
// and are never reported as errors.
func (c *Cleaner) Clean(raw map[string]string) *Result {
	res := &Result{
		Values:    make(map[string]string, len(c.specs)),
		Defaulted: []string{},
		Order:     make([]string, 0, len(c.specs)),
	}

	for _, spec := range c.specs {
		res.Order = append(res.Order, spec.Name)

		v := strings.TrimSpace(raw[spec.Name])
		if v != "" && spec.Normalize != nil {
			v = strings.TrimSpace(spec.Normalize(v))
		}
		if v != "" && spec.Validate != nil && !spec.Validate(v) {
			v = ""
		}
		if v == "" && spec.Default != "" {
			v = spec.Default
			res.Defaulted = append(res.Defaulted, spec.Name)
		}
		res.Values[spec.Name] = v
	}
	return res
}

// Parser runs extraction then cleaning
type Parser struct {
	specs     []FieldSpec
	extractor *Extractor
	cleaner   *Cleaner
}

// NewParser creates a parser over the declared fields
func NewParser(opts Options) *Parser {
	specs := FieldSpecs(opts)
	return &Parser{
		specs:     specs,
		extractor: NewExtractor(specs),
		cleaner:   NewCleaner(specs),
	}
}

// Parse extracts and validates every declared field from text
func (p *Parser) Parse(text string) *Result {
	return p.cleaner.Clean(p.extractor.Extract(text))
}

// Specs returns the declared field specs
func (p *Parser) Specs() []FieldSpec {
	return p.specs
}
