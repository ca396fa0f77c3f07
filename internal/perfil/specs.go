package perfil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field names, in declaration order
const (
	FieldNombreCompleto      = "nombre_completo"
	FieldCURP                = "curp"
	FieldRFC                 = "rfc"
	FieldNoCVU               = "no_cvu"
	FieldCorreo              = "correo"
	FieldTelefono            = "telefono"
	FieldUltimoGradoEstudios = "ultimo_grado_estudios"
	FieldEmpleoActual        = "empleo_actual"
	FieldFechaNacimiento     = "fecha_nacimiento"
	FieldNacionalidad        = "nacionalidad"
	FieldInstitucion         = "institucion"
	FieldArea                = "area"
	FieldProyecto            = "proyecto"
)

// DefaultNacionalidad is assumed when no nationality is found
const DefaultNacionalidad = "Mexicana"

// RFC length bounds. Individuals have 13 characters, legal entities 12.
const (
	DefaultRFCMinLength = 12
	DefaultRFCMaxLength = 13
)

// FieldSpec declares how one field is found and checked
type FieldSpec struct {
	Name        string
	Description string
	// Patterns are tried in order; the first that matches wins. Group 1 is
	// the value when present, otherwise the whole match.
	Patterns []*regexp.Regexp
	// Normalize runs on a matched value before validation.
	Normalize func(string) string
	// Validate rejects structurally invalid values. nil accepts anything non-empty.
	Validate func(string) bool
	// Rule names the validity check, for listings.
	Rule string
	// Default replaces an empty value after validation.
	Default string
}

// Options tunes validation
type Options struct {
	RFCMinLength int
	RFCMaxLength int
}

// DefaultOptions returns the standard RFC bounds
func DefaultOptions() Options {
	return Options{RFCMinLength: DefaultRFCMinLength, RFCMaxLength: DefaultRFCMaxLength}
}

// free-text values run to the end of the line after a label and separator
const labelSep = `[ \t]*[:\-–][ \t]*`

var (
	curpRe  = regexp.MustCompile(`^[A-Z]{4}\d{6}[HM][A-Z]{5}[A-Z0-9]\d$`)
	rfcRe   = regexp.MustCompile(`^[A-ZÑ&]{3,4}\d{6}(?:[A-Z0-9]{3})?$`)
	emailRe = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9\-]+(?:\.[a-z0-9\-]+)*\.[a-z]{2,}$`)
	// text glued after a common TLD by PDF text extraction, e.g. "gmail.comcelular"
	gluedTLDRe = regexp.MustCompile(`\.(com|mx|edu|org|net|gob)[a-z]+$`)
	titleRe    = regexp.MustCompile(`^(?i:dr|dra|prof|profa|profra|mtro|mtra|lic|ing)\.?\s+`)
)

// FieldSpecs returns the declared fields in order
func FieldSpecs(opts Options) []FieldSpec {
	if opts.RFCMinLength <= 0 {
		opts.RFCMinLength = DefaultRFCMinLength
	}
	if opts.RFCMaxLength <= 0 {
		opts.RFCMaxLength = DefaultRFCMaxLength
	}

	return []FieldSpec{
		{
			Name:        FieldNombreCompleto,
			Description: "Nombre completo",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bnombre(?:\s+completo)?` + labelSep + `(\S[^\n]*)`),
				regexp.MustCompile(`(?i)\bapellidos?\s+y\s+nombres?` + labelSep + `(\S[^\n]*)`),
				regexp.MustCompile(`(?:^|\s)(?i:dr|dra|prof|profa|profra|mtro|mtra|lic|ing)\.?[ \t]+(\p{Lu}\p{Ll}+(?:[ \t]+\p{Lu}\p{Ll}+){1,4})`),
			},
			Normalize: stripTitle,
			Rule:      "non-empty",
		},
		{
			Name:        FieldCURP,
			Description: "Clave Única de Registro de Población",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?im)\b(?:curp|clave\s+[uú]nica\s+de\s+registro\s+de\s+poblaci[oó]n)\s*[:\-]?\s*([A-Z0-9]{18})\b`),
				regexp.MustCompile(`(?m)\b([A-Z]{4}\d{6}[HM][A-Z]{5}[A-Z0-9]\d)\b`),
			},
			Normalize: strings.ToUpper,
			Validate:  ValidCURP,
			Rule:      "curp: 4 letters, 6 digits, H/M, 5 letters, 1 alphanumeric, 1 digit",
		},
		{
			Name:        FieldRFC,
			Description: "Registro Federal de Contribuyentes",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?im)(?:\brfc|\br\.f\.c\.?|\bregistro\s+federal\s+de\s+contribuyentes)\s*[:\-]?\s*([A-ZÑ&0-9]{10,13})\b`),
				regexp.MustCompile(`(?m)(?:^|[^\p{L}\p{N}&])([A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3})(?:$|[^\p{L}\p{N}])`),
			},
			Normalize: strings.ToUpper,
			Validate: func(v string) bool {
				return ValidRFC(v, opts.RFCMinLength, opts.RFCMaxLength)
			},
			Rule: "rfc: 3-4 letters, 6 digits, 3 alphanumeric",
		},
		{
			Name:        FieldNoCVU,
			Description: "Número de CVU / Perfil Único",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?im)\b(?:n[uú]mero\s+de|no\.?|id)\s*(?:cvu|pu)\b\s*[:\-]?\s*([A-Z0-9]*\d[A-Z0-9]*)\b`),
				regexp.MustCompile(`(?im)(?:\bc\.v\.u\.?|\bcvu\b|\bpu\b)\s*[:\-]?\s*([A-Z0-9]*\d[A-Z0-9]*)\b`),
			},
			Normalize: strings.ToUpper,
			Rule:      "non-empty",
		},
		{
			Name:        FieldCorreo,
			Description: "Correo electrónico",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:correo(?:\s+electr[oó]nico)?|e-?mail|mail)\s*[:\-]?\s*([A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,})`),
				regexp.MustCompile(`(?i)([A-Z0-9][A-Z0-9._%+\-]*@[A-Z0-9.\-]+\.[A-Z]{2,})`),
			},
			Normalize: NormalizeEmail,
			Validate:  ValidEmail,
			Rule:      "email: local@domain.tld",
		},
		{
			Name:        FieldTelefono,
			Description: "Teléfono (10 dígitos)",
			Patterns: []*regexp.Regexp{
				// optional +52, then one number in 10-digit grouped shape: (614) 123-4567, 55 1234 5678
				regexp.MustCompile(`(?i)\b(?:tel[eé]fono|celular|m[oó]vil|phone|tel|cel)\.?\s*[:\-]?\s*((?:\+?52[ \t\-]*)?\(?\d{2,3}\)?[ \t\-.]*\d{3,4}[ \t\-.]*\d{4})(?:\D|$)`),
				regexp.MustCompile(`(?:^|\D)(\d{10})(?:$|\D)`),
			},
			Normalize: NormalizePhone,
			Validate:  ValidPhone,
			Rule:      "phone: 10 digits, country code 52 removed",
		},
		{
			Name:        FieldUltimoGradoEstudios,
			Description: "Último grado de estudios",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:[uú]ltimo\s+grado(?:\s+de\s+estudios)?|grado\s+m[aá]ximo(?:\s+de\s+estudios)?|grado\s+acad[eé]mico|grado)` + labelSep + `(\S[^\n]*)`),
				regexp.MustCompile(`(?i)\b((?:doctorado|maestr[ií]a|licenciatura|ingenier[ií]a|especialidad)[ \t]+(?:en|de|del)[ \t]+[^\n,.;]+)`),
			},
			Rule: "non-empty",
		},
		{
			Name:        FieldEmpleoActual,
			Description: "Empleo o cargo actual",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:empleo\s+actual|cargo(?:\s+actual)?|puesto(?:\s+actual)?|ocupaci[oó]n)` + labelSep + `(\S[^\n]*)`),
				regexp.MustCompile(`(?im)^[ \t]*((?:profesora?|investigadora?|docente|catedr[aá]tic[oa]|coordinadora?|directora?|jef[ea])\b[^\n]*)$`),
			},
			Rule: "non-empty",
		},
		{
			Name:        FieldFechaNacimiento,
			Description: "Fecha de nacimiento",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:fecha\s+de\s+nacimiento|nacimiento|birth\s*date)\s*[:\-]?\s*(\d{1,2}[/\-]\d{1,2}[/\-]\d{4}|\d{4}-\d{2}-\d{2})\b`),
				regexp.MustCompile(`(?i)\b(?:fecha\s+de\s+nacimiento|nacimiento)\s*[:\-]?\s*(\d{1,2}\s+de\s+\p{L}+\s+de\s+\d{4})`),
			},
			Rule: "non-empty",
		},
		{
			Name:        FieldNacionalidad,
			Description: "Nacionalidad",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bnacionalidad` + labelSep + `(\S[^\n]*)`),
				regexp.MustCompile(`(?i)\bnacionalidad[ \t]+(\p{L}+)`),
			},
			Rule:    "non-empty",
			Default: DefaultNacionalidad,
		},
		{
			Name:        FieldInstitucion,
			Description: "Institución de adscripción",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:instituci[oó]n(?:\s+de\s+adscripci[oó]n)?|adscripci[oó]n)` + labelSep + `(\S[^\n]*)`),
				regexp.MustCompile(`((?:Universidad|Instituto|Centro|Facultad|Escuela|Colegio)[ \t]+(?:de|del|de la|Autónoma|Nacional|Tecnológico|Politécnico)\b[^\n,;]*)`),
				regexp.MustCompile(`\b(UACH|UNAM|IPN|ITESM|UANL|UABC|UDG|UAM|CINVESTAV|CONACYT|CONAHCYT)\b`),
			},
			Rule: "non-empty",
		},
		{
			Name:        FieldArea,
			Description: "Área de conocimiento",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:[aá]rea(?:\s+de\s+(?:conocimiento|especialidad|investigaci[oó]n))?|disciplina|l[ií]nea\s+de\s+investigaci[oó]n)` + labelSep + `(\S[^\n]*)`),
			},
			Rule: "non-empty",
		},
		{
			Name:        FieldProyecto,
			Description: "Proyecto",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(?:(?:t[ií]tulo|nombre)\s+del\s+proyecto|proyecto)` + labelSep + `(\S[^\n]*)`),
			},
			Rule: "non-empty",
		},
	}
}

// ValidCURP reports whether v is a structurally valid CURP
func ValidCURP(v string) bool {
	return curpRe.MatchString(v)
}

// ValidRFC reports whether v is a structurally valid RFC whose length lies in [minLen, maxLen]
func ValidRFC(v string, minLen, maxLen int) bool {
	n := utf8.RuneCountInString(v)
	if n < minLen || n > maxLen {
		return false
	}
	return rfcRe.MatchString(v)
}

// ValidEmail reports whether v has a local@domain.tld shape
func ValidEmail(v string) bool {
	return emailRe.MatchString(v)
}

// ValidPhone reports whether v is exactly ten digits, not all the same digit
func ValidPhone(v string) bool {
	if len(v) != 10 {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return strings.Count(v, v[:1]) != len(v)
}

// NormalizeEmail lowercases and drops text glued after the TLD
func NormalizeEmail(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return gluedTLDRe.ReplaceAllString(v, ".$1")
}

// NormalizePhone keeps digits only and drops the Mexican country code
func NormalizePhone(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 10 && strings.HasPrefix(digits, "52") {
		digits = digits[2:]
	}
	return digits
}

func stripTitle(v string) string {
	return titleRe.ReplaceAllString(v, "")
}
