package form

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"contactform/internal/domain"
)

// whitespace matches what browsers treat as whitespace, which is wider than RE2's ASCII \s.
const whitespace = `\s\v\p{Z}\x{FEFF}`

var (
	emailRegex = regexp.MustCompile(`^[^` + whitespace + `@]+@[^` + whitespace + `@]+\.[^` + whitespace + `@]+$`)
	phoneRegex = regexp.MustCompile(`^[\d` + whitespace + `\-+()]+$`)
)

const (
	minNameLength    = 3
	minMessageLength = 10
)

// Validate checks a single field value and returns the message to show the
// user, or an empty string when the value is valid.
func Validate(field domain.Field, value string) string {
	trimmed := strings.TrimSpace(value)

	switch field {
	case domain.FieldName:
		if trimmed == "" {
			return "El nombre es requerido"
		}
		if utf8.RuneCountInString(trimmed) < minNameLength {
			return "El nombre debe tener al menos 3 caracteres"
		}
	case domain.FieldEmail:
		if trimmed == "" {
			return "El email es requerido"
		}
		if !emailRegex.MatchString(value) {
			return "Email inválido"
		}
	case domain.FieldPhone:
		if trimmed == "" {
			return "El teléfono es requerido"
		}
		if !phoneRegex.MatchString(value) {
			return "Teléfono inválido"
		}
	case domain.FieldCompany:
		if trimmed == "" {
			return "La empresa/negocio es requerida"
		}
	case domain.FieldServiceType:
		if value == "" || value == domain.ServiceTypePlaceholder {
			return "Selecciona un tipo de servicio"
		}
	case domain.FieldMessage:
		if trimmed == "" {
			return "El mensaje es requerido"
		}
		if utf8.RuneCountInString(trimmed) < minMessageLength {
			return "El mensaje debe tener al menos 10 caracteres"
		}
	}
	return ""
}

// ValidateAll runs Validate over every field and collects the failures
func ValidateAll(fields domain.FormFields) domain.FieldErrors {
	errs := domain.FieldErrors{}
	for _, f := range domain.Fields {
		if msg := Validate(f, fields.Get(f)); msg != "" {
			errs[f] = msg
		}
	}
	return errs
}
