package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is returned when user-supplied data is malformed or
// insufficient. It lists every rejected field.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("notplaceholder", func(fl validator.FieldLevel) bool {
		return !IsPlaceholder(fl.Field().String())
	})
	_ = v.RegisterValidation("nottitleplaceholder", func(fl validator.FieldLevel) bool {
		return !IsPlaceholderTitle(fl.Field().String())
	})
	_ = v.RegisterValidation("contactemail", func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	})
	return v
}

var placeholders = map[string]bool{
	"n/a": true, "na": true, "none": true, "null": true, "nil": true, "undefined": true,
	"unknown": true, "test": true, "teste": true, "-": true, "--": true, "...": true,
	"x": true, "xx": true, "xxx": true, "asdf": true, "tbd": true, "todo": true,
	"nenhum": true, "nenhuma": true, "não informado": true, "nao informado": true,
	"não sei": true, "nao sei": true, "a definir": true, "desconhecido": true,
	"example": true, "exemplo": true, "name": true, "nome": true, "company": true, "empresa": true,
}

var titlePlaceholders = map[string]bool{
	"title": true, "titulo": true, "título": true, "untitled": true, "sem título": true, "sem titulo": true,
	"meeting": true, "reunião": true, "reuniao": true, "appointment": true, "agendamento": true,
	"event": true, "evento": true, "new event": true, "novo evento": true,
}

func normalizeToken(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".!?:;,")
}

// IsPlaceholder reports whether s is empty or a known filler value.
func IsPlaceholder(s string) bool {
	n := normalizeToken(s)
	if n == "" {
		return true
	}
	if placeholders[n] {
		return true
	}
	// "aaaa", "...." and friends
	return utf8.RuneCountInString(n) > 1 && strings.Count(n, string([]rune(n)[0])) == utf8.RuneCountInString(n)
}

// IsPlaceholderTitle is IsPlaceholder plus generic event titles that carry no context.
func IsPlaceholderTitle(s string) bool {
	return IsPlaceholder(s) || titlePlaceholders[normalizeToken(s)]
}

// IsValidEmail requires a non-empty local part, an "@" and a dotted domain.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 || strings.ContainsAny(s, " \t<>") {
		return false
	}
	domain := s[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1 && !strings.Contains(domain, "..")
}

// Normalize trims every free-text field in place.
func (c *ContactInfo) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Company = strings.TrimSpace(c.Company)
	c.Role = strings.TrimSpace(c.Role)
	c.Objectives = strings.TrimSpace(c.Objectives)
	c.Challenges = strings.TrimSpace(c.Challenges)
	c.Message = strings.TrimSpace(c.Message)
}

// Validate checks every required field. The record is never partially
// accepted: the returned error lists all failures.
func (c ContactInfo) Validate() error {
	c.Normalize()
	if err := validate.Struct(c); err != nil {
		return toValidationError(err)
	}
	return nil
}

// Validate checks the request rules. minDescription is the minimum
// number of characters the description must carry.
func (r AppointmentRequest) Validate(minDescription int) error {
	var fields []FieldError

	if err := validate.Struct(r); err != nil {
		fields = append(fields, toValidationError(err).Fields...)
	}

	if !r.Start.IsZero() && !r.End.IsZero() && !r.End.After(r.Start) {
		fields = append(fields, FieldError{Field: "end", Reason: "must be after start"})
	}

	if len(r.Attendees) > 0 && len(r.ValidAttendees()) == 0 {
		fields = append(fields, FieldError{Field: "attendees", Reason: "must contain at least one valid email"})
	}

	if utf8.RuneCountInString(strings.TrimSpace(r.Description)) < minDescription {
		fields = append(fields, FieldError{
			Field:  "description",
			Reason: fmt.Sprintf("must have at least %d characters of context", minDescription),
		})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ValidAttendees returns the attendee addresses that pass IsValidEmail.
func (r AppointmentRequest) ValidAttendees() []string {
	var out []string
	for _, a := range r.Attendees {
		a = strings.TrimSpace(a)
		if IsValidEmail(a) {
			out = append(out, a)
		}
	}
	return out
}

func toValidationError(err error) *ValidationError {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return &ValidationError{Fields: []FieldError{{Field: "request", Reason: err.Error()}}}
	}

	out := &ValidationError{}
	for _, fe := range vErrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Reason: reasonFor(fe)})
	}
	return out
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must not be empty"
		}
		return "is too short"
	case "notplaceholder":
		return "looks like a placeholder"
	case "nottitleplaceholder":
		return "is a placeholder title"
	case "contactemail":
		return "is not a valid email address"
	default:
		return "is invalid"
	}
}
