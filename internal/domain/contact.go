package domain

// Field identifies one input of the contact form
type Field string

const (
	FieldName        Field = "name"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
	FieldCompany     Field = "company"
	FieldServiceType Field = "serviceType"
	FieldMessage     Field = "message"
)

// Fields lists every form field in display order
var Fields = []Field{
	FieldName,
	FieldEmail,
	FieldPhone,
	FieldCompany,
	FieldServiceType,
	FieldMessage,
}

// ServiceTypePlaceholder is the "no selection" option of the service type select
const ServiceTypePlaceholder = "Selecciona un tipo de servicio"

// ServiceTypes holds the select options, placeholder first
var ServiceTypes = []string{
	ServiceTypePlaceholder,
	"Piscinero",
	"Control de Plagas",
	"Refrigeración",
	"Áreas Verdes",
	"Otro",
}

// ParseField converts a raw key into a Field
func ParseField(key string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == key {
			return f, true
		}
	}
	return "", false
}

// FormFields represents the values currently entered in the contact form
type FormFields struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Company     string `json:"company"`
	ServiceType string `json:"serviceType"`
	Message     string `json:"message"`
}

// Get returns the value of a field
func (f *FormFields) Get(field Field) string {
	switch field {
	case FieldName:
		return f.Name
	case FieldEmail:
		return f.Email
	case FieldPhone:
		return f.Phone
	case FieldCompany:
		return f.Company
	case FieldServiceType:
		return f.ServiceType
	case FieldMessage:
		return f.Message
	}
	return ""
}

// Set updates the value of a field; unknown fields are ignored
func (f *FormFields) Set(field Field, value string) {
	switch field {
	case FieldName:
		f.Name = value
	case FieldEmail:
		f.Email = value
	case FieldPhone:
		f.Phone = value
	case FieldCompany:
		f.Company = value
	case FieldServiceType:
		f.ServiceType = value
	case FieldMessage:
		f.Message = value
	}
}

// FieldErrors maps a field to its validation message. A missing key means valid.
type FieldErrors map[Field]string

// TouchedSet records the fields the user has blurred at least once
type TouchedSet map[Field]bool

// SubmissionPayload is the JSON body posted to the submission endpoint
type SubmissionPayload struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Company        string `json:"company"`
	ServiceType    string `json:"serviceType"`
	Message        string `json:"message"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// NewSubmissionPayload builds the wire payload from the form values and a verification token
func NewSubmissionPayload(fields FormFields, token string) SubmissionPayload {
	return SubmissionPayload{
		Name:           fields.Name,
		Email:          fields.Email,
		Phone:          fields.Phone,
		Company:        fields.Company,
		ServiceType:    fields.ServiceType,
		Message:        fields.Message,
		RecaptchaToken: token,
	}
}
