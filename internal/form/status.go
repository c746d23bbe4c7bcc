package form

import (
	"fmt"

	"contactform/internal/domain"
)

// Phase is the submission lifecycle stage
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// MarshalText renders the phase by name for JSON snapshots
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseIdle, PhaseSubmitting, PhaseSuccess, PhaseError} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Status is the submission state. Message is only set in PhaseError.
type Status struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message,omitempty"`
}

// Idle returns the resting status
func Idle() Status { return Status{Phase: PhaseIdle} }

// Submitting returns the in-flight status
func Submitting() Status { return Status{Phase: PhaseSubmitting} }

// Success returns the accepted status
func Success() Status { return Status{Phase: PhaseSuccess} }

// Failed returns an error status carrying a user-facing message
func Failed(message string) Status { return Status{Phase: PhaseError, Message: message} }

// InputClass is the visual treatment of an input
type InputClass string

const (
	InputNeutral InputClass = "neutral"
	InputValid   InputClass = "valid"
	InputInvalid InputClass = "invalid"
)

// Snapshot is a point-in-time copy of the controller state for rendering
type Snapshot struct {
	Fields  domain.FormFields  `json:"fields"`
	Errors  domain.FieldErrors `json:"errors"`
	Touched domain.TouchedSet  `json:"touched"`
	Status  Status             `json:"status"`
}

// Busy reports whether inputs and the submit control should be disabled
func (s Snapshot) Busy() bool {
	return s.Status.Phase == PhaseSubmitting
}

// VisibleError returns the error to display next to a field; errors are hidden until the field is touched
func (s Snapshot) VisibleError(field domain.Field) string {
	if !s.Touched[field] {
		return ""
	}
	return s.Errors[field]
}

// InputClass derives the visual treatment of a field
func (s Snapshot) InputClass(field domain.Field) InputClass {
	if !s.Touched[field] {
		return InputNeutral
	}
	if s.Errors[field] != "" {
		return InputInvalid
	}
	if s.Fields.Get(field) != "" {
		return InputValid
	}
	return InputNeutral
}
