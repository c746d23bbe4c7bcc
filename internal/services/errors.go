package services

import (
	"errors"
	"net/http"

	goa "goa.design/goa/v3/pkg"

	"contactform/internal/domain"
	"contactform/internal/form"
	apperrors "contactform/pkg/errors"
)

// Error names reported to the browser
const (
	ErrNameBadRequest           = "bad_request"
	ErrNameNotFound             = "not_found"
	ErrNameInvalidFields        = "invalid_fields"
	ErrNameVerificationRequired = "verification_required"
	ErrNameSubmissionRejected   = "submission_rejected"
	ErrNameTransport            = "transport_error"
	ErrNameConflict             = "conflict"
	ErrNameInternal             = "internal"
)

// errorResult is the JSON shape of an error response
type errorResult struct {
	Name    string             `json:"name"`
	ID      string             `json:"id"`
	Message string             `json:"message"`
	Fields  domain.FieldErrors `json:"fields,omitempty"`
}

// toServiceError converts an application error into a goa ServiceError
func toServiceError(err error) *goa.ServiceError {
	var svcErr *goa.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return goa.Fault("%s", err.Error())
	}

	switch appErr.Code {
	case apperrors.ErrCodeBadRequest:
		return goa.PermanentError(ErrNameBadRequest, "%s", appErr.Message)
	case apperrors.ErrCodeNotFound:
		return goa.PermanentError(ErrNameNotFound, "%s", appErr.Message)
	case apperrors.ErrCodeValidation:
		return goa.PermanentError(ErrNameInvalidFields, "%s", appErr.Message)
	case apperrors.ErrCodeVerificationRequired:
		return goa.PermanentError(ErrNameVerificationRequired, "%s", appErr.Message)
	case apperrors.ErrCodeSubmissionRejected:
		return goa.PermanentError(ErrNameSubmissionRejected, "%s", appErr.Message)
	case apperrors.ErrCodeTransport:
		return goa.TemporaryError(ErrNameTransport, "%s", appErr.Message)
	case apperrors.ErrCodeConflict:
		return goa.TemporaryError(ErrNameConflict, "%s", appErr.Message)
	}
	return goa.Fault("%s", appErr.Message)
}

// statusOf maps a ServiceError to an HTTP status code
func statusOf(e *goa.ServiceError) int {
	switch e.Name {
	case ErrNameBadRequest:
		return http.StatusBadRequest
	case ErrNameNotFound:
		return http.StatusNotFound
	case ErrNameInvalidFields, ErrNameVerificationRequired:
		return http.StatusUnprocessableEntity
	case ErrNameSubmissionRejected:
		return http.StatusBadGateway
	case ErrNameTransport:
		return http.StatusGatewayTimeout
	case ErrNameConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// newErrorResult builds the response body for err, carrying field errors when present
func newErrorResult(err error) (*errorResult, int) {
	svcErr := toServiceError(err)
	res := &errorResult{
		Name:    svcErr.Name,
		ID:      svcErr.ID,
		Message: svcErr.Message,
	}
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		res.Fields = verr.Errors
	}
	return res, statusOf(svcErr)
}

// BadRequest creates a bad request error for the form API
func BadRequest(message string) error {
	return apperrors.New(apperrors.ErrCodeBadRequest, message)
}

// NotFound creates a not found error for the form API
func NotFound(message string) error {
	return apperrors.New(apperrors.ErrCodeNotFound, message)
}
