package form

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"contactform/internal/challenge"
	"contactform/internal/domain"
	"contactform/internal/submission"
	apperrors "contactform/pkg/errors"
)

// User-facing status messages
const (
	VerificationRequiredMessage = "Por favor completa la verificación reCAPTCHA"
	RejectedFallbackMessage     = "Error al enviar el mensaje. Intenta nuevamente."
	ConnectivityMessage         = "Error de conexión. Por favor verifica tu internet e intenta nuevamente."
)

// DefaultSuccessDisplay is how long the success status stays before reverting to idle
const DefaultSuccessDisplay = 5 * time.Second

var (
	// ErrVerificationRequired is returned by Submit when the challenge has no token
	ErrVerificationRequired = apperrors.New(apperrors.ErrCodeVerificationRequired, VerificationRequiredMessage)
	// ErrSubmitInProgress is returned when the form is used while a submission is outstanding
	ErrSubmitInProgress = apperrors.New(apperrors.ErrCodeConflict, "submission already in progress")
	// ErrClosed is returned once the controller has been torn down
	ErrClosed = apperrors.New(apperrors.ErrCodeConflict, "form is closed")
)

// ValidationError carries the per-field failures that stopped a submission
type ValidationError struct {
	Errors domain.FieldErrors
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for _, f := range domain.Fields {
		if _, ok := e.Errors[f]; ok {
			fields = append(fields, string(f))
		}
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// Controller owns the state of one mounted contact form
type Controller struct {
	challenge      challenge.Provider
	endpoint       submission.Endpoint
	clock          Clock
	successDisplay time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	fields  domain.FormFields
	errors  domain.FieldErrors
	touched domain.TouchedSet
	status  Status
	// version increments on every status transition; scheduled reversions compare against it
	version uint64
	timer   Timer
	cancel  context.CancelFunc
	closed  bool
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the clock used to schedule the success reversion
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithSuccessDisplay sets how long the success status is shown
func WithSuccessDisplay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.successDisplay = d
		}
	}
}

// WithLogger sets the controller logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController mounts a form with empty fields
func NewController(provider challenge.Provider, endpoint submission.Endpoint, opts ...Option) *Controller {
	c := &Controller{
		challenge:      provider,
		endpoint:       endpoint,
		clock:          realClock{},
		successDisplay: DefaultSuccessDisplay,
		logger:         zap.NewNop(),
		errors:         domain.FieldErrors{},
		touched:        domain.TouchedSet{},
		status:         Idle(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Change records a new value. Once the field has been touched it is revalidated immediately.
func (c *Controller) Change(field domain.Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	c.fields.Set(field, value)
	if c.touched[field] {
		c.applyValidationLocked(field, value)
	}
	return nil
}

// Blur marks the field touched and validates it
func (c *Controller) Blur(field domain.Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	c.touched[field] = true
	c.applyValidationLocked(field, value)
	return nil
}

// Submit validates every field, checks the challenge token and posts the form.
// It blocks until the endpoint answers. The returned error describes why the
// form was not accepted; the same outcome is reflected in Snapshot().Status.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	candidate := ValidateAll(c.fields)
	for _, f := range domain.Fields {
		c.touched[f] = true
	}
	c.errors = candidate
	if len(candidate) > 0 {
		c.mu.Unlock()
		c.logger.Debug("submit blocked by validation", zap.Int("invalid_fields", len(candidate)))
		return apperrors.Wrap(apperrors.ErrCodeValidation, "form has invalid fields", &ValidationError{Errors: copyErrors(candidate)})
	}

	token, ok := c.challenge.Token()
	if !ok {
		c.setStatusLocked(Failed(VerificationRequiredMessage))
		c.mu.Unlock()
		c.logger.Debug("submit blocked: verification token missing")
		return ErrVerificationRequired
	}

	c.setStatusLocked(Submitting())
	payload := domain.NewSubmissionPayload(c.fields, token)
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("submitting contact form", zap.String("service_type", payload.ServiceType))
	err := c.endpoint.Submit(reqCtx, payload)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = nil
	if c.closed {
		c.logger.Debug("dropping submission result after close", zap.Error(err))
		return ErrClosed
	}

	if err == nil {
		c.setStatusLocked(Success())
		c.fields = domain.FormFields{}
		c.touched = domain.TouchedSet{}
		c.errors = domain.FieldErrors{}
		c.challenge.Reset()
		c.scheduleIdleLocked()
		c.logger.Info("contact form accepted")
		return nil
	}

	c.challenge.Reset()

	var rejected *submission.RejectedError
	if errors.As(err, &rejected) {
		msg := rejected.Message(RejectedFallbackMessage)
		c.setStatusLocked(Failed(msg))
		c.logger.Warn("contact form rejected", zap.Int("status", rejected.StatusCode))
		return apperrors.Wrap(apperrors.ErrCodeSubmissionRejected, msg, err)
	}

	c.setStatusLocked(Failed(ConnectivityMessage))
	c.logger.Warn("contact form transport failure", zap.Error(err))
	return apperrors.Wrap(apperrors.ErrCodeTransport, ConnectivityMessage, err)
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	touched := make(domain.TouchedSet, len(c.touched))
	for k, v := range c.touched {
		touched[k] = v
	}
	return Snapshot{
		Fields:  c.fields,
		Errors:  copyErrors(c.errors),
		Touched: touched,
		Status:  c.status,
	}
}

// Close unmounts the form: the in-flight request is cancelled, the pending
// idle reversion is stopped and late results are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.version++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stopTimerLocked()
}

func (c *Controller) editableLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.status.Phase == PhaseSubmitting {
		return ErrSubmitInProgress
	}
	return nil
}

func (c *Controller) applyValidationLocked(field domain.Field, value string) {
	if msg := Validate(field, value); msg != "" {
		c.errors[field] = msg
		return
	}
	delete(c.errors, field)
}

func (c *Controller) setStatusLocked(s Status) {
	c.version++
	c.status = s
	c.stopTimerLocked()
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) scheduleIdleLocked() {
	version := c.version
	c.timer = c.clock.AfterFunc(c.successDisplay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.version != version {
			return
		}
		c.setStatusLocked(Idle())
	})
}

func copyErrors(src domain.FieldErrors) domain.FieldErrors {
	dst := make(domain.FieldErrors, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
