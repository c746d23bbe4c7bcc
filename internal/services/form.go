package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	goahttp "goa.design/goa/v3/http"

	"contactform/internal/challenge"
	"contactform/internal/config"
	"contactform/internal/domain"
	"contactform/internal/form"
	"contactform/internal/metrics"
	"contactform/internal/submission"
	apperrors "contactform/pkg/errors"
)

// SessionsPath is the route prefix of the form API
const SessionsPath = "/api/v1/form/sessions"

// session is one mounted contact form, bound to one browser page
type session struct {
	id         string
	controller *form.Controller
	widget     *challenge.Widget
	lastSeen   time.Time
}

// FormService hosts contact form controllers behind an HTTP API
type FormService struct {
	cfg      config.FormConfig
	endpoint submission.Endpoint
	logger   *zap.Logger
	clock    form.Clock
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	mux      goahttp.Muxer
}

// FormServiceOption configures a FormService
type FormServiceOption func(*FormService)

// WithControllerClock sets the clock handed to every controller
func WithControllerClock(clock form.Clock) FormServiceOption {
	return func(s *FormService) {
		s.clock = clock
	}
}

// WithNow overrides the time source used for session idle tracking
func WithNow(now func() time.Time) FormServiceOption {
	return func(s *FormService) {
		s.now = now
	}
}

// NewFormService creates a new form service
func NewFormService(cfg config.FormConfig, endpoint submission.Endpoint, logger *zap.Logger, opts ...FormServiceOption) *FormService {
	s := &FormService{
		cfg:      cfg,
		endpoint: endpoint,
		logger:   logger.Named("contact"),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sessionResult is the JSON view of a session
type sessionResult struct {
	ID              string                           `json:"id"`
	SiteKey         string                           `json:"siteKey"`
	ServiceTypes    []string                         `json:"serviceTypes"`
	ChallengeResets int                              `json:"challengeResets"`
	State           form.Snapshot                    `json:"state"`
	Classes         map[domain.Field]form.InputClass `json:"classes"`
	Visible         map[domain.Field]string          `json:"visibleErrors"`
	Error           *errorResult                     `json:"error,omitempty"`
}

type fieldEventPayload struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type challengePayload struct {
	Token string `json:"token"`
}

// Mount creates a new session with an empty form and returns its id
func (s *FormService) Mount() string {
	return s.mount().id
}

func (s *FormService) mount() *session {
	widget := challenge.NewWidget(s.cfg.RecaptchaSiteKey)
	opts := []form.Option{
		form.WithSuccessDisplay(s.cfg.SuccessDisplay),
		form.WithLogger(s.logger),
	}
	if s.clock != nil {
		opts = append(opts, form.WithClock(s.clock))
	}
	sess := &session{
		id:         uuid.NewString(),
		controller: form.NewController(widget, s.endpoint, opts...),
		widget:     widget,
		lastSeen:   s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	metrics.SessionMounted()
	s.logger.Debug("session mounted", zap.String("session", sess.id))
	return sess
}

// Unmount tears a session down, cancelling any in-flight submission
func (s *FormService) Unmount(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return NotFound("form session not found")
	}
	sess.controller.Close()
	metrics.SessionUnmounted()
	s.logger.Debug("session unmounted", zap.String("session", id))
	return nil
}

// Sweep unmounts sessions idle for longer than idle and returns how many were removed
func (s *FormService) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var stale []*session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.controller.Close()
		metrics.SessionUnmounted()
	}
	if len(stale) > 0 {
		s.logger.Info("swept idle sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx is done, then unmounts everything
func (s *FormService) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
			s.Sweep(idle)
		}
	}
}

// Close unmounts every session
func (s *FormService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.controller.Close()
		metrics.SessionUnmounted()
	}
}

// Count returns the number of mounted sessions
func (s *FormService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *FormService) lookup(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, NotFound("form session not found")
	}
	sess.lastSeen = s.now()
	return sess, nil
}

// MountRoutes registers the form API on mux
func (s *FormService) MountRoutes(mux goahttp.Muxer) {
	s.mux = mux
	mux.Handle("POST", SessionsPath, s.handleCreate)
	mux.Handle("GET", SessionsPath+"/{id}", s.handleGet)
	mux.Handle("DELETE", SessionsPath+"/{id}", s.handleDelete)
	mux.Handle("POST", SessionsPath+"/{id}/change", s.handleChange)
	mux.Handle("POST", SessionsPath+"/{id}/blur", s.handleBlur)
	mux.Handle("POST", SessionsPath+"/{id}/challenge", s.handleChallenge)
	mux.Handle("POST", SessionsPath+"/{id}/submit", s.handleSubmit)
}

func (s *FormService) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess := s.mount()
	s.respond(w, r, http.StatusCreated, s.result(sess, nil))
}

func (s *FormService) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(s.mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, s.result(sess, nil))
}

func (s *FormService) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.Unmount(s.mux.Vars(r)["id"]); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *FormService) handleChange(w http.ResponseWriter, r *http.Request) {
	s.handleFieldEvent(w, r, (*form.Controller).Change)
}

func (s *FormService) handleBlur(w http.ResponseWriter, r *http.Request) {
	s.handleFieldEvent(w, r, (*form.Controller).Blur)
}

func (s *FormService) handleFieldEvent(w http.ResponseWriter, r *http.Request, apply func(*form.Controller, domain.Field, string) error) {
	sess, err := s.lookup(s.mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var p fieldEventPayload
	if err := goahttp.RequestDecoder(r).Decode(&p); err != nil {
		s.respondError(w, r, BadRequest("invalid request body"))
		return
	}
	field, ok := domain.ParseField(p.Field)
	if !ok {
		s.respondError(w, r, BadRequest("unknown field: "+p.Field))
		return
	}

	if err := apply(sess.controller, field, p.Value); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, s.result(sess, nil))
}

func (s *FormService) handleChallenge(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(s.mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var p challengePayload
	if err := goahttp.RequestDecoder(r).Decode(&p); err != nil {
		s.respondError(w, r, BadRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(p.Token) == "" {
		sess.widget.Expire()
	} else {
		sess.widget.SetToken(p.Token)
	}
	s.respond(w, r, http.StatusOK, s.result(sess, nil))
}

func (s *FormService) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(s.mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	start := time.Now()
	err = sess.controller.Submit(r.Context())
	s.recordOutcome(err, time.Since(start))

	if err != nil {
		if errors.Is(err, form.ErrClosed) {
			s.respondError(w, r, NotFound("form session not found"))
			return
		}
		res, status := newErrorResult(err)
		s.respond(w, r, status, s.result(sess, res))
		return
	}
	s.respond(w, r, http.StatusOK, s.result(sess, nil))
}

func (s *FormService) recordOutcome(err error, elapsed time.Duration) {
	if err == nil {
		metrics.RecordSubmission(metrics.OutcomeSuccess)
		metrics.ObserveSubmissionDuration(elapsed)
		return
	}

	var verr *form.ValidationError
	if errors.As(err, &verr) {
		metrics.RecordSubmission(metrics.OutcomeInvalid)
		for f := range verr.Errors {
			metrics.RecordValidationError(string(f))
		}
		return
	}

	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeVerificationRequired:
		metrics.RecordSubmission(metrics.OutcomeVerificationRequired)
	case apperrors.ErrCodeSubmissionRejected:
		metrics.RecordSubmission(metrics.OutcomeRejected)
		metrics.ObserveSubmissionDuration(elapsed)
	case apperrors.ErrCodeTransport:
		metrics.RecordSubmission(metrics.OutcomeTransportError)
		metrics.ObserveSubmissionDuration(elapsed)
	case apperrors.ErrCodeConflict:
		metrics.RecordSubmission(metrics.OutcomeBusy)
	}
}

func (s *FormService) result(sess *session, errRes *errorResult) *sessionResult {
	snap := sess.controller.Snapshot()
	classes := make(map[domain.Field]form.InputClass, len(domain.Fields))
	visible := make(map[domain.Field]string)
	for _, f := range domain.Fields {
		classes[f] = snap.InputClass(f)
		if msg := snap.VisibleError(f); msg != "" {
			visible[f] = msg
		}
	}
	return &sessionResult{
		ID:              sess.id,
		SiteKey:         sess.widget.SiteKey(),
		ServiceTypes:    domain.ServiceTypes,
		ChallengeResets: sess.widget.Resets(),
		State:           snap,
		Classes:         classes,
		Visible:         visible,
		Error:           errRes,
	}
}

func (s *FormService) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := goahttp.ResponseEncoder(r.Context(), w)
	w.WriteHeader(status)
	if err := enc.Encode(v); err != nil {
		s.logger.Warn("error encoding response", zap.Error(err))
	}
}

func (s *FormService) respondError(w http.ResponseWriter, r *http.Request, err error) {
	res, status := newErrorResult(err)
	switch {
	case status >= http.StatusInternalServerError:
		s.logger.Error("request failed", zap.Error(err))
	case apperrors.IsNotFound(err):
		s.logger.Debug("unknown form session", zap.String("path", r.URL.Path))
	}
	s.respond(w, r, status, res)
}
