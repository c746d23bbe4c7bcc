package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	goahttp "goa.design/goa/v3/http"

	"contactform/internal/config"
	"contactform/internal/domain"
	"contactform/internal/form"
	"contactform/internal/submission"
	apperrors "contactform/pkg/errors"
)

type stubEndpoint struct {
	mu    sync.Mutex
	calls []domain.SubmissionPayload
	err   error
}

func (e *stubEndpoint) Submit(ctx context.Context, payload domain.SubmissionPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, payload)
	return e.err
}

func (e *stubEndpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type manualClock struct {
	mu  sync.Mutex
	fns []func()
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func (c *manualClock) AfterFunc(d time.Duration, f func()) form.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, f)
	return noopTimer{}
}

func (c *manualClock) fire() {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

type testServer struct {
	forms    *FormService
	endpoint *stubEndpoint
	clock    *manualClock
	handler  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	endpoint := &stubEndpoint{}
	clock := &manualClock{}
	cfg := config.FormConfig{
		EndpointURL:      "https://example.invalid/contact",
		RecaptchaSiteKey: "site-key",
		SuccessDisplay:   5 * time.Second,
	}
	forms := NewFormService(cfg, endpoint, zaptest.NewLogger(t), WithControllerClock(clock))
	t.Cleanup(forms.Close)

	mux := goahttp.NewMuxer()
	forms.MountRoutes(mux)
	NewHealthService("Contact Form", forms).MountRoutes(mux)
	NewPageService(forms, zaptest.NewLogger(t)).MountRoutes(mux)

	return &testServer{forms: forms, endpoint: endpoint, clock: clock, handler: mux}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, sessionResult) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var res sessionResult
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	}
	return rec, res
}

func (ts *testServer) create(t *testing.T) string {
	t.Helper()
	rec, res := ts.do(t, http.MethodPost, SessionsPath, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, res.ID)
	return res.ID
}

func (ts *testServer) fill(t *testing.T, id string) {
	t.Helper()
	values := map[domain.Field]string{
		domain.FieldName:        "Ana Pérez",
		domain.FieldEmail:       "ana@example.cl",
		domain.FieldPhone:       "+56 9 1234 5678",
		domain.FieldCompany:     "Acme",
		domain.FieldServiceType: "Refrigeración",
		domain.FieldMessage:     "Necesito una cotización para cámaras de frío.",
	}
	for f, v := range values {
		rec, _ := ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/change", fieldEventPayload{Field: string(f), Value: v})
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)
	rec, res := ts.do(t, http.MethodPost, SessionsPath, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "site-key", res.SiteKey)
	assert.Equal(t, domain.ServiceTypes, res.ServiceTypes)
	assert.Equal(t, form.PhaseIdle, res.State.Status.Phase)
	assert.Equal(t, form.InputNeutral, res.Classes[domain.FieldName])
	assert.Equal(t, 1, ts.forms.Count())
}

func TestBlurShowsFieldError(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	rec, res := ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/blur", fieldEventPayload{Field: "name", Value: "Jo"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "El nombre debe tener al menos 3 caracteres", res.Visible[domain.FieldName])
	assert.Equal(t, form.InputInvalid, res.Classes[domain.FieldName])
}

func TestUnknownFieldIsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	rec, _ := ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/change", fieldEventPayload{Field: "fax", Value: "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrNameBadRequest)
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	rec, _ := ts.do(t, http.MethodGet, SessionsPath+"/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := ts.forms.lookup("missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSubmitInvalidForm(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	rec, res := ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, res.Error)
	assert.Equal(t, ErrNameInvalidFields, res.Error.Name)
	assert.Len(t, res.Error.Fields, len(domain.Fields))
	assert.Len(t, res.Visible, len(domain.Fields))
	assert.Zero(t, ts.endpoint.count())
}

func TestSubmitWithoutChallenge(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	ts.fill(t, id)

	rec, res := ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, ErrNameVerificationRequired, res.Error.Name)
	assert.Equal(t, form.Failed(form.VerificationRequiredMessage), res.State.Status)
	assert.Zero(t, ts.endpoint.count())
}

func TestSubmitSuccessFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	ts.fill(t, id)

	rec, _ := ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/challenge", challengePayload{Token: "tok"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, res := ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, res.Error)
	assert.Equal(t, form.Success(), res.State.Status)
	assert.Equal(t, domain.FormFields{}, res.State.Fields)
	assert.Equal(t, 1, res.ChallengeResets)
	assert.Equal(t, 1, ts.endpoint.count())

	ts.clock.fire()
	_, res = ts.do(t, http.MethodGet, SessionsPath+"/"+id, nil)
	assert.Equal(t, form.Idle(), res.State.Status)
}

func TestSubmitRejectedKeepsFields(t *testing.T) {
	ts := newTestServer(t)
	ts.endpoint.err = &submission.RejectedError{StatusCode: 500, Body: "Server busy"}
	id := ts.create(t)
	ts.fill(t, id)
	ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/challenge", challengePayload{Token: "tok"})

	rec, res := ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/submit", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, ErrNameSubmissionRejected, res.Error.Name)
	assert.Equal(t, form.Failed("Server busy"), res.State.Status)
	assert.Equal(t, "Ana Pérez", res.State.Fields.Name)
}

func TestExpiredChallengeClearsToken(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	ts.fill(t, id)
	ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/challenge", challengePayload{Token: "tok"})
	ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/challenge", challengePayload{Token: ""})

	rec, _ := ts.do(t, http.MethodPost, SessionsPath+"/"+id+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, ts.endpoint.count())
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	rec, _ := ts.do(t, http.MethodDelete, SessionsPath+"/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, ts.forms.Count())

	rec, _ = ts.do(t, http.MethodDelete, SessionsPath+"/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	forms := NewFormService(config.FormConfig{SuccessDisplay: time.Second}, &stubEndpoint{}, zaptest.NewLogger(t),
		WithNow(func() time.Time { return now }))
	defer forms.Close()

	stale := forms.Mount()
	now = now.Add(20 * time.Minute)
	fresh := forms.Mount()
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, forms.Sweep(30*time.Minute))
	_, err := forms.lookup(stale)
	assert.Error(t, err)
	_, err = forms.lookup(fresh)
	assert.NoError(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res HealthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "healthy", res.Status)
	assert.Equal(t, 1, res.Sessions)
}

func TestPageRendersForm(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-sitekey="site-key"`)
	assert.Contains(t, body, domain.ServiceTypePlaceholder)
	for _, f := range domain.Fields {
		assert.Contains(t, body, `id="`+string(f)+`"`)
	}
	assert.Regexp(t, `\},\s*5500\s*\);`, body)
	assert.Equal(t, 1, ts.forms.Count())
}

func TestPageFollowsSuccessDisplay(t *testing.T) {
	cfg := config.FormConfig{
		EndpointURL:      "https://example.invalid/contact",
		RecaptchaSiteKey: "site-key",
		SuccessDisplay:   2 * time.Second,
	}
	forms := NewFormService(cfg, &stubEndpoint{}, zaptest.NewLogger(t))
	t.Cleanup(forms.Close)
	mux := goahttp.NewMuxer()
	NewPageService(forms, zaptest.NewLogger(t)).MountRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `\},\s*2500\s*\);`, rec.Body.String())
}
