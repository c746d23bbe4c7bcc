package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactform/internal/domain"
	"contactform/internal/form"
	"contactform/internal/submission"
)

type scriptedPrompter struct {
	answers map[string]string
	asked   []string
	secret  string
}

func (p *scriptedPrompter) answer(message string, validate validator) (string, error) {
	p.asked = append(p.asked, message)
	v := p.answers[message]
	if msg := validate(v); msg != "" {
		return "", assert.AnError
	}
	return v, nil
}

func (p *scriptedPrompter) Input(message, help string, validate validator) (string, error) {
	return p.answer(message, validate)
}

func (p *scriptedPrompter) Select(message string, options []string, validate validator) (string, error) {
	return p.answer(message, validate)
}

func (p *scriptedPrompter) Multiline(message string, validate validator) (string, error) {
	return p.answer(message, validate)
}

func (p *scriptedPrompter) Secret(message, help string) (string, error) {
	p.asked = append(p.asked, message)
	return p.secret, nil
}

func validOptions() *sendOptions {
	return &sendOptions{
		token: "tok",
		fields: domain.FormFields{
			Name:        "Ana Pérez",
			Email:       "ana@example.cl",
			Phone:       "+56 9 1234 5678",
			Company:     "Acme",
			ServiceType: "Áreas Verdes",
			Message:     "Necesito mantención del jardín.",
		},
	}
}

func TestRunSendSuccess(t *testing.T) {
	var got domain.SubmissionPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := runSend(context.Background(), &out, &scriptedPrompter{}, submission.NewClient(srv.URL), validOptions())
	require.NoError(t, err)
	assert.Contains(t, out.String(), successMessage)
	assert.Equal(t, "tok", got.RecaptchaToken)
	assert.Equal(t, "Áreas Verdes", got.ServiceType)
}

func TestRunSendReportsFieldErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint must not be called")
	}))
	defer srv.Close()

	opts := validOptions()
	opts.fields.Name = "Jo"

	var out bytes.Buffer
	err := runSend(context.Background(), &out, &scriptedPrompter{}, submission.NewClient(srv.URL), opts)
	require.Error(t, err)
	assert.Contains(t, out.String(), "Nombre: El nombre debe tener al menos 3 caracteres")
}

func TestRunSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Server busy"))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := runSend(context.Background(), &out, &scriptedPrompter{}, submission.NewClient(srv.URL), validOptions())
	require.Error(t, err)
	assert.Contains(t, out.String(), "Server busy")
}

func TestRunSendWithoutToken(t *testing.T) {
	opts := validOptions()
	opts.token = ""

	var out bytes.Buffer
	err := runSend(context.Background(), &out, &scriptedPrompter{}, submission.NewClient("http://127.0.0.1:0"), opts)
	assert.ErrorIs(t, err, form.ErrVerificationRequired)
	assert.Contains(t, out.String(), form.VerificationRequiredMessage)
}

func TestRunSendInteractivePromptsInvalidFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	opts := validOptions()
	opts.interactive = true
	opts.token = ""
	opts.fields.Email = "not-an-email"
	opts.fields.ServiceType = ""

	p := &scriptedPrompter{
		secret: "tok",
		answers: map[string]string{
			"Email":            "ana@example.cl",
			"Tipo de Servicio": "Otro",
		},
	}

	var out bytes.Buffer
	require.NoError(t, runSend(context.Background(), &out, p, submission.NewClient(srv.URL), opts))
	assert.Equal(t, []string{"Token reCAPTCHA", "Email", "Tipo de Servicio"}, p.asked)
}
