package challenge

import (
	"strings"
	"sync"
)

// Provider is the anti-bot challenge as seen by the form controller
type Provider interface {
	// Token returns the current verification token, if the user has solved the challenge
	Token() (string, bool)
	// Reset invalidates the current token; the user must solve the challenge again
	Reset()
}

// Widget tracks the token reported by a browser-side reCAPTCHA widget
type Widget struct {
	siteKey string

	mu     sync.Mutex
	token  string
	resets int
}

// NewWidget creates a widget bound to a reCAPTCHA site key
func NewWidget(siteKey string) *Widget {
	return &Widget{siteKey: siteKey}
}

// SiteKey returns the site key the widget renders with
func (w *Widget) SiteKey() string {
	return w.siteKey
}

// SetToken records the token produced by the widget callback. A blank token clears it.
func (w *Widget) SetToken(token string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.token = strings.TrimSpace(token)
}

// Expire clears the token, as the widget does when a solved challenge times out
func (w *Widget) Expire() {
	w.SetToken("")
}

// Token implements Provider
func (w *Widget) Token() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.token, w.token != ""
}

// Reset implements Provider
func (w *Widget) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.token = ""
	w.resets++
}

// Resets returns how many times the widget has been reset; the page uses it to re-render the challenge
func (w *Widget) Resets() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resets
}

// Static is a single-use token handed over up front
type Static struct {
	mu    sync.Mutex
	token string
}

// NewStatic creates a provider that yields token until the first Reset
func NewStatic(token string) *Static {
	return &Static{token: strings.TrimSpace(token)}
}

// Token implements Provider
func (s *Static) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// Reset implements Provider
func (s *Static) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
