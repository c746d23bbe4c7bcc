package services

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"
	goahttp "goa.design/goa/v3/http"

	"contactform/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/form.html"))

// pageField describes how one input is rendered
type pageField struct {
	Key         domain.Field
	Label       string
	Type        string
	Placeholder string
}

var pageFields = []pageField{
	{domain.FieldName, "Nombre", "text", "Tu nombre completo"},
	{domain.FieldEmail, "Email", "email", "tu@email.com"},
	{domain.FieldPhone, "Teléfono", "tel", "+1 (555) 123-4567"},
	{domain.FieldCompany, "Empresa/Negocio", "text", "Nombre de tu empresa"},
	{domain.FieldServiceType, "Tipo de Servicio", "select", ""},
	{domain.FieldMessage, "Mensaje", "textarea", "Cuéntanos en qué podemos ayudarte"},
}

type pageData struct {
	SessionID    string
	SessionsPath string
	SiteKey      string
	Fields       []pageField
	ServiceTypes []string
	// RevertAfter is how long the page waits before refreshing a success, in milliseconds
	RevertAfter int64
}

// revertSlack lets the server-side reversion land before the page refreshes
const revertSlack = 500 * time.Millisecond

// PageService renders the contact form page
type PageService struct {
	forms  *FormService
	logger *zap.Logger
}

// NewPageService creates a new page service
func NewPageService(forms *FormService, logger *zap.Logger) *PageService {
	return &PageService{forms: forms, logger: logger.Named("page")}
}

// MountRoutes registers GET / on mux
func (s *PageService) MountRoutes(mux goahttp.Muxer) {
	mux.Handle("GET", "/", s.handlePage)
}

// handlePage mounts a fresh form session and renders it
func (s *PageService) handlePage(w http.ResponseWriter, r *http.Request) {
	id := s.forms.Mount()
	data := pageData{
		SessionID:    id,
		SessionsPath: SessionsPath,
		SiteKey:      s.forms.cfg.RecaptchaSiteKey,
		Fields:       pageFields,
		ServiceTypes: domain.ServiceTypes,
		RevertAfter:  (s.forms.cfg.SuccessDisplay + revertSlack).Milliseconds(),
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("error rendering form page", zap.Error(err))
		_ = s.forms.Unmount(id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
