package services

import (
	"context"
	"net/http"

	goahttp "goa.design/goa/v3/http"
)

// HealthResult is the body of the health check
type HealthResult struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Sessions int    `json:"sessions"`
}

// HealthService implements the health service
type HealthService struct {
	name  string
	forms *FormService
}

// NewHealthService creates a new health service
func NewHealthService(name string, forms *FormService) *HealthService {
	return &HealthService{name: name, forms: forms}
}

// Check implements the health check method
func (s *HealthService) Check(ctx context.Context) *HealthResult {
	return &HealthResult{
		Status:   "healthy",
		Service:  s.name,
		Sessions: s.forms.Count(),
	}
}

// MountRoutes registers GET /health on mux
func (s *HealthService) MountRoutes(mux goahttp.Muxer) {
	mux.Handle("GET", "/health", func(w http.ResponseWriter, r *http.Request) {
		enc := goahttp.ResponseEncoder(r.Context(), w)
		w.WriteHeader(http.StatusOK)
		_ = enc.Encode(s.Check(r.Context()))
	})
}
