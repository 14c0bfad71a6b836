package http_handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/meeting-machine/internal/domain"
	"github.com/baechuer/meeting-machine/internal/infrastructure/crm"
	"github.com/baechuer/meeting-machine/internal/transport/http/dto"
	"github.com/baechuer/meeting-machine/internal/transport/http/response"
)

// CRMDiagnostics is the operator surface of the CRM client.
type CRMDiagnostics interface {
	TestConnection(ctx context.Context) crm.ConnectionReport
	CreateTestContact(ctx context.Context) domain.SyncResult
	FindContactByEmail(ctx context.Context, email, locationID string) domain.SyncResult
	UpdateContact(ctx context.Context, contactID string, fields map[string]any) domain.SyncResult
}

// CRMHandler serves the internal diagnostics routes. CRM failures are
// reported in the body; only caller mistakes become error responses.
type CRMHandler struct {
	crm CRMDiagnostics
}

func NewCRMHandler(c CRMDiagnostics) *CRMHandler {
	return &CRMHandler{crm: c}
}

// Connection handles GET /api/internal/crm/connection
func (h *CRMHandler) Connection(w http.ResponseWriter, r *http.Request) {
	report := h.crm.TestConnection(r.Context())
	status := http.StatusOK
	if !report.Success {
		status = http.StatusBadGateway
	}
	response.WriteJSON(w, status, report)
}

// CreateTestContact handles POST /api/internal/crm/test-contact
func (h *CRMHandler) CreateTestContact(w http.ResponseWriter, r *http.Request) {
	writeContactResult(w, h.crm.CreateTestContact(r.Context()))
}

// FindContact handles GET /api/internal/crm/contacts?email=&locationId=
func (h *CRMHandler) FindContact(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		response.WriteError(w, r, domain.ErrMissingField("email"))
		return
	}

	res := h.crm.FindContactByEmail(r.Context(), email, r.URL.Query().Get("locationId"))
	if res.OK() && res.Contact == nil {
		response.WriteError(w, r, domain.ErrContactNotFound())
		return
	}
	writeContactResult(w, res)
}

// UpdateContact handles PUT /api/internal/crm/contacts/{id}
func (h *CRMHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		response.WriteError(w, r, domain.ErrMissingField("id"))
		return
	}

	var fields map[string]any
	if err := response.DecodeJSON(r, &fields); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if len(fields) == 0 {
		response.WriteError(w, r, domain.ErrMissingField("body"))
		return
	}

	writeContactResult(w, h.crm.UpdateContact(r.Context(), id, fields))
}

func writeContactResult(w http.ResponseWriter, res domain.SyncResult) {
	status := http.StatusOK
	switch res.Status {
	case domain.SyncOK:
	case domain.SyncDisabled:
		status = http.StatusServiceUnavailable
	case domain.SyncTimeout:
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusBadGateway
	}
	response.WriteJSON(w, status, dto.NewContactResponse(res))
}
