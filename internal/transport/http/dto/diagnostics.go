package dto

import "github.com/baechuer/meeting-machine/internal/domain"

// -------- Env check --------

const (
	PresentMark = "Set ✓"
	MissingMark = "Missing ✗"
)

type EnvCheckResponse struct {
	EnvironmentVariables map[string]string `json:"environment_variables"`
}

// NewEnvCheckResponse renders presence flags; values are never echoed.
func NewEnvCheckResponse(presence map[string]bool, env string) EnvCheckResponse {
	vars := make(map[string]string, len(presence)+1)
	for k, ok := range presence {
		if ok {
			vars[k] = PresentMark
		} else {
			vars[k] = MissingMark
		}
	}
	vars["ENV"] = env
	return EnvCheckResponse{EnvironmentVariables: vars}
}

// -------- CRM diagnostics --------

type ContactResponse struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Contact *domain.Contact `json:"contact"`
	Error   *string         `json:"error"`
}

func NewContactResponse(r domain.SyncResult) ContactResponse {
	out := ContactResponse{
		Success: r.OK(),
		Status:  string(r.Status),
		Contact: r.Contact,
	}
	if !r.OK() {
		msg := r.Message()
		out.Error = &msg
	}
	return out
}
