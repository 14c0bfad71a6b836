package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/baechuer/meeting-machine/internal/domain"
)

const (
	probeSuccess = "success"
	probeFailed  = "failed"
)

// ProbeOutcome is one line of the connection report.
type ProbeOutcome struct {
	Test    string          `json:"test"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   any             `json:"error,omitempty"`
	Payload any             `json:"payload,omitempty"`
}

type ReportConfig struct {
	BaseURL       string `json:"baseURL"`
	HasAPIKey     bool   `json:"hasApiKey"`
	HasLocationID bool   `json:"hasLocationId"`
	APIKeyPreview string `json:"apiKeyPreview"`
}

// ConnectionReport aggregates every probe; Success means all probes passed.
type ConnectionReport struct {
	Success bool           `json:"success"`
	Tests   []ProbeOutcome `json:"tests"`
	Config  ReportConfig   `json:"config"`
}

// TestConnection checks credentials and permissions without creating data.
func (c *Client) TestConnection(ctx context.Context) ConnectionReport {
	var tests []ProbeOutcome

	tests = append(tests, c.probe(ctx, "API Key Authentication", "API key is valid",
		"list_locations", "/locations/", nil))

	if c.cfg.LocationID != "" {
		q := url.Values{}
		q.Set("locationId", c.cfg.LocationID)
		q.Set("limit", "1")
		tests = append(tests, c.probe(ctx, "Contacts Read Access", "Can read contacts",
			"list_contacts", "/contacts/", q))

		tests = append(tests, ProbeOutcome{
			Test:    "Contact Creation Payload",
			Status:  probeSuccess,
			Message: "Payload structure is valid",
			Payload: contactPayload{
				FirstName:  "Test",
				LastName:   "Contact",
				Email:      fmt.Sprintf("test-%d@example.com", c.now().UnixMilli()),
				LocationID: c.cfg.LocationID,
				Source:     "API Test",
				Tags:       []string{"test-contact"},
			},
		})
	} else {
		tests = append(tests, ProbeOutcome{
			Test:    "Location ID Check",
			Status:  probeFailed,
			Message: "GHL_LOCATION_ID not set in environment variables",
		})
	}

	success := true
	for _, t := range tests {
		if t.Status != probeSuccess {
			success = false
			break
		}
	}

	return ConnectionReport{
		Success: success,
		Tests:   tests,
		Config: ReportConfig{
			BaseURL:       c.cfg.BaseURL,
			HasAPIKey:     c.cfg.APIKey != "",
			HasLocationID: c.cfg.LocationID != "",
			APIKeyPreview: c.cfg.KeyPreview(),
		},
	}
}

func (c *Client) probe(ctx context.Context, name, okMsg, op, path string, q url.Values) ProbeOutcome {
	_, raw, err := c.do(ctx, op, http.MethodGet, path, q, nil, nil)
	if err == nil {
		return ProbeOutcome{Test: name, Status: probeSuccess, Message: okMsg, Data: raw}
	}

	out := ProbeOutcome{Test: name, Status: probeFailed, Message: err.Error(), Error: err.Error()}
	var re *domain.RemoteError
	if errors.As(err, &re) {
		out.Message = re.Message
		if json.Valid(re.Body) && len(re.Body) > 0 {
			out.Error = re.Body
		}
	}
	return out
}
