package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/baechuer/meeting-machine/internal/domain"
	"github.com/baechuer/meeting-machine/internal/logger"
)

type contactPayload struct {
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	LocationID string   `json:"locationId"`
	Source     string   `json:"source"`
	Tags       []string `json:"tags"`
}

type contactEnvelope struct {
	Contact domain.Contact `json:"contact"`
}

type contactsEnvelope struct {
	Contacts []domain.Contact `json:"contacts"`
}

// SyncContact creates the signup's contact in the CRM. It issues at most one
// request and never retries.
func (c *Client) SyncContact(ctx context.Context, in domain.ContactInput) domain.SyncResult {
	if res, off := c.disabled(true); off {
		logger.WithCtx(ctx).Warn().
			Strs("missing", c.cfg.Missing()).
			Msg("crm integration disabled")
		return res
	}

	payload := contactPayload{
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Email,
		Phone:      in.Phone,
		LocationID: c.locationOr(in.LocationID),
		Source:     c.cfg.Source,
		Tags:       signupTags,
	}
	return c.createContact(ctx, "create_contact", payload)
}

// CreateTestContact creates a throwaway contact tagged for test purposes.
func (c *Client) CreateTestContact(ctx context.Context) domain.SyncResult {
	if res, off := c.disabled(true); off {
		return res
	}

	payload := contactPayload{
		FirstName:  "Test",
		LastName:   "User",
		Email:      fmt.Sprintf("test-%d@meetingmachine.com", c.now().UnixMilli()),
		Phone:      "+1234567890",
		LocationID: c.cfg.LocationID,
		Source:     c.cfg.Source + " Test",
		Tags:       []string{"test-contact", "api-test"},
	}
	return c.createContact(ctx, "create_test_contact", payload)
}

func (c *Client) createContact(ctx context.Context, op string, payload contactPayload) domain.SyncResult {
	var env contactEnvelope
	status, raw, err := c.do(ctx, op, http.MethodPost, "/contacts/", nil, payload, &env)
	if err != nil {
		return failed(ctx, status, err)
	}
	contact := env.Contact
	contact.Raw = raw

	logger.WithCtx(ctx).Info().
		Str("crm_op", op).
		Str("contact_id", contact.ID).
		Msg("crm contact created")

	return domain.SyncResult{Status: domain.SyncOK, Contact: &contact, HTTPStatus: status}
}

// FindContactByEmail searches a location for an exact email match. A search
// that succeeds without a match returns SyncOK with a nil Contact.
func (c *Client) FindContactByEmail(ctx context.Context, email, locationID string) domain.SyncResult {
	if res, off := c.disabled(locationID == ""); off {
		return res
	}

	q := url.Values{}
	q.Set("locationId", c.locationOr(locationID))
	q.Set("query", email)

	var env contactsEnvelope
	status, _, err := c.do(ctx, "search_contacts", http.MethodGet, "/contacts/search", q, nil, &env)
	if err != nil {
		return failed(ctx, status, err)
	}

	for i := range env.Contacts {
		if env.Contacts[i].Email == email {
			found := env.Contacts[i]
			return domain.SyncResult{Status: domain.SyncOK, Contact: &found, HTTPStatus: status}
		}
	}
	return domain.SyncResult{Status: domain.SyncOK, HTTPStatus: status}
}

// UpdateContact applies a partial update to an existing contact.
func (c *Client) UpdateContact(ctx context.Context, contactID string, fields map[string]any) domain.SyncResult {
	if res, off := c.disabled(false); off {
		return res
	}
	if contactID == "" {
		return domain.SyncResult{Status: domain.SyncRejected, Err: errors.New("contact id is required")}
	}

	var env contactEnvelope
	status, raw, err := c.do(ctx, "update_contact", http.MethodPut, "/contacts/"+url.PathEscape(contactID), nil, fields, &env)
	if err != nil {
		return failed(ctx, status, err)
	}
	contact := env.Contact
	contact.Raw = raw
	if contact.ID == "" {
		contact.ID = contactID
	}
	return domain.SyncResult{Status: domain.SyncOK, Contact: &contact, HTTPStatus: status}
}

func (c *Client) locationOr(id string) string {
	if id != "" {
		return id
	}
	return c.cfg.LocationID
}
