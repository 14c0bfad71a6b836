// Package crm talks to the GoHighLevel REST API (v1). Every call is
// best-effort: failures come back as domain.SyncResult values, never as
// panics or request-aborting errors.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/baechuer/meeting-machine/internal/config"
	"github.com/baechuer/meeting-machine/internal/domain"
	"github.com/baechuer/meeting-machine/internal/logger"
	appCtx "github.com/baechuer/meeting-machine/internal/pkg/context"
)

const maxResponseBytes = 1 << 20

var signupTags = []string{"new-signup", "meeting-machine"}

type Client struct {
	cfg  config.CRMConfig
	http *http.Client
	now  func() time.Time
}

// NewClient builds a client around a shared, pooled *http.Client. A nil hc
// gets a dedicated one. Per-call deadlines come from cfg.Timeout.
func NewClient(cfg config.CRMConfig, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultCRMBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{cfg: cfg, http: hc, now: time.Now}
}

// Config exposes the effective configuration (used by diagnostics).
func (c *Client) Config() config.CRMConfig { return c.cfg }

// do performs one request. out may be nil. The returned error is either a
// *domain.RemoteError, a context error, or a transport error.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) (int, json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal %s payload: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if rid := appCtx.GetRequestID(ctx); rid != "" {
		req.Header.Set("X-Request-Id", rid)
	}

	log := logger.WithCtx(ctx).With().
		Str("crm_op", op).
		Str("method", method).
		Str("path", path).
		Logger()

	start := c.now()
	resp, err := c.http.Do(req)
	elapsed := c.now().Sub(start)
	if err != nil {
		status := classify(ctx, err)
		crmRequestsTotal.WithLabelValues(op, string(status)).Inc()
		log.Warn().Err(err).Dur("duration", elapsed).Msg("crm_request_failed")
		if status == domain.SyncTimeout && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s: %w: %v", op, context.DeadlineExceeded, err)
		}
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		status := classify(ctx, err)
		crmRequestsTotal.WithLabelValues(op, string(status)).Inc()
		log.Warn().Err(err).Int("status", resp.StatusCode).Dur("duration", c.now().Sub(start)).Msg("crm_response_read_failed")
		if status == domain.SyncTimeout && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return resp.StatusCode, nil, fmt.Errorf("read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		crmRequestsTotal.WithLabelValues(op, string(domain.SyncRejected)).Inc()
		rerr := &domain.RemoteError{
			StatusCode: resp.StatusCode,
			Message:    remoteMessage(raw, resp.StatusCode),
			Body:       json.RawMessage(raw),
		}
		log.Warn().
			Int("status", resp.StatusCode).
			Str("remote_message", rerr.Message).
			Dur("duration", elapsed).
			Msg("crm_request_rejected")
		return resp.StatusCode, raw, rerr
	}

	crmRequestsTotal.WithLabelValues(op, string(domain.SyncOK)).Inc()
	log.Debug().Int("status", resp.StatusCode).Dur("duration", elapsed).Msg("crm_request_completed")

	// an undecodable 2xx body is still a success
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			log.Warn().Err(err).Int("status", resp.StatusCode).Msg("crm_response_undecodable")
		}
	}
	return resp.StatusCode, raw, nil
}

// classify maps a failed call onto a SyncStatus.
func classify(ctx context.Context, err error) domain.SyncStatus {
	var re *domain.RemoteError
	switch {
	case err == nil:
		return domain.SyncOK
	case errors.As(err, &re):
		return domain.SyncRejected
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.SyncTimeout
	default:
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			return domain.SyncTimeout
		}
		return domain.SyncTransportFailure
	}
}

func failed(ctx context.Context, status int, err error) domain.SyncResult {
	return domain.SyncResult{Status: classify(ctx, err), HTTPStatus: status, Err: err}
}

func (c *Client) disabled(needLocation bool) (domain.SyncResult, bool) {
	missing := c.cfg.Missing()
	if !needLocation {
		missing = nil
		if c.cfg.APIKey == "" {
			missing = []string{"GHL_API_KEY"}
		}
	}
	if len(missing) == 0 {
		return domain.SyncResult{}, false
	}
	return domain.SyncResult{
		Status: domain.SyncDisabled,
		Err:    &domain.ErrCRMDisabled{Missing: missing},
	}, true
}

func remoteMessage(raw []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Msg != "" {
			return body.Msg
		}
	}
	return http.StatusText(status)
}
