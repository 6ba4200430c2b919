// internal/app/records/client.go

// Package records is the HTTP client for the remote records platform — the
// backend that performs authoritative validation and actually persists
// accounts and academic records. One endpoint pair exists per upload type
// ({type}/validate and {type}/process) plus auxiliary endpoints for
// identity, organizations, and subject-name verification.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vespahq/uploadhub/internal/domain/models"
	"go.uber.org/zap"
)

// ErrNetwork marks transport failures and malformed responses. Callers
// surface it as a single human-readable message, never as a raw fault.
var ErrNetwork = errors.New("records platform unreachable")

// ErrRejected marks an explicit refusal from the platform (success=false
// on a process call).
var ErrRejected = errors.New("records platform rejected the job")

// Config holds connection settings for the records platform.
type Config struct {
	BaseURL string
	AppID   string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the records platform. Safe for concurrent use.
type Client struct {
	baseURL    string
	appID      string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

// New creates a records client. A zero Timeout defaults to 30s.
func New(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		appID:      cfg.AppID,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
	}
}

// SetHTTPClient replaces the underlying HTTP client (useful for testing).
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// doRequest performs an authenticated request and returns the response body.
// Non-2xx statuses and transport failures are wrapped in ErrNetwork.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Id", c.appID)
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("records platform returned error status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d: %s", ErrNetwork, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// Identity fetches the account behind id. A missing or not-yet-provisioned
// account surfaces as an error so callers can retry with backoff.
func (c *Client) Identity(ctx context.Context, accountID string) (*models.Identity, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "accounts/"+accountID, nil)
	if err != nil {
		return nil, err
	}

	var ident models.Identity
	if err := json.Unmarshal(body, &ident); err != nil {
		return nil, fmt.Errorf("%w: parse identity: %v", ErrNetwork, err)
	}
	if ident.ID == "" {
		return nil, fmt.Errorf("%w: identity response missing id", ErrNetwork)
	}
	return &ident, nil
}

// Validate submits rows to {endpoint}/validate for server-side checks.
func (c *Client) Validate(ctx context.Context, endpoint string, rows []models.ParsedRow) (*ValidateResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, endpoint+"/validate", validateRequest{CSVData: rows})
	if err != nil {
		return nil, err
	}

	var vr ValidateResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("%w: parse validate response: %v", ErrNetwork, err)
	}
	return &vr, nil
}

// VerifySubjects asks the platform which of the given subject names it does
// not recognize. The returned slice is the unrecognized subset.
func (c *Client) VerifySubjects(ctx context.Context, names []string) ([]string, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "subjects/verify", verifySubjectsRequest{Subjects: names})
	if err != nil {
		return nil, err
	}

	var vr verifySubjectsResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("%w: parse subjects response: %v", ErrNetwork, err)
	}
	return vr.Unrecognized, nil
}

// Process posts an accepted upload to {endpoint}/process and returns the
// queued job. An explicit success=false response wraps ErrRejected.
func (c *Client) Process(ctx context.Context, endpoint string, rows []models.ParsedRow, opts models.SubmitOptions, uctx models.UploaderContext) (*models.SubmissionJob, error) {
	body, err := c.doRequest(ctx, http.MethodPost, endpoint+"/process", processRequest{
		CSVData: rows,
		Options: opts,
		Context: uctx,
	})
	if err != nil {
		return nil, err
	}

	var pr processResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("%w: parse process response: %v", ErrNetwork, err)
	}
	if !pr.Success {
		if pr.Message == "" {
			pr.Message = "job was not accepted"
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, pr.Message)
	}

	return &models.SubmissionJob{
		JobID:             pr.JobID,
		Status:            models.JobQueued,
		NotificationEmail: opts.NotificationEmail,
		TotalRows:         len(rows),
		CreatedAt:         time.Now(),
	}, nil
}

// Organizations lists organizations a super identity may act on behalf of.
func (c *Client) Organizations(ctx context.Context) ([]Organization, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "organizations", nil)
	if err != nil {
		return nil, err
	}

	var orgs []Organization
	if err := json.Unmarshal(body, &orgs); err != nil {
		return nil, fmt.Errorf("%w: parse organizations: %v", ErrNetwork, err)
	}
	return orgs, nil
}

// OrganizationAdmins returns the admin accounts of one organization; they
// become the notification recipients when acting on its behalf.
func (c *Client) OrganizationAdmins(ctx context.Context, orgID string) ([]models.Admin, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "organizations/"+orgID+"/admins", nil)
	if err != nil {
		return nil, err
	}

	var admins []models.Admin
	if err := json.Unmarshal(body, &admins); err != nil {
		return nil, fmt.Errorf("%w: parse admins: %v", ErrNetwork, err)
	}
	return admins, nil
}
