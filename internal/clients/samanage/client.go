// Package samanage reads onboarding incidents and group contacts from the
// Samanage service desk API.
package samanage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

const (
	defaultBaseURL = "https://api.samanage.com"
	acceptHeader   = "application/vnd.samanage.v2.1+json"
	maxPages       = 1000
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL defaults to https://api.samanage.com.
	BaseURL string

	// Token is the API token sent as a bearer token.
	Token string

	// PerPage is the incident page size. Defaults to 100.
	PerPage int

	// PageTimeout bounds each page request. Zero means no bound.
	PageTimeout time.Duration

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger reports incidents that could not be decoded. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Client is a minimal Samanage REST client.
type Client struct {
	baseURL    string
	token      string
	perPage     int
	pageTimeout time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("samanage: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("samanage: token is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       cfg.Token,
		perPage:     perPage,
		pageTimeout: cfg.PageTimeout,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// ListIncidents returns every incident, following pagination until the
// X-Total-Pages header is exhausted. An incident that cannot be decoded is
// logged and left out; it does not fail the listing.
func (c *Client) ListIncidents(ctx context.Context) ([]domain.Incident, error) {
	var all []domain.Incident
	for page := 1; page <= maxPages; page++ {
		batch, header, err := c.listPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("list incidents page %d: %w", page, err)
		}
		all = append(all, c.decodeIncidents(page, batch)...)

		total, err := strconv.Atoi(header.Get("X-Total-Pages"))
		if err != nil || page >= total || len(batch) == 0 {
			break
		}
	}
	return all, nil
}

func (c *Client) listPage(ctx context.Context, page int) ([]json.RawMessage, http.Header, error) {
	if c.pageTimeout > 0 {
		pageCtx, cancel := context.WithTimeout(ctx, c.pageTimeout)
		defer cancel()
		batch, header, err := c.fetchPage(pageCtx, page)
		if err != nil && errors.Is(pageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil, apperrors.NewCallTimeout(fmt.Sprintf("list incidents page %d", page), err)
		}
		return batch, header, err
	}
	return c.fetchPage(ctx, page)
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]json.RawMessage, http.Header, error) {
	query := url.Values{}
	query.Set("layout", "long")
	query.Set("per_page", strconv.Itoa(c.perPage))
	query.Set("page", strconv.Itoa(page))

	var batch []json.RawMessage
	header, err := c.get(ctx, "/incidents.json?"+query.Encode(), &batch)
	return batch, header, err
}

func (c *Client) decodeIncidents(page int, batch []json.RawMessage) []domain.Incident {
	incidents := make([]domain.Incident, 0, len(batch))
	for i, raw := range batch {
		var incident domain.Incident
		if err := json.Unmarshal(raw, &incident); err != nil {
			var head struct {
				ID any `json:"id"`
			}
			_ = json.Unmarshal(raw, &head)
			c.logger.Warn("skipping undecodable incident",
				zap.Int("page", page),
				zap.Int("index", i),
				zap.Any("incident_id", head.ID),
				zap.Error(err))
			continue
		}
		incidents = append(incidents, incident)
	}
	return incidents
}

// GetGroup resolves a group id, used for manager references, to its name and email.
func (c *Client) GetGroup(ctx context.Context, id string) (*domain.Contact, error) {
	var contact domain.Contact
	_, err := c.get(ctx, "/groups/"+url.PathEscape(id)+".json", &contact)
	if IsNotFound(err) {
		return nil, apperrors.NewLookupNotFound("manager group", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", id, err)
	}
	if contact.Name == "" || contact.Email == "" {
		return nil, apperrors.NewLookupNotFound("manager group", id)
	}
	return &contact, nil
}

func (c *Client) get(ctx context.Context, path string, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Samanage-Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("samanage: reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("samanage: decoding response: %w", err)
	}
	return resp.Header, nil
}
