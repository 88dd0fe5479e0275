// Package okta provisions users in the Okta identity provider.
package okta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okta/okta-sdk-golang/v2/okta"
	"github.com/okta/okta-sdk-golang/v2/okta/query"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

const providerName = "okta"

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the org URL, e.g. https://example.okta.com.
	BaseURL string

	// Token is an Okta API token.
	Token string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// AllowHTTP accepts a plain http org URL. Test servers only.
	AllowHTTP bool
}

// Client provisions users and resolves groups through the Okta API.
type Client struct {
	api *okta.Client
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("okta: base URL is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("okta: token is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	_, api, err := okta.NewClient(context.Background(),
		okta.WithOrgUrl(strings.TrimRight(cfg.BaseURL, "/")),
		okta.WithToken(cfg.Token),
		okta.WithHttpClientPtr(httpClient),
		okta.WithCache(false),
		okta.WithTestingDisableHttpsCheck(cfg.AllowHTTP),
	)
	if err != nil {
		return nil, fmt.Errorf("okta: %w", err)
	}
	return &Client{api: api}, nil
}

// FindGroupID searches groups by name. An exact profile name match wins,
// otherwise the first result is used.
func (c *Client) FindGroupID(ctx context.Context, name string) (string, error) {
	groups, resp, err := c.api.Group.ListGroups(ctx, &query.Params{Q: name})
	if err != nil {
		return "", wrap("search groups", resp, err)
	}
	if len(groups) == 0 {
		return "", apperrors.NewLookupNotFound("identity group", name)
	}
	for _, g := range groups {
		if groupName(g) == name {
			return g.Id, nil
		}
	}
	return groups[0].Id, nil
}

// CreateUser creates a staged user without activating it.
func (c *Client) CreateUser(ctx context.Context, profile domain.IdentityProfile) (*domain.IdentityUser, error) {
	attrs := okta.UserProfile{}
	if err := convert(profile.Profile, &attrs); err != nil {
		return nil, fmt.Errorf("okta: encoding profile: %w", err)
	}
	body := okta.CreateUserRequest{Profile: &attrs, GroupIds: profile.GroupIDs}

	created, resp, err := c.api.User.CreateUser(ctx, body, &query.Params{Activate: boolPtr(false)})
	if err != nil {
		return nil, wrap("create user", resp, err)
	}
	if created == nil || created.Id == "" {
		return nil, fmt.Errorf("okta: create user returned no id")
	}

	user := &domain.IdentityUser{ID: created.Id, Status: created.Status}
	if created.Profile != nil {
		if err := convert(created.Profile, &user.Profile); err != nil {
			return nil, fmt.Errorf("okta: decoding profile: %w", err)
		}
	}
	return user, nil
}

// ActivateUser activates a staged user without Okta sending its own email,
// returning the activation link.
func (c *Client) ActivateUser(ctx context.Context, userID string) (string, error) {
	token, resp, err := c.api.User.ActivateUser(ctx, userID, &query.Params{SendEmail: boolPtr(false)})
	if err != nil {
		return "", wrap("activate user", resp, err)
	}
	if token == nil || token.ActivationUrl == "" {
		return "", fmt.Errorf("okta: activate user %s returned no activation URL", userID)
	}
	return token.ActivationUrl, nil
}

// wrap turns 4xx answers into PROVIDER_REJECTED errors carrying Okta's summary
// and causes.
func wrap(op string, resp *okta.Response, err error) error {
	if resp == nil || resp.Response == nil || resp.StatusCode < 400 || resp.StatusCode >= 500 {
		return fmt.Errorf("okta %s: %w", op, err)
	}
	details := map[string]any{
		"operation": op,
		"status":    resp.StatusCode,
	}
	var apiErr *okta.Error
	if errors.As(err, &apiErr) {
		details["error_code"] = apiErr.ErrorCode
		details["summary"] = apiErr.ErrorSummary
		details["error_cause"] = causes(apiErr)
	}
	return apperrors.NewProviderRejected(providerName, details, err)
}

func causes(apiErr *okta.Error) []string {
	out := make([]string, 0, len(apiErr.ErrorCauses))
	for _, cause := range apiErr.ErrorCauses {
		if summary, ok := cause["errorSummary"].(string); ok {
			out = append(out, summary)
		}
	}
	return out
}

func groupName(g *okta.Group) string {
	if g == nil || g.Profile == nil {
		return ""
	}
	var profile struct {
		Name string `json:"name"`
	}
	if convert(g.Profile, &profile) != nil {
		return ""
	}
	return profile.Name
}

// convert copies between the SDK's loosely typed profiles and local structs.
func convert(from, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}

func boolPtr(b bool) *bool { return &b }
