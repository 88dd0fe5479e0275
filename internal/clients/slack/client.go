// Package slack invites new hires to chat workspaces.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

const providerName = "slack"

// Answers that mean the address is already a member or pending invitee.
var benignErrors = []string{"already_invited", "already_in_team"}

// Config holds configuration for creating a Client.
type Config struct {
	// Tokens maps a lowercase workspace name, which is also the workspace
	// subdomain, to its admin token.
	Tokens map[string]string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client sends workspace invitations, one API client per workspace token.
type Client struct {
	workspaces map[string]*slack.Client
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Tokens) == 0 {
		return nil, errors.New("slack: at least one workspace token is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	workspaces := make(map[string]*slack.Client, len(cfg.Tokens))
	for workspace, token := range cfg.Tokens {
		workspaces[strings.ToLower(workspace)] = slack.New(token, slack.OptionHTTPClient(httpClient))
	}
	return &Client{workspaces: workspaces}, nil
}

// Invite sends an invitation for email to workspace. An address that is
// already invited or already a member counts as success.
func (c *Client) Invite(ctx context.Context, workspace, email string) error {
	workspace = strings.ToLower(workspace)
	api, ok := c.workspaces[workspace]
	if !ok {
		return apperrors.NewLookupNotFound("chat workspace token", workspace)
	}

	err := api.InviteToTeamContext(ctx, workspace, "", "", email)
	if err == nil {
		return nil
	}
	for _, benign := range benignErrors {
		if strings.Contains(err.Error(), benign) {
			return nil
		}
	}
	if rejected(err) {
		return apperrors.NewProviderRejected(providerName, map[string]any{
			"workspace": workspace,
			"error":     err.Error(),
		}, err)
	}
	return fmt.Errorf("slack invite to %s: %w", workspace, err)
}

// rejected reports whether Slack answered and refused the call, as opposed
// to a transport failure or a server-side error.
func rejected(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		code := status.HTTPStatusCode()
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests
	}
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return false
	}
	var netErr interface{ Timeout() bool }
	return !errors.As(err, &netErr)
}
