// Package rackspace creates cloud workspace users through the Rackspace
// Identity v2.0 API.
package rackspace

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

const (
	defaultIdentityURL = "https://identity.api.rackspacecloud.com/v2.0"
	providerName       = "rackspace"
	passwordLength     = 16
)

const (
	lowerChars  = "abcdefghijkmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars  = "23456789"
	symbolChars = "!#%+=?@"
)

// Config holds configuration for creating a Client.
type Config struct {
	// IdentityURL defaults to the public Rackspace identity endpoint.
	IdentityURL string

	// Username and APIKey authenticate the admin account creating users.
	Username string
	APIKey   string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Passwords generates user passwords. Defaults to GeneratePassword.
	Passwords func() (string, error)
}

// Client provisions Rackspace cloud users.
type Client struct {
	identityURL string
	username    string
	apiKey      string
	httpClient  *http.Client
	passwords   func() (string, error)
}

// APIError is a non-2xx response from the identity API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rackspace: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a 409, returned for an existing username.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.APIKey == "" {
		return nil, errors.New("rackspace: username and API key are required")
	}
	identityURL := cfg.IdentityURL
	if identityURL == "" {
		identityURL = defaultIdentityURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	passwords := cfg.Passwords
	if passwords == nil {
		passwords = GeneratePassword
	}
	return &Client{
		identityURL: strings.TrimRight(identityURL, "/"),
		username:    cfg.Username,
		apiKey:      cfg.APIKey,
		httpClient:  httpClient,
		passwords:   passwords,
	}, nil
}

// Provision authenticates and creates an enabled user named prefix with a
// freshly generated password.
func (c *Client) Provision(ctx context.Context, prefix, email string) (*domain.CloudAccount, error) {
	if prefix == "" {
		return nil, apperrors.NewMalformedField("username", prefix, "a non-empty username prefix")
	}
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, c.wrap("authenticate", err)
	}
	password, err := c.passwords()
	if err != nil {
		return nil, fmt.Errorf("rackspace: generating password: %w", err)
	}

	body := map[string]any{
		"user": map[string]any{
			"username":         prefix,
			"email":            email,
			"enabled":          true,
			"OS-KSADM:password": password,
		},
	}
	var out struct {
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/users", token, body, &out); err != nil {
		return nil, c.wrap("create user", err)
	}

	username := out.User.Username
	if username == "" {
		username = prefix
	}
	return &domain.CloudAccount{Username: username, Password: password}, nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	body := map[string]any{
		"auth": map[string]any{
			"RAX-KSKEY:apiKeyCredentials": map[string]string{
				"username": c.username,
				"apiKey":   c.apiKey,
			},
		},
	}
	var out struct {
		Access struct {
			Token struct {
				ID string `json:"id"`
			} `json:"token"`
		} `json:"access"`
	}
	if err := c.do(ctx, http.MethodPost, "/tokens", "", body, &out); err != nil {
		return "", err
	}
	if out.Access.Token.ID == "" {
		return "", errors.New("rackspace: token response carried no token id")
	}
	return out.Access.Token.ID, nil
}

func (c *Client) wrap(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apperrors.NewProviderRejected(providerName, map[string]any{
			"operation": op,
			"status":    apiErr.StatusCode,
			"message":   apiErr.Message,
		}, err)
	}
	return fmt.Errorf("rackspace %s: %w", op, err)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("rackspace: encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.identityURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("rackspace: reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("rackspace: decoding response: %w", err)
	}
	return nil
}

// GeneratePassword returns a random password containing at least one lower
// case letter, upper case letter, digit and symbol.
func GeneratePassword() (string, error) {
	classes := []string{lowerChars, upperChars, digitChars, symbolChars}
	all := strings.Join(classes, "")

	out := make([]byte, 0, passwordLength)
	for _, class := range classes {
		ch, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, ch)
	}
	for len(out) < passwordLength {
		ch, err := randomChar(all)
		if err != nil {
			return "", err
		}
		out = append(out, ch)
	}

	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}
