package slack

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// redirectTransport sends workspace-host requests to the test server while
// keeping the original Host header.
type redirectTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return rt.base.RoundTrip(req)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	client, err := NewClient(Config{
		Tokens:     map[string]string{"Cloudify": "xoxp-cfy", "xap": "xoxp-xap"},
		HTTPClient: &http.Client{Transport: redirectTransport{target: target, base: http.DefaultTransport}},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func requestToken(r *http.Request) string {
	if token := r.PostForm.Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func TestNewClientRequiresTokens(t *testing.T) {
	g := NewWithT(t)
	_, err := NewClient(Config{})
	g.Expect(err).To(HaveOccurred())
}

func TestInviteUsesWorkspaceToken(t *testing.T) {
	g := NewWithT(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		g.Expect(r.Method).To(Equal(http.MethodPost))
		g.Expect(r.Host).To(Equal("xap.slack.com"))
		g.Expect(r.URL.Path).To(Equal("/api/users.admin.invite"))
		g.Expect(r.ParseForm()).To(Succeed())
		g.Expect(requestToken(r)).To(Equal("xoxp-xap"))
		g.Expect(r.PostForm.Get("email")).To(Equal("danac@gigaspaces.com"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok": true}`)
	})

	g.Expect(client.Invite(context.Background(), "XAP", "danac@gigaspaces.com")).To(Succeed())
}

func TestInviteBenignErrors(t *testing.T) {
	for _, answer := range benignErrors {
		t.Run(answer, func(t *testing.T) {
			g := NewWithT(t)
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprintf(w, `{"ok": false, "error": %q}`, answer)
			})
			g.Expect(client.Invite(context.Background(), "cloudify", "a@cloudify.co")).To(Succeed())
		})
	}
}

func TestInviteRejected(t *testing.T) {
	g := NewWithT(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok": false, "error": "invalid_email"}`)
	})

	err := client.Invite(context.Background(), "cloudify", "nope")
	g.Expect(apperrors.CodeOf(err)).To(Equal(apperrors.CodeProviderRejected))
	de := apperrors.ToDomainError(err)
	g.Expect(de.Details).To(HaveKeyWithValue("workspace", "cloudify"))
	g.Expect(de.Details).To(HaveKeyWithValue("error", ContainSubstring("invalid_email")))
}

func TestInviteUnknownWorkspace(t *testing.T) {
	g := NewWithT(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	err := client.Invite(context.Background(), "corporate", "a@gigaspaces.com")
	g.Expect(apperrors.CodeOf(err)).To(Equal(apperrors.CodeLookupNotFound))
}

func TestInviteServerError(t *testing.T) {
	g := NewWithT(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	err := client.Invite(context.Background(), "cloudify", "a@cloudify.co")
	g.Expect(err).To(HaveOccurred())
	g.Expect(apperrors.HasCode(err, apperrors.CodeProviderRejected)).To(BeFalse())
}
