package samanage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{BaseURL: server.URL, Token: "secret", PerPage: 2, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	g := NewWithT(t)
	_, err := NewClient(Config{})
	g.Expect(err).To(MatchError("samanage: token is required"))
}

func TestListIncidentsFollowsPages(t *testing.T) {
	g := NewWithT(t)
	var pages []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		g.Expect(r.URL.Path).To(Equal("/incidents.json"))
		g.Expect(r.Header.Get("X-Samanage-Authorization")).To(Equal("Bearer secret"))
		g.Expect(r.Header.Get("Accept")).To(Equal(acceptHeader))
		g.Expect(r.URL.Query().Get("layout")).To(Equal("long"))
		g.Expect(r.URL.Query().Get("per_page")).To(Equal("2"))

		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		w.Header().Set("X-Total-Pages", "2")
		switch page {
		case "1":
			fmt.Fprint(w, `[{"id": 1, "name": "Employee - On Boarding"}, {"id": 2, "name": "Printer"}]`)
		default:
			fmt.Fprint(w, `[{"id": "3", "name": "Employee - On Boarding",
				"request_variables": [{"type": "text", "name": "First Name", "value": "Dana"}],
				"department": {"name": "Cloudify, R&D"}, "site": {"name": "Tel Aviv"}}]`)
		}
	})

	incidents, err := client.ListIncidents(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(pages).To(Equal([]string{"1", "2"}))
	g.Expect(incidents).To(HaveLen(3))
	g.Expect(incidents[0].ID).To(Equal(domain.IncidentID("1")))
	g.Expect(incidents[2].ID).To(Equal(domain.IncidentID("3")))
	g.Expect(incidents[2].Department.Name).To(Equal("Cloudify, R&D"))
	g.Expect(incidents[2].Variables).To(ConsistOf(domain.Variable{Type: "text", Name: "First Name", Value: "Dana"}))
	g.Expect(incidents[2].Raw).To(HaveKeyWithValue("name", "Employee - On Boarding"))
}

func TestListIncidentsKeepsMultiSelectValues(t *testing.T) {
	g := NewWithT(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "name": "Employee - On Boarding"},
			{"id": 2, "name": "Access request",
			 "request_variables": [{"type": "multi", "name": "Apps", "value": ["Jira", "Slack"]},
			                       {"type": "obj", "name": "Laptop", "value": {"model": "x1"}}]}]`)
	})

	incidents, err := client.ListIncidents(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(incidents).To(HaveLen(2))
	g.Expect(incidents[1].Variables).To(ConsistOf(
		domain.Variable{Type: "multi", Name: "Apps", Value: `["Jira","Slack"]`},
		domain.Variable{Type: "obj", Name: "Laptop", Value: `{"model":"x1"}`},
	))
}

func TestListIncidentsSkipsUndecodableIncident(t *testing.T) {
	g := NewWithT(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "name": "Employee - On Boarding"},
			{"id": {"nested": true}, "name": "Broken"},
			{"id": 3, "name": "Employee - On Boarding"}]`)
	})

	incidents, err := client.ListIncidents(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(incidents).To(HaveLen(2))
	g.Expect(incidents[0].ID).To(Equal(domain.IncidentID("1")))
	g.Expect(incidents[1].ID).To(Equal(domain.IncidentID("3")))
}

func TestListIncidentsPageTimeout(t *testing.T) {
	g := NewWithT(t)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client, err := NewClient(Config{
		BaseURL:     server.URL,
		Token:       "secret",
		PageTimeout: 50 * time.Millisecond,
		HTTPClient:  server.Client(),
	})
	g.Expect(err).NotTo(HaveOccurred())

	_, err = client.ListIncidents(context.Background())
	g.Expect(apperrors.CodeOf(err)).To(Equal(apperrors.CodeCallTimeout))
	g.Expect(err).To(MatchError(ContainSubstring("page 1")))
}

func TestListIncidentsWithoutPaginationHeader(t *testing.T) {
	g := NewWithT(t)
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `[{"id": 1}, {"id": 2}]`)
	})

	incidents, err := client.ListIncidents(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(incidents).To(HaveLen(2))
	g.Expect(calls).To(Equal(1))
}

func TestListIncidentsError(t *testing.T) {
	g := NewWithT(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := client.ListIncidents(context.Background())
	g.Expect(err).To(MatchError(ContainSubstring("HTTP 401")))
}

func TestGetGroup(t *testing.T) {
	g := NewWithT(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/groups/77.json":
			fmt.Fprint(w, `{"id": 77, "name": "Ruth Manager", "email": "ruth@example.com"}`)
		case "/groups/78.json":
			fmt.Fprint(w, `{"id": 78, "name": "No Mail"}`)
		default:
			http.NotFound(w, r)
		}
	})

	contact, err := client.GetGroup(context.Background(), "77")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(*contact).To(Equal(domain.Contact{Name: "Ruth Manager", Email: "ruth@example.com"}))

	_, err = client.GetGroup(context.Background(), "78")
	g.Expect(apperrors.HasCode(err, apperrors.CodeLookupNotFound)).To(BeTrue())

	_, err = client.GetGroup(context.Background(), "79")
	g.Expect(apperrors.HasCode(err, apperrors.CodeLookupNotFound)).To(BeTrue())
}
