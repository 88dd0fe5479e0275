package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

type fakeTickets struct {
	mu        sync.Mutex
	incidents []domain.Incident
	groups    map[string]domain.Contact
	listErr   error
	lookups   int
}

func (f *fakeTickets) ListIncidents(ctx context.Context) ([]domain.Incident, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.incidents, nil
}

func (f *fakeTickets) GetGroup(ctx context.Context, id string) (*domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	contact, ok := f.groups[id]
	if !ok {
		return nil, apperrors.NewLookupNotFound("manager group", id)
	}
	return &contact, nil
}

type fakeIdentity struct {
	mu          sync.Mutex
	groups      map[string]string
	created     []domain.IdentityProfile
	activated   []string
	createErr   error
	activateErr error
}

func (f *fakeIdentity) FindGroupID(ctx context.Context, name string) (string, error) {
	id, ok := f.groups[name]
	if !ok {
		return "", apperrors.NewLookupNotFound("identity group", name)
	}
	return id, nil
}

func (f *fakeIdentity) CreateUser(ctx context.Context, profile domain.IdentityProfile) (*domain.IdentityUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, profile)
	return &domain.IdentityUser{ID: fmt.Sprintf("u%d", len(f.created)), Status: "STAGED", Profile: profile.Profile}, nil
}

func (f *fakeIdentity) ActivateUser(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activateErr != nil {
		return "", f.activateErr
	}
	f.activated = append(f.activated, userID)
	return "https://login.example.com/activate/" + userID, nil
}

type provisionCall struct {
	Prefix string
	Email  string
}

type fakeCloud struct {
	calls []provisionCall
	err   error
}

func (f *fakeCloud) Provision(ctx context.Context, prefix, email string) (*domain.CloudAccount, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, provisionCall{Prefix: prefix, Email: email})
	return &domain.CloudAccount{Username: prefix, Password: "s3cret!Pass"}, nil
}

type inviteCall struct {
	Workspace string
	Email     string
}

type fakeChat struct {
	invites []inviteCall
	err     error
	block   bool
	started chan struct{}
}

func (f *fakeChat) Invite(ctx context.Context, workspace, email string) error {
	if f.block {
		if f.started != nil {
			f.started <- struct{}{}
		}
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.invites = append(f.invites, inviteCall{Workspace: workspace, Email: email})
	return nil
}

type fakeNotifier struct {
	welcomes     []domain.WelcomeNotice
	cloudNotices []domain.CloudAccessNotice
	err          error
}

func (f *fakeNotifier) SendWelcome(ctx context.Context, notice domain.WelcomeNotice) error {
	if f.err != nil {
		return f.err
	}
	f.welcomes = append(f.welcomes, notice)
	return nil
}

func (f *fakeNotifier) SendCloudAccess(ctx context.Context, notice domain.CloudAccessNotice) error {
	if f.err != nil {
		return f.err
	}
	f.cloudNotices = append(f.cloudNotices, notice)
	return nil
}

// ticketVars builds a complete set of request variables; overrides replace or,
// with an empty value, blank individual labels.
func ticketVars(overrides map[string]string) []domain.Variable {
	values := map[string]string{
		domain.LabelStartDate:    "2026-03-05",
		domain.LabelFirstName:    "Dana",
		domain.LabelLastName:     "Cohen",
		domain.LabelPrivateEmail: "dana@home.example",
		domain.LabelCostCenter:   "Cloudify",
		domain.LabelMobilePhone:  "+972123456789",
		domain.LabelTitle:        "Engineer",
		domain.LabelEmployeeType: "Employee",
		domain.LabelWorkAddress:  "Tel Aviv",
		domain.LabelManager:      "77",
	}
	for k, v := range overrides {
		values[k] = v
	}
	vars := make([]domain.Variable, 0, len(values)+1)
	vars = append(vars, domain.Variable{Type: "text", Name: "Laptop preference", Value: "Mac"})
	for _, label := range domain.RecognizedLabels {
		vars = append(vars, domain.Variable{Type: "text", Name: label, Value: domain.VariableValue(values[label])})
	}
	return vars
}

func newFakeTickets(incidents ...domain.Incident) *fakeTickets {
	return &fakeTickets{
		incidents: incidents,
		groups: map[string]domain.Contact{
			"77": {Name: "Ruth Manager", Email: "ruth@cloudify.co"},
		},
	}
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{groups: map[string]string{
		"Cloudify":  "grp-cloudify",
		"IMC":       "grp-imc",
		"Corporate": "grp-corp",
	}}
}
