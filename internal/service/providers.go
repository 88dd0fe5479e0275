package service

import (
	"context"

	"github.com/spec-kit/onboarding-service/internal/domain"
)

// TicketSource reads onboarding incidents and manager contacts.
type TicketSource interface {
	ListIncidents(ctx context.Context) ([]domain.Incident, error)
	GetGroup(ctx context.Context, id string) (*domain.Contact, error)
}

// IdentityProvider creates and activates user accounts.
type IdentityProvider interface {
	FindGroupID(ctx context.Context, name string) (string, error)
	CreateUser(ctx context.Context, profile domain.IdentityProfile) (*domain.IdentityUser, error)
	ActivateUser(ctx context.Context, userID string) (string, error)
}

// CloudProvisioner creates cloud workspace accounts.
type CloudProvisioner interface {
	Provision(ctx context.Context, prefix, email string) (*domain.CloudAccount, error)
}

// ChatInviter invites an address to a chat workspace.
type ChatInviter interface {
	Invite(ctx context.Context, workspace, email string) error
}

// Notifier sends the onboarding emails.
type Notifier interface {
	SendWelcome(ctx context.Context, notice domain.WelcomeNotice) error
	SendCloudAccess(ctx context.Context, notice domain.CloudAccessNotice) error
}
