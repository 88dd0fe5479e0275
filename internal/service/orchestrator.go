package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-service/internal/domain"
)

// StageError tags a provisioning failure with the stage it happened in.
type StageError struct {
	Stage domain.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// OrchestratorDependencies bundles the providers the orchestrator drives.
type OrchestratorDependencies struct {
	Identity        IdentityProvider
	Cloud           CloudProvisioner
	Chat            ChatInviter
	Notifier        Notifier
	Clock           clock.Clock
	Logger          *zap.Logger
	ActivationDelay time.Duration
	CallTimeout     time.Duration
	CloudPortalURL  string
	VPN             domain.VPNLinks
}

// Orchestrator runs the fixed provisioning sequence for one admitted incident.
type Orchestrator struct {
	identity  IdentityProvider
	cloud     CloudProvisioner
	chat      ChatInviter
	notifier  Notifier
	clock     clock.Clock
	logger    *zap.Logger
	delay     time.Duration
	timeout   time.Duration
	portalURL string
	vpn       domain.VPNLinks
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps OrchestratorDependencies) *Orchestrator {
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		identity:  deps.Identity,
		cloud:     deps.Cloud,
		chat:      deps.Chat,
		notifier:  deps.Notifier,
		clock:     clk,
		logger:    logger,
		delay:     deps.ActivationDelay,
		timeout:   deps.CallTimeout,
		portalURL: deps.CloudPortalURL,
		vpn:       deps.VPN,
	}
}

// Process creates and activates the account, runs the cost-center branch and
// sends the welcome email. Nothing is retried; the first failure is returned
// as a *StageError.
func (o *Orchestrator) Process(ctx context.Context, built *BuiltProfile, managerEmail string) error {
	profile := built.Profile.Profile
	logger := o.logger.With(zap.String("work_email", profile.Email), zap.String("cost_center", profile.CostCenter))

	user, err := call(ctx, o.timeout, "create identity user", func(ctx context.Context) (*domain.IdentityUser, error) {
		return o.identity.CreateUser(ctx, built.Profile)
	})
	if err != nil {
		return &StageError{Stage: domain.StageIdentity, Err: err}
	}
	logger.Info("identity user created", zap.String("user_id", user.ID))

	activationLink, err := call(ctx, o.timeout, "activate identity user", func(ctx context.Context) (string, error) {
		return o.identity.ActivateUser(ctx, user.ID)
	})
	if err != nil {
		return &StageError{Stage: domain.StageActivation, Err: err}
	}

	if o.delay > 0 {
		select {
		case <-o.clock.After(o.delay):
		case <-ctx.Done():
		}
	}

	route := built.Route
	branched := false
	if route.ChatWorkspace != "" {
		branched = true
		err := callErr(ctx, o.timeout, "chat invite", func(ctx context.Context) error {
			return o.chat.Invite(ctx, route.ChatWorkspace, profile.Email)
		})
		if err != nil {
			return &StageError{Stage: domain.StageChat, Err: err}
		}
		logger.Info("chat invite sent", zap.String("workspace", route.ChatWorkspace))
	}
	if route.ProvisionsCloud(built.Department) {
		branched = true
		if err := o.provisionCloud(ctx, profile, managerEmail); err != nil {
			return &StageError{Stage: domain.StageCloud, Err: err}
		}
		logger.Info("cloud account provisioned", zap.String("department", built.Department))
	}
	if !branched {
		logger.Info("no provisioning branch for cost center", zap.String("department", built.Department))
	}

	err = callErr(ctx, o.timeout, "send welcome email", func(ctx context.Context) error {
		return o.notifier.SendWelcome(ctx, domain.WelcomeNotice{
			CompanyName:    profile.CostCenter,
			FirstName:      profile.FirstName,
			PrivateEmail:   profile.SecondEmail,
			WorkEmail:      profile.Email,
			ManagerEmail:   managerEmail,
			ActivationLink: activationLink,
			VPN:            o.vpn,
		})
	})
	if err != nil {
		return &StageError{Stage: domain.StageNotify, Err: err}
	}
	logger.Info("welcome email sent")
	return nil
}

func (o *Orchestrator) provisionCloud(ctx context.Context, profile domain.ProfileAttributes, managerEmail string) error {
	prefix, _, _ := strings.Cut(profile.Email, "@")
	account, err := call(ctx, o.timeout, "provision cloud account", func(ctx context.Context) (*domain.CloudAccount, error) {
		return o.cloud.Provision(ctx, prefix, profile.Email)
	})
	if err != nil {
		return err
	}
	return callErr(ctx, o.timeout, "send cloud access email", func(ctx context.Context) error {
		return o.notifier.SendCloudAccess(ctx, domain.CloudAccessNotice{
			FirstName:     profile.FirstName,
			WorkEmail:     profile.Email,
			ManagerEmail:  managerEmail,
			PortalURL:     o.portalURL,
			CloudUsername: account.Username,
			CloudPassword: account.Password,
			VPN:           o.vpn,
		})
	})
}
