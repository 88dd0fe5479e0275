package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/spec-kit/onboarding-service/internal/config"
	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

const departmentSeparator = ", "

// BuiltProfile is an identity profile together with the routing facts the
// orchestrator branches on.
type BuiltProfile struct {
	Profile         domain.IdentityProfile
	DepartmentLabel string
	Department      string
	Route           config.CostCenterRoute
}

// ProfileBuilder assembles identity-provider profiles from extracted records.
type ProfileBuilder struct {
	identity IdentityProvider
	routing  *config.Routing
	timeout  time.Duration
}

// NewProfileBuilder creates a builder.
func NewProfileBuilder(identity IdentityProvider, routing *config.Routing, timeout time.Duration) *ProfileBuilder {
	return &ProfileBuilder{identity: identity, routing: routing, timeout: timeout}
}

// Build derives the work email, resolves the department group and returns the
// profile to create.
func (b *ProfileBuilder) Build(ctx context.Context, incident domain.Incident, user domain.UserRecord) (*BuiltProfile, error) {
	route, err := b.routing.Route(user.CostCenter)
	if err != nil {
		return nil, err
	}

	label := incident.Department.Name
	groupName, department, ok := strings.Cut(label, departmentSeparator)
	if !ok || groupName == "" || department == "" {
		return nil, apperrors.NewMalformedField("department", label, `"<group>, <department>"`)
	}

	workEmail, err := WorkEmail(user.FirstName, user.LastName, route.Domain)
	if err != nil {
		return nil, err
	}

	groupID, err := call(ctx, b.timeout, "find identity group", func(ctx context.Context) (string, error) {
		return b.identity.FindGroupID(ctx, groupName)
	})
	if err != nil {
		return nil, err
	}

	return &BuiltProfile{
		Profile: domain.IdentityProfile{
			Profile: domain.ProfileAttributes{
				FirstName:   user.FirstName,
				State:       incident.Site.Name,
				LastName:    user.LastName,
				Email:       workEmail,
				Login:       workEmail,
				SecondEmail: user.PrivateEmail,
				MobilePhone: user.MobilePhone,
				CostCenter:  user.CostCenter,
				Title:       user.Title,
				Department:  department,
				Manager:     user.Manager,
				UserType:    user.EmployeeType,
				Address:     user.WorkAddress,
			},
			GroupIDs: []string{groupID},
		},
		DepartmentLabel: label,
		Department:      department,
		Route:           route,
	}, nil
}

// WorkEmail builds "<first><last initial>@<domain>" from normalized names.
func WorkEmail(firstName, lastName, domain string) (string, error) {
	first := normalizeLocalPart(firstName)
	if first == "" {
		return "", apperrors.NewMalformedField("first name", firstName, "at least one latin letter or digit")
	}
	last := normalizeLocalPart(lastName)
	if last == "" {
		return "", apperrors.NewMalformedField("last name", lastName, "at least one latin letter or digit")
	}
	return first + last[:1] + "@" + domain, nil
}

// normalizeLocalPart lowercases s, strips diacritics and keeps only [a-z0-9.-].
func normalizeLocalPart(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".-")
}
