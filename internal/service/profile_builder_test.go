package service

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/spec-kit/onboarding-service/internal/config"
	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

func defaultRouting(t *testing.T) *config.Routing {
	t.Helper()
	routing, err := config.LoadRouting("")
	if err != nil {
		t.Fatalf("LoadRouting: %v", err)
	}
	return routing
}

func testUser(costCenter string) domain.UserRecord {
	return domain.UserRecord{
		StartDate:    "2026-03-05",
		FirstName:    "Dana",
		LastName:     "Cohen",
		PrivateEmail: "dana@home.example",
		CostCenter:   costCenter,
		MobilePhone:  "+972123456789",
		Title:        "Engineer",
		EmployeeType: "Employee",
		WorkAddress:  "Tel Aviv",
		Manager:      "Ruth Manager",
	}
}

func testIncident(id, department string) domain.Incident {
	return domain.Incident{
		ID:         domain.IncidentID(id),
		Name:       "Employee - On Boarding",
		Department: domain.NamedRef{Name: department},
		Site:       domain.NamedRef{Name: "Israel"},
	}
}

func TestWorkEmail(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"Dana", "Cohen", "danac@cloudify.co"},
		{"José", "Álvarez", "josea@cloudify.co"},
		{"Mary Ann", "O'Neil", "maryanno@cloudify.co"},
		{"Jean-Luc", "Picard", "jean-lucp@cloudify.co"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			g := NewWithT(t)
			got, err := WorkEmail(tt.first, tt.last, "cloudify.co")
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}

func TestWorkEmailRejectsUnusableNames(t *testing.T) {
	g := NewWithT(t)
	_, err := WorkEmail("דנה", "Cohen", "cloudify.co")
	g.Expect(apperrors.CodeOf(err)).To(Equal(apperrors.CodeMalformedField))
}

func TestBuildProfile(t *testing.T) {
	g := NewWithT(t)
	builder := NewProfileBuilder(newFakeIdentity(), defaultRouting(t), time.Second)

	built, err := builder.Build(context.Background(), testIncident("1", "Cloudify, R&D"), testUser("Cloudify"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(built.Department).To(Equal("R&D"))
	g.Expect(built.DepartmentLabel).To(Equal("Cloudify, R&D"))
	g.Expect(built.Route.ChatWorkspace).To(Equal("cloudify"))
	g.Expect(built.Profile.GroupIDs).To(Equal([]string{"grp-cloudify"}))
	g.Expect(built.Profile.Profile).To(Equal(domain.ProfileAttributes{
		FirstName:   "Dana",
		State:       "Israel",
		LastName:    "Cohen",
		Email:       "danac@cloudify.co",
		Login:       "danac@cloudify.co",
		SecondEmail: "dana@home.example",
		MobilePhone: "+972123456789",
		CostCenter:  "Cloudify",
		Title:       "Engineer",
		Department:  "R&D",
		Manager:     "Ruth Manager",
		UserType:    "Employee",
		Address:     "Tel Aviv",
	}))
}

func TestBuildProfileDomainFollowsCostCenter(t *testing.T) {
	g := NewWithT(t)
	builder := NewProfileBuilder(newFakeIdentity(), defaultRouting(t), time.Second)

	for _, cc := range []string{"IMC", "Corporate"} {
		built, err := builder.Build(context.Background(), testIncident("1", cc+", Sales"), testUser(cc))
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(built.Profile.Profile.Email).To(Equal("danac@gigaspaces.com"))
	}
}

func TestBuildProfileErrors(t *testing.T) {
	tests := []struct {
		name       string
		department string
		costCenter string
		code       string
	}{
		{"no separator", "Cloudify R&D", "Cloudify", apperrors.CodeMalformedField},
		{"empty department", "Cloudify, ", "Cloudify", apperrors.CodeMalformedField},
		{"unknown group", "Marketing, Events", "Cloudify", apperrors.CodeLookupNotFound},
		{"unknown cost center", "Cloudify, R&D", "Acme", apperrors.CodeUnrecognizedCostCenter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			builder := NewProfileBuilder(newFakeIdentity(), defaultRouting(t), time.Second)
			_, err := builder.Build(context.Background(), testIncident("1", tt.department), testUser(tt.costCenter))
			g.Expect(apperrors.CodeOf(err)).To(Equal(tt.code))
		})
	}
}
