package service

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/onboarding-service/internal/domain"
	"github.com/spec-kit/onboarding-service/internal/observability"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

func TestAuditServiceCountsRunOutcomes(t *testing.T) {
	g := NewWithT(t)
	f := newRunnerFixture(t, false,
		onboardingIncident("10", "Cloudify, R&D", nil),
		onboardingIncident("11", "IMC, Sales", map[string]string{domain.LabelStartDate: "2026-04-01", domain.LabelCostCenter: "IMC"}),
		onboardingIncident("12", "IMC, Sales", map[string]string{domain.LabelTitle: ""}),
	)
	metrics := observability.NewMetrics()
	NewAuditService(f.dispatcher, zaptest.NewLogger(t), metrics).RegisterHandlers()

	runner := f.runner(t, nil)
	_, err := runner.Run(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	_, err = runner.Run(context.Background())
	g.Expect(err).NotTo(HaveOccurred())

	snap := metrics.Snapshot()
	g.Expect(snap.Runs).To(Equal(int64(2)))
	g.Expect(snap.LastRunAt).NotTo(BeNil())
	g.Expect(snap.Outcomes).To(HaveLen(4))
	g.Expect(snap.Outcomes).To(HaveKeyWithValue("completed", int64(1)))
	g.Expect(snap.Outcomes).To(HaveKeyWithValue("not_due", int64(2)))
	g.Expect(snap.Outcomes).To(HaveKeyWithValue("duplicate|"+apperrors.CodeDuplicateTicket, int64(1)))
	g.Expect(snap.Outcomes).To(HaveKeyWithValue("invalid|"+apperrors.CodeMissingRequiredField, int64(2)))
}
