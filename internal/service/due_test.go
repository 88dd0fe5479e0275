package service

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"

	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

func TestIsDueWindow(t *testing.T) {
	today := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	tests := []struct {
		start string
		due   bool
	}{
		{"2026-03-20", false},
		{"2026-03-10", false}, // 9 days
		{"2026-03-09", false}, // 8 days
		{"2026-03-08", true},  // 7 days
		{"2026-03-01", true},
		{"2026-02-26", true},
		{"2025-12-31", true},
	}
	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			g := NewWithT(t)
			due, err := IsDue(tt.start, today, 8)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(due).To(Equal(tt.due))
		})
	}
}

func TestIsDueCustomWindow(t *testing.T) {
	g := NewWithT(t)
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	due, err := IsDue("2026-03-02", today, 1)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(due).To(BeFalse())

	due, err = IsDue("2026-03-01", today, 1)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(due).To(BeTrue())
}

func TestIsDueParseError(t *testing.T) {
	g := NewWithT(t)
	for _, value := range []string{"03/05/2026", "2026-02-30", "tomorrow", ""} {
		_, err := IsDue(value, time.Now(), 8)
		g.Expect(apperrors.CodeOf(err)).To(Equal(apperrors.CodeDateParseError), value)
	}
}

func TestDaysUntilAcrossDST(t *testing.T) {
	g := NewWithT(t)
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		t.Skip("timezone database unavailable")
	}
	today := time.Date(2026, 3, 25, 12, 0, 0, 0, loc)
	start := time.Date(2026, 3, 30, 0, 0, 0, 0, loc)
	g.Expect(DaysUntil(start, today)).To(Equal(5))
}
