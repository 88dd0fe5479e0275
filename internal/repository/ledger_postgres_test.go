package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		mock.Close()
	})
	return mock
}

func TestPostgresLedgerAdmitsNewIncident(t *testing.T) {
	g := NewWithT(t)
	mock := newMockPool(t)
	ledger := NewPostgresLedger(mock, false)

	mock.ExpectQuery("INSERT INTO onboarding_incidents").
		WithArgs("42", pgxmock.AnyArg(), false).
		WillReturnRows(pgxmock.NewRows([]string{"attempts"}).AddRow(1))

	duplicate, err := ledger.TryInsert(context.Background(), "42", map[string]any{"id": "42"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(duplicate).To(BeFalse())
}

func TestPostgresLedgerReportsDuplicate(t *testing.T) {
	g := NewWithT(t)
	mock := newMockPool(t)
	ledger := NewPostgresLedger(mock, true)

	mock.ExpectQuery("ON CONFLICT \\(incident_id\\) DO UPDATE").
		WithArgs("42", pgxmock.AnyArg(), true).
		WillReturnRows(pgxmock.NewRows([]string{"attempts"}))

	duplicate, err := ledger.TryInsert(context.Background(), "42", nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(duplicate).To(BeTrue())
}

func TestPostgresLedgerStorageError(t *testing.T) {
	g := NewWithT(t)
	mock := newMockPool(t)
	ledger := NewPostgresLedger(mock, false)

	mock.ExpectQuery("INSERT INTO onboarding_incidents").
		WithArgs("42", pgxmock.AnyArg(), false).
		WillReturnError(errors.New("connection refused"))

	_, err := ledger.TryInsert(context.Background(), "42", nil)
	g.Expect(apperrors.HasCode(err, apperrors.CodeStorageUnavailable)).To(BeTrue())
	g.Expect(err).To(MatchError(ContainSubstring("connection refused")))
}

func TestPostgresLedgerMarkFailed(t *testing.T) {
	g := NewWithT(t)
	mock := newMockPool(t)
	ledger := NewPostgresLedger(mock, false)

	mock.ExpectExec("UPDATE onboarding_incidents SET status='FAILED'").
		WithArgs("42", "identity", false, "login already exists").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE onboarding_incidents SET status='COMPLETED'").
		WithArgs("43").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := ledger.MarkFailed(context.Background(), "42", domain.StageIdentity, errors.New("login already exists"))
	g.Expect(err).NotTo(HaveOccurred())

	err = ledger.MarkCompleted(context.Background(), "43")
	g.Expect(err).To(MatchError(ErrEntryNotFound))
}

func TestPostgresLedgerGet(t *testing.T) {
	g := NewWithT(t)
	mock := newMockPool(t)
	ledger := NewPostgresLedger(mock, false)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT incident_id, incident_info").
		WithArgs("42").
		WillReturnRows(pgxmock.NewRows([]string{
			"incident_id", "incident_info", "status", "failed_stage", "retryable",
			"attempts", "last_error", "created_at", "updated_at",
		}).AddRow("42", map[string]any{"id": "42"}, "FAILED", "profile", true, 1, "no group", created, created))

	entry, err := ledger.Get(context.Background(), "42")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(entry.Status).To(Equal(domain.LedgerStatusFailed))
	g.Expect(entry.FailedStage).To(Equal(domain.StageProfile))
	g.Expect(entry.Retryable).To(BeTrue())
	g.Expect(entry.Info).To(HaveKeyWithValue("id", "42"))
}
