package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/validator.v2"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// Extractor turns incident request variables into a user record.
type Extractor struct {
	tickets TicketSource
	timeout time.Duration
}

// NewExtractor creates an extractor resolving manager references through tickets.
func NewExtractor(tickets TicketSource, timeout time.Duration) *Extractor {
	return &Extractor{tickets: tickets, timeout: timeout}
}

// Extract fills a UserRecord from vars. Every recognized label must be present
// and non-empty; the Manager value is a group reference that is resolved to
// the manager's name and email.
func (e *Extractor) Extract(ctx context.Context, vars []domain.Variable) (*domain.Extraction, error) {
	var out domain.Extraction
	for _, v := range vars {
		field, ok := out.User.Field(v.Name)
		if !ok {
			continue
		}
		*field = strings.TrimSpace(string(v.Value))
	}

	if err := validator.Validate(out.User); err != nil {
		return nil, missingFields(err)
	}

	managerRef := out.User.Manager
	contact, err := call(ctx, e.timeout, "resolve manager", func(ctx context.Context) (*domain.Contact, error) {
		return e.tickets.GetGroup(ctx, managerRef)
	})
	if err != nil {
		return nil, err
	}
	if contact == nil || contact.Name == "" || contact.Email == "" {
		return nil, apperrors.NewLookupNotFound("manager group", managerRef)
	}
	out.User.Manager = contact.Name
	out.ManagerEmail = contact.Email
	return &out, nil
}

// missingFields converts validator errors into one MISSING_REQUIRED_FIELD
// error listing labels in recognized order.
func missingFields(err error) error {
	var errs validator.ErrorMap
	if !errors.As(err, &errs) {
		return fmt.Errorf("validate user record: %w", err)
	}
	missing := make(map[string]bool, len(errs))
	for field := range errs {
		if label, ok := domain.LabelForField[field]; ok {
			missing[label] = true
		}
	}
	labels := make([]string, 0, len(missing))
	for _, label := range domain.RecognizedLabels {
		if missing[label] {
			labels = append(labels, label)
		}
	}
	return apperrors.NewMissingRequiredField(labels)
}
