package service

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

const startDateLayout = "2006-01-02"

// IsDue reports whether a start date is closer than windowDays calendar days
// from today. Past dates are due.
func IsDue(startDate string, today time.Time, windowDays int) (bool, error) {
	start, err := time.ParseInLocation(startDateLayout, strings.TrimSpace(startDate), today.Location())
	if err != nil {
		return false, apperrors.NewDateParseError(startDate, err)
	}
	return DaysUntil(start, today) < windowDays, nil
}

// DaysUntil counts calendar days from today to date, negative for past dates.
func DaysUntil(date, today time.Time) int {
	y, m, d := today.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = date.Date()
	target := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(target.Sub(midnight).Hours() / 24)
}
