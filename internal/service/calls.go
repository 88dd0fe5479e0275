package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// call runs fn under its own deadline. A deadline hit that did not come from
// the parent context surfaces as CALL_TIMEOUT.
func call[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		var zero T
		return zero, apperrors.NewCallTimeout(op, err)
	}
	return out, err
}

func callErr(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	_, err := call(ctx, timeout, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
