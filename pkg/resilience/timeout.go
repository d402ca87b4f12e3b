package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
)

// WithTimeout runs fn under a deadline of limit. An expired deadline comes
// back as apperrors.ErrTimeout, still matching context.DeadlineExceeded, so
// callers can map it to 503 without inspecting the context. A non-positive
// limit runs fn unbounded.
func WithTimeout(ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	err := fn(bounded)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
	if errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s exceeded %v: %w: %w", name, limit, apperrors.ErrTimeout, context.DeadlineExceeded)
	}
	return err
}

// Detached is WithTimeout on a context that ignores ctx's cancellation but
// keeps its values. Compensating writes use it so a finished request cannot
// abort the rollback of its own side effects.
func Detached(ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) error) error {
	return WithTimeout(context.WithoutCancel(ctx), limit, name, fn)
}
