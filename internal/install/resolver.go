// Package install finds and remembers the game installation that holds
// the client and server modules.
//
// Resolve blocks on its PathSupplier with no timeout. That suits an
// interactive tool; non-interactive callers set MaxAttempts or supply a
// FixedSupplier.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrAttemptsExhausted = errors.New("no valid install path supplied")
	ErrNoSupplier        = errors.New("install path is invalid and no path supplier is available")
)

// PathSupplier asks for a replacement install path. reason describes
// why the previous candidate was rejected.
type PathSupplier interface {
	RequestPath(ctx context.Context, reason string) (string, error)
}

type SupplierFunc func(ctx context.Context, reason string) (string, error)

func (f SupplierFunc) RequestPath(ctx context.Context, reason string) (string, error) {
	return f(ctx, reason)
}

// FixedSupplier answers every request with the same path.
type FixedSupplier string

func (f FixedSupplier) RequestPath(context.Context, string) (string, error) {
	return string(f), nil
}

type Resolver struct {
	Store    Store
	Key      string
	Layout   Layout
	Supplier PathSupplier
	// MaxAttempts bounds how many replacement paths are requested.
	// Zero means unbounded.
	MaxAttempts int
	// Out receives one line per rejected candidate.
	Out    io.Writer
	Logger *zap.Logger
}

// Resolve returns a validated install root. The store is written only
// when the accepted path differs from what it held.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cached, found, err := r.Store.Load(r.Key)
	if err != nil {
		// An unreadable cache behaves like an empty one.
		logger.Warn("install path cache unreadable", zap.String("key", r.Key), zap.Error(err))
		cached, found = "", false
	}

	candidate := cached
	attempts := 0
	for {
		check := r.Layout.Check(candidate)
		if check.OK() {
			accepted := strings.TrimSpace(candidate)
			if !found || accepted != cached {
				if err := r.Store.Save(r.Key, accepted); err != nil {
					return "", fmt.Errorf("save install path: %w", err)
				}
				logger.Debug("install path saved", zap.String("path", accepted))
			}
			return accepted, nil
		}

		r.printf("%s\n", check.Message())
		logger.Debug("install path rejected", zap.String("problem", string(check.Problem)), zap.String("path", check.Path))

		if r.Supplier == nil {
			return "", fmt.Errorf("%w: %s", ErrNoSupplier, check.Message())
		}
		if r.MaxAttempts > 0 && attempts >= r.MaxAttempts {
			return "", fmt.Errorf("%w after %d attempts: %s", ErrAttemptsExhausted, attempts, check.Message())
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		attempts++
		next, err := r.Supplier.RequestPath(ctx, check.Message())
		if err != nil {
			return "", fmt.Errorf("request install path: %w", err)
		}
		candidate = strings.TrimSpace(next)
	}
}

func (r *Resolver) printf(format string, args ...any) {
	if r.Out == nil {
		return
	}
	_, _ = fmt.Fprintf(r.Out, format, args...)
}
