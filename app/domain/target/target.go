package target

import (
	"context"
	"errors"
)

// UnknownTarget is the sentinel view target used when resolution fails. A
// failure signal with an unresolved target is still recorded; losing the
// signal is worse than an incomplete one.
const UnknownTarget = "unknown"

var ErrUnresolved = errors.New("view target unresolved")

// Resolver maps a push to the concrete cache instance (view target) it
// addresses. The registry behind it may itself be stale or misconfigured;
// resolution failure is a reason code on the failure signal, never a dropped
// signal.
type Resolver interface {
	Resolve(ctx context.Context, subject, asset string) (string, error)
}

// StaticResolver resolves every key to one configured target. Single-view
// deployments run with this; multi-view deployments plug in a registry-backed
// resolver.
type StaticResolver struct {
	viewTarget string
}

func NewStaticResolver(viewTarget string) *StaticResolver {
	return &StaticResolver{viewTarget: viewTarget}
}

func (r *StaticResolver) Resolve(ctx context.Context, subject, asset string) (string, error) {
	if r.viewTarget == "" {
		return "", ErrUnresolved
	}
	return r.viewTarget, nil
}
