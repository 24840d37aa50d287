package emotion

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Motion is the robot's animation surface.
type Motion interface {
	// Play starts the named action. An error means it is unavailable.
	Play(ctx context.Context, id ActionID) error
	// Stop halts any running action.
	Stop(ctx context.Context) error
}

// Resolver turns raw emotion strings into a played action.
type Resolver struct {
	binding *Binding
	motion  Motion
	timeout time.Duration
	logger  *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// WithPlayTimeout bounds each Play call.
func WithPlayTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.timeout = d }
}

// NewResolver creates a resolver over binding and motion.
func NewResolver(binding *Binding, motion Motion, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		binding: binding,
		motion:  motion,
		timeout: 3 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "emotion.resolver")
	return r
}

// Binding returns the resolver's binding.
func (r *Resolver) Binding() *Binding { return r.binding }

// Resolve normalizes raw and plays an action for it. It returns false if
// nothing could be played; the caller carries on without a gesture.
func (r *Resolver) Resolve(ctx context.Context, raw string) (ActionID, bool) {
	id, err := r.ResolveLabel(ctx, Normalize(raw))
	if err != nil {
		r.logger.Warn("no gesture", "raw", raw, "error", err)
		return "", false
	}
	return id, true
}

// ResolveLabel plays the cached action for l, then the candidates in
// order, stopping at the first that plays. The cache is updated only on
// success.
func (r *Resolver) ResolveLabel(ctx context.Context, l Label) (ActionID, error) {
	var errs []error

	cached, hasCached := r.binding.Cached(l)
	if hasCached {
		err := r.play(ctx, cached)
		if err == nil {
			return cached, nil
		}
		errs = append(errs, err)
	}

	for _, id := range r.binding.Candidates(l) {
		if hasCached && id == cached {
			continue
		}
		if err := r.play(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		r.binding.remember(l, id)
		if hasCached {
			r.logger.Info("motion binding moved", "label", l, "from", cached, "to", id)
		}
		return id, nil
	}

	return "", errors.Join(append([]error{ErrMotionUnavailable}, errs...)...)
}

// Stop halts any running action.
func (r *Resolver) Stop(ctx context.Context) error {
	if r.motion == nil {
		return nil
	}
	return r.motion.Stop(ctx)
}

func (r *Resolver) play(ctx context.Context, id ActionID) error {
	if r.motion == nil {
		return &PlayError{Action: id, Err: ErrMotionUnavailable}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.motion.Play(ctx, id); err != nil {
		r.logger.Debug("candidate failed", "action", id, "error", err)
		return &PlayError{Action: id, Err: err}
	}
	return nil
}
