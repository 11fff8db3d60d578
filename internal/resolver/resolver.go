// Package resolver maps a requested component identifier to a registry entry
// and its source text.
//
// The registry index and the source files are written by the generation
// pipeline without any transactional ordering, so a reader may observe an
// index entry before its file exists, or neither yet. The resolver absorbs
// this by re-reading the registry on every attempt and retrying a bounded
// number of times with a fixed delay.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/logging"
	"github.com/designforge/mimicry/internal/types"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 200 * time.Millisecond
)

// Source is the part of the registry store the resolver reads.
type Source interface {
	Load(ctx context.Context) (*types.Registry, error)
	ReadSource(ctx context.Context, filename string) (string, error)
}

// Resolution is a matched entry with its source text.
type Resolution struct {
	Component  types.ComponentEntry
	SourceText string
	// Attempts is the number of registry reads it took, starting at 1.
	Attempts int
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Resolver resolves component ids with bounded retry.
type Resolver struct {
	source   Source
	attempts int
	delay    time.Duration
	sleep    Sleeper
	logger   logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAttempts sets the number of registry reads; values below 1 are ignored.
func WithAttempts(n int) Option {
	return func(r *Resolver) {
		if n >= 1 {
			r.attempts = n
		}
	}
}

// WithDelay sets the fixed delay between attempts.
func WithDelay(d time.Duration) Option {
	return func(r *Resolver) {
		if d >= 0 {
			r.delay = d
		}
	}
}

func WithSleeper(s Sleeper) Option { return func(r *Resolver) { r.sleep = s } }

func WithLogger(l logging.Logger) Option {
	return func(r *Resolver) { r.logger = l.WithComponent("resolver") }
}

// New creates a resolver reading from source.
func New(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:   source,
		attempts: DefaultAttempts,
		delay:    DefaultDelay,
		sleep:    sleepContext,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type outcome int

const (
	outcomeNoMatch outcome = iota
	outcomeUnreadable
	outcomeRegistryError
)

// Resolve finds the component for requestedID. No delay follows the final
// attempt. Exhaustion yields a not-found, file-unavailable or resolution
// error depending on how the last attempt failed.
func (r *Resolver) Resolve(ctx context.Context, requestedID string) (*Resolution, error) {
	if strings.TrimSpace(requestedID) == "" {
		return nil, errors.NewValidationError("EMPTY_ID", "component id is required")
	}

	perf := logging.StartOperation(r.logger, "resolve")

	var (
		last    outcome
		lastErr error
	)

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			if err := r.sleep(ctx, r.delay); err != nil {
				return nil, fmt.Errorf("resolve %s: %w", requestedID, err)
			}
		}

		reg, err := r.source.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("resolve %s: %w", requestedID, ctx.Err())
			}
			last, lastErr = outcomeRegistryError, err
			r.logger.Debug(ctx, "Registry read failed", "id", requestedID, "attempt", attempt, "error", err.Error())
			continue
		}

		entry, ok := Match(reg, requestedID)
		if !ok {
			last, lastErr = outcomeNoMatch, nil
			r.logger.Debug(ctx, "No registry match", "id", requestedID, "attempt", attempt, "components", len(reg.Components))
			continue
		}

		code, err := r.source.ReadSource(ctx, entry.Filename)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("resolve %s: %w", requestedID, ctx.Err())
			}
			last, lastErr = outcomeUnreadable, err
			r.logger.Debug(ctx, "Source not readable yet", "id", requestedID, "filename", entry.Filename, "attempt", attempt)
			continue
		}

		perf.End(ctx, "id", requestedID, "matched", entry.ID, "attempts", attempt)
		return &Resolution{Component: *entry, SourceText: code, Attempts: attempt}, nil
	}

	var err error
	switch last {
	case outcomeRegistryError:
		err = errors.NewResolutionError("REGISTRY_UNAVAILABLE",
			fmt.Sprintf("registry could not be read after %d attempts", r.attempts), lastErr)
	case outcomeUnreadable:
		err = errors.NewFileUnavailableError("FILE_UNREADABLE", "component file not readable", lastErr)
	default:
		err = errors.NewNotFoundError("COMPONENT_NOT_FOUND",
			fmt.Sprintf("component '%s' not found after %d attempts", requestedID, r.attempts))
	}
	perf.EndWithError(ctx, err, "id", requestedID, "attempts", r.attempts)
	return nil, err
}

// Match applies the lookup order: exact id, then substring containment in
// either direction, then (for ids without the generated prefix) name or
// "<id>.tsx" filename equality.
func Match(reg *types.Registry, requestedID string) (*types.ComponentEntry, bool) {
	if requestedID == "" {
		return nil, false
	}

	if entry, ok := reg.Find(requestedID); ok {
		return entry, true
	}

	for i := range reg.Components {
		id := reg.Components[i].ID
		if id == "" {
			continue
		}
		if strings.Contains(requestedID, id) || strings.Contains(id, requestedID) {
			return &reg.Components[i], true
		}
	}

	if strings.HasPrefix(requestedID, types.GeneratedIDPrefix) {
		return nil, false
	}

	filename := requestedID + ".tsx"
	for i := range reg.Components {
		if reg.Components[i].Name == requestedID || reg.Components[i].Filename == filename {
			return &reg.Components[i], true
		}
	}

	return nil, false
}
