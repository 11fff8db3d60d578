// Package registry persists generated components: the registry index that
// lists them and the source files they point to.
//
// Two Store implementations exist. JSONStore keeps the index in
// <dir>/registry.json and re-reads it on every call, so edits made by other
// processes are always visible. SQLiteStore keeps the index in an SQLite
// database and updates it transactionally. Both keep sources as plain files
// in the components directory, written before the index references them.
package registry

import (
	"context"
	"time"

	"github.com/designforge/mimicry/internal/logging"
	"github.com/designforge/mimicry/internal/types"
)

// Store is the registry of generated components.
type Store interface {
	// Load returns a fresh snapshot of the registry.
	Load(ctx context.Context) (*types.Registry, error)
	Get(ctx context.Context, id string) (*types.ComponentEntry, error)
	// Create writes the source and registers it. A component whose
	// sanitized filename is already registered is updated in place and
	// keeps its id.
	Create(ctx context.Context, c types.NewComponent) (*types.ComponentEntry, error)
	Update(ctx context.Context, id string, patch types.ComponentPatch) (*types.ComponentEntry, error)
	Delete(ctx context.Context, id string) error
	// Register adds an entry whose source file already exists.
	Register(ctx context.Context, entry types.ComponentEntry) error
	// SetActive marks id as the active component; "" clears it.
	SetActive(ctx context.Context, id string) error
	ReadSource(ctx context.Context, filename string) (string, error)
	// Dir is the components directory holding the sources.
	Dir() string
	Watch() <-chan types.RegistryEvent
	Unwatch(ch <-chan types.RegistryEvent)
	Close() error
}

type options struct {
	now    func() time.Time
	logger logging.Logger
	file   string
}

func defaultOptions() options {
	return options{
		now:    time.Now,
		logger: logging.NewNop(),
		file:   "registry.json",
	}
}

// Option customises a store.
type Option func(*options)

// WithClock sets the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithLogger sets the store logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l.WithComponent("registry") }
}

// WithRegistryFile sets the JSON index file name inside the components directory.
func WithRegistryFile(name string) Option { return func(o *options) { o.file = name } }

// Open returns the store selected by backend ("json" or "sqlite").
func Open(backend, dir, dbPath string, opts ...Option) (Store, error) {
	switch backend {
	case "", "json":
		return NewJSONStore(dir, opts...)
	case "sqlite":
		return NewSQLiteStore(dir, dbPath, opts...)
	default:
		return nil, unsupportedBackend(backend)
	}
}

// WithCode loads the source of entry and fingerprints it.
func WithCode(ctx context.Context, s Store, entry *types.ComponentEntry) (*types.ComponentWithCode, error) {
	code, err := s.ReadSource(ctx, entry.Filename)
	if err != nil {
		return nil, err
	}
	return &types.ComponentWithCode{
		ComponentEntry: *entry,
		Code:           code,
		Hash:           Hash(code),
		Length:         len(code),
	}, nil
}
