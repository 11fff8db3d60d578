package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/types"
)

// JSONStore keeps the registry index in a JSON document next to the sources.
// Every operation reads the document fresh; writers in this process are
// serialised, writers in other processes are not coordinated.
type JSONStore struct {
	broadcaster
	sources sourceDir
	file    string
	opts    options
	mu      sync.Mutex
}

// NewJSONStore opens (and if needed creates) the components directory.
func NewJSONStore(dir string, opts ...Option) (*JSONStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapIO(err, "MKDIR", "cannot create components directory")
	}

	return &JSONStore{
		sources: sourceDir{dir: dir},
		file:    filepath.Join(dir, o.file),
		opts:    o,
	}, nil
}

func (s *JSONStore) Dir() string { return s.sources.dir }

// Path is the location of the registry document.
func (s *JSONStore) Path() string { return s.file }

func (s *JSONStore) Close() error {
	s.closeAll()
	return nil
}

// Load reads the registry document. A missing document is an empty registry.
func (s *JSONStore) Load(ctx context.Context) (*types.Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.file)
	if os.IsNotExist(err) {
		return &types.Registry{Components: []types.ComponentEntry{}}, nil
	}
	if err != nil {
		return nil, errors.WrapIO(err, "REGISTRY_READ", "cannot read registry")
	}

	var reg types.Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, errors.WrapIO(err, "REGISTRY_PARSE", fmt.Sprintf("cannot parse %s", filepath.Base(s.file)))
	}
	if reg.Components == nil {
		reg.Components = []types.ComponentEntry{}
	}
	return &reg, nil
}

func (s *JSONStore) Get(ctx context.Context, id string) (*types.ComponentEntry, error) {
	reg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := reg.Find(id)
	if !ok {
		return nil, notFound(id)
	}
	c := *entry
	return &c, nil
}

func (s *JSONStore) Create(ctx context.Context, nc types.NewComponent) (*types.ComponentEntry, error) {
	if err := validateNew(nc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	filename := SanitizeFilename(nc.Name)

	if err := s.sources.write(filename, nc.Code); err != nil {
		return nil, err
	}

	eventType := types.EventTypeAdded
	var entry *types.ComponentEntry
	for i := range reg.Components {
		if reg.Components[i].Filename == filename {
			entry = &reg.Components[i]
			break
		}
	}

	if entry != nil {
		eventType = types.EventTypeUpdated
		entry.Name = strings.TrimSpace(nc.Name)
		entry.UpdatedAt = now
		if nc.Prompt != "" {
			entry.Prompt = nc.Prompt
		}
		if nc.ThreadID != "" {
			entry.ThreadID = nc.ThreadID
		}
	} else {
		reg.Components = append(reg.Components, types.ComponentEntry{
			ID:        NewID(now),
			Name:      strings.TrimSpace(nc.Name),
			Filename:  filename,
			CreatedAt: now,
			Prompt:    nc.Prompt,
			ThreadID:  nc.ThreadID,
		})
		entry = &reg.Components[len(reg.Components)-1]
	}

	id := entry.ID
	reg.ActiveComponent = &id
	result := *entry

	if err := s.save(reg, now); err != nil {
		return nil, err
	}

	s.opts.logger.Info(ctx, "Component saved", "id", result.ID, "filename", filename, "event", string(eventType))
	s.emit(eventType, &result, now)
	return &result, nil
}

func (s *JSONStore) Update(ctx context.Context, id string, patch types.ComponentPatch) (*types.ComponentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := reg.Find(id)
	if !ok {
		return nil, notFound(id)
	}

	now := s.opts.now()
	oldFilename, err := applyPatch(entry, patch, now, func(filename string) bool {
		for _, c := range reg.Components {
			if c.Filename == filename && c.ID != id {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	if err := writePatched(s.sources, entry.Filename, oldFilename, patch); err != nil {
		return nil, err
	}

	result := *entry
	if err := s.save(reg, now); err != nil {
		return nil, err
	}
	if oldFilename != entry.Filename {
		if err := s.sources.remove(oldFilename); err != nil {
			s.opts.logger.Warn(ctx, err, "Stale source left behind", "filename", oldFilename)
		}
	}

	s.emit(types.EventTypeUpdated, &result, now)
	return &result, nil
}

func (s *JSONStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.Load(ctx)
	if err != nil {
		return err
	}

	idx := -1
	for i := range reg.Components {
		if reg.Components[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound(id)
	}

	removed := reg.Components[idx]
	reg.Components = append(reg.Components[:idx], reg.Components[idx+1:]...)
	if reg.Active() == id {
		reg.ActiveComponent = lastID(reg.Components)
	}

	now := s.opts.now()
	if err := s.save(reg, now); err != nil {
		return err
	}
	if err := s.sources.remove(removed.Filename); err != nil {
		s.opts.logger.Warn(ctx, err, "Source not removed", "filename", removed.Filename)
	}

	s.emit(types.EventTypeRemoved, &removed, now)
	return nil
}

func (s *JSONStore) Register(ctx context.Context, entry types.ComponentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.Load(ctx)
	if err != nil {
		return err
	}
	for _, c := range reg.Components {
		if c.ID == entry.ID || c.Filename == entry.Filename {
			return errors.NewValidationError("DUPLICATE", fmt.Sprintf("component %s (%s) already registered", entry.ID, entry.Filename))
		}
	}

	reg.Components = append(reg.Components, entry)
	now := s.opts.now()
	if err := s.save(reg, now); err != nil {
		return err
	}

	s.emit(types.EventTypeAdded, &entry, now)
	return nil
}

func (s *JSONStore) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.Load(ctx)
	if err != nil {
		return err
	}

	var entry *types.ComponentEntry
	if id == "" {
		reg.ActiveComponent = nil
	} else {
		found, ok := reg.Find(id)
		if !ok {
			return notFound(id)
		}
		entry = found
		reg.ActiveComponent = &id
	}

	now := s.opts.now()
	if err := s.save(reg, now); err != nil {
		return err
	}
	s.emit(types.EventTypeActive, entry, now)
	return nil
}

func (s *JSONStore) ReadSource(ctx context.Context, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.sources.read(filename)
}

// save writes the document through a temp file and rename so readers never
// observe a partial document.
func (s *JSONStore) save(reg *types.Registry, now time.Time) error {
	reg.LastUpdated = now

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return errors.NewInternalError("REGISTRY_ENCODE", "cannot encode registry", err)
	}

	tmp, err := os.CreateTemp(s.sources.dir, ".registry-*.json")
	if err != nil {
		return errors.WrapIO(err, "REGISTRY_WRITE", "cannot create temp registry")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapIO(err, "REGISTRY_WRITE", "cannot write registry")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapIO(err, "REGISTRY_WRITE", "cannot write registry")
	}
	if err := os.Rename(tmpName, s.file); err != nil {
		os.Remove(tmpName)
		return errors.WrapIO(err, "REGISTRY_WRITE", "cannot replace registry")
	}
	return nil
}
