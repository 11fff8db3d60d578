package registry

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/logging"
	"github.com/designforge/mimicry/internal/types"
	"github.com/designforge/mimicry/internal/validation"
)

// ReconcileReport lists the changes a reconcile pass made.
type ReconcileReport struct {
	Added   []types.ComponentEntry `json:"added" yaml:"added"`
	Removed []types.ComponentEntry `json:"removed" yaml:"removed"`
}

// Changed reports whether the pass modified the registry.
func (r *ReconcileReport) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// Reconcile aligns the registry with the components directory: source files
// without an entry are registered under new ids, and entries whose source is
// gone are dropped. Existing ids are never changed.
func Reconcile(ctx context.Context, store Store, logger logging.Logger) (*ReconcileReport, error) {
	reg, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(store.Dir())
	if err != nil {
		return nil, errors.WrapIO(err, "SCAN", "cannot scan components directory")
	}

	onDisk := make(map[string]os.DirEntry)
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), SourceExt) {
			continue
		}
		if validation.ValidateFilename(de.Name()) != nil {
			continue
		}
		onDisk[de.Name()] = de
	}

	report := &ReconcileReport{}
	registered := make(map[string]bool, len(reg.Components))

	for _, entry := range reg.Components {
		registered[entry.Filename] = true
		if _, ok := onDisk[entry.Filename]; ok {
			continue
		}
		if err := store.Delete(ctx, entry.ID); err != nil {
			return report, err
		}
		logger.Info(ctx, "Dropped entry without source", "id", entry.ID, "filename", entry.Filename)
		report.Removed = append(report.Removed, entry)
	}

	orphans := make([]string, 0)
	for name := range onDisk {
		if !registered[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)

	for _, filename := range orphans {
		info, err := onDisk[filename].Info()
		if err != nil {
			return report, errors.WrapIO(err, "SCAN", "cannot stat "+filename)
		}
		entry := types.ComponentEntry{
			ID:        NewID(info.ModTime()),
			Name:      NameFromFilename(filename),
			Filename:  filename,
			CreatedAt: info.ModTime().UTC(),
		}
		if err := store.Register(ctx, entry); err != nil {
			return report, err
		}
		logger.Info(ctx, "Registered orphan source", "id", entry.ID, "filename", filename)
		report.Added = append(report.Added, entry)
	}

	return report, nil
}
