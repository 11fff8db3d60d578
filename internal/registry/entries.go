package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/types"
)

func notFound(id string) error {
	return errors.NewNotFoundError("COMPONENT_NOT_FOUND", fmt.Sprintf("component '%s' not found", id)).
		WithComponent(id)
}

func validateNew(nc types.NewComponent) error {
	if strings.TrimSpace(nc.Name) == "" {
		return errors.NewValidationError("NAME_REQUIRED", "name is required")
	}
	if strings.TrimSpace(nc.Code) == "" {
		return errors.NewValidationError("CODE_REQUIRED", "code is required")
	}
	return nil
}

// applyPatch mutates entry and returns the filename it had before. taken
// reports whether another entry already owns a filename.
func applyPatch(entry *types.ComponentEntry, patch types.ComponentPatch, now time.Time, taken func(string) bool) (string, error) {
	oldFilename := entry.Filename

	if patch.Code != nil && strings.TrimSpace(*patch.Code) == "" {
		return "", errors.NewValidationError("CODE_REQUIRED", "code cannot be empty")
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return "", errors.NewValidationError("NAME_REQUIRED", "name cannot be empty")
		}
		filename := SanitizeFilename(name)
		if filename != oldFilename && taken(filename) {
			return "", errors.NewValidationError("FILENAME_TAKEN", fmt.Sprintf("filename %s is already used by another component", filename))
		}
		entry.Name = name
		entry.Filename = filename
	}
	if patch.Prompt != nil {
		entry.Prompt = *patch.Prompt
	}
	if patch.ThreadID != nil {
		entry.ThreadID = *patch.ThreadID
	}
	entry.UpdatedAt = now

	return oldFilename, nil
}

// writePatched writes the patched code, or carries the old source over to a renamed file.
func writePatched(src sourceDir, filename, oldFilename string, patch types.ComponentPatch) error {
	if patch.Code != nil {
		return src.write(filename, *patch.Code)
	}
	if filename == oldFilename {
		return nil
	}
	code, err := src.read(oldFilename)
	if err != nil {
		return err
	}
	return src.write(filename, code)
}

func lastID(entries []types.ComponentEntry) *string {
	if len(entries) == 0 {
		return nil
	}
	id := entries[len(entries)-1].ID
	return &id
}
