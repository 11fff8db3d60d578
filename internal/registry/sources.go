package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/validation"
)

// sourceDir reads and writes generated sources in the components directory.
type sourceDir struct {
	dir string
}

func (s sourceDir) path(filename string) string {
	return filepath.Join(s.dir, filename)
}

func (s sourceDir) read(filename string) (string, error) {
	if err := validation.ValidateFilename(filename); err != nil {
		return "", errors.WrapValidation(err, "BAD_FILENAME", "invalid source filename")
	}
	data, err := os.ReadFile(s.path(filename))
	if err != nil {
		return "", errors.NewFileUnavailableError("SOURCE_UNREADABLE", "component file not readable", err).
			WithContext("filename", filename)
	}
	return string(data), nil
}

func (s sourceDir) write(filename, code string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.WrapIO(err, "MKDIR", "cannot create components directory")
	}
	if err := os.WriteFile(s.path(filename), []byte(code), 0o644); err != nil {
		return errors.WrapIO(err, "SOURCE_WRITE", fmt.Sprintf("cannot write %s", filename))
	}
	return nil
}

func (s sourceDir) remove(filename string) error {
	if err := os.Remove(s.path(filename)); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO(err, "SOURCE_REMOVE", fmt.Sprintf("cannot remove %s", filename))
	}
	return nil
}

func (s sourceDir) exists(filename string) bool {
	_, err := os.Stat(s.path(filename))
	return err == nil
}

func unsupportedBackend(name string) error {
	return errors.NewConfigError("BAD_BACKEND", fmt.Sprintf("unsupported registry backend %q", name))
}
