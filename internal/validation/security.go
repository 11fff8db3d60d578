// Package validation holds input checks shared by the HTTP server, the
// registry stores and the CLI.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

const maxIDLength = 256

var imageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateComponentID rejects identifiers that cannot be used as lookup keys.
// Any printable text without path separators is accepted since ids are also
// matched by substring and name.
func ValidateComponentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("component id cannot be empty")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("component id exceeds %d characters", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return fmt.Errorf("component id contains control character %U", r)
		}
	}
	if strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("component id contains path separator")
	}
	return nil
}

// ValidateFilename ensures a registry filename is a bare .tsx file name.
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if filepath.Base(filename) != filename || strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename must not contain directories: %s", filename)
	}
	if strings.Contains(filename, "..") {
		return fmt.Errorf("filename contains traversal: %s", filename)
	}
	if err := ValidateFileExtension(filename, []string{".tsx"}); err != nil {
		return err
	}
	if strings.TrimSuffix(filename, ".tsx") == "" {
		return fmt.Errorf("filename has no stem: %s", filename)
	}
	return nil
}

// ValidateImageID checks gallery image identifiers before they touch the filesystem.
func ValidateImageID(id string) error {
	if !imageIDPattern.MatchString(id) {
		return fmt.Errorf("invalid image id: %q", id)
	}
	return nil
}

// ValidatePath validates a directory or file path for security
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateFileExtension validates file extensions against an allowlist
func ValidateFileExtension(filename string, allowedExtensions []string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("file must have an extension")
	}

	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}

	return fmt.Errorf("file extension '%s' is not allowed", ext)
}

// SanitizeInput removes null bytes and control characters except common whitespace.
func SanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var sanitized strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}
