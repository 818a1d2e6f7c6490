package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// entryNameRegex matches entry and chunk names usable inside filename templates.
var entryNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._~-]*$`)

// ValidateEntryName validates an entry or chunk name. Names end up inside
// output filenames, so they may not contain separators or traversal sequences.
func ValidateEntryName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidConfig, "entry name cannot be empty")
	}
	if len(name) > 128 {
		return New(ErrCodeInvalidConfig, "entry name too long (max 128 characters)")
	}
	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidConfig, "entry name contains invalid characters: %q", "..")
	}
	if !entryNameRegex.MatchString(name) {
		return New(ErrCodeInvalidConfig, "invalid entry name: %q", name)
	}
	return nil
}

// ValidatePath validates an output-relative file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// templatePlaceholderRegex matches one filename template placeholder.
var templatePlaceholderRegex = regexp.MustCompile(`\[([a-z]+)(?::(\d+))?\]`)

var knownPlaceholders = map[string]bool{
	"name": true, "id": true, "ext": true,
	"hash": true, "contenthash": true, "chunkhash": true,
}

// ValidateFilenameTemplate checks that every placeholder in tmpl is known
// and that the literal parts form a safe relative path.
func ValidateFilenameTemplate(tmpl string) error {
	if tmpl == "" {
		return New(ErrCodeInvalidConfig, "filename template cannot be empty")
	}
	for _, m := range templatePlaceholderRegex.FindAllStringSubmatch(tmpl, -1) {
		if !knownPlaceholders[m[1]] {
			return New(ErrCodeInvalidConfig, "unknown placeholder [%s] in %q", m[1], tmpl)
		}
	}
	literal := templatePlaceholderRegex.ReplaceAllString(tmpl, "x")
	if err := ValidatePath(literal); err != nil {
		return Wrap(ErrCodeInvalidConfig, err, "filename template %q", tmpl)
	}
	return nil
}
