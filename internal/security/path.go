// Package security validates the externally supplied names that end up in
// catalog rows: bucket names and object paths.
package security

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	ErrPathTraversal = errors.New("path contains traversal sequences")
	ErrInvalidPath   = errors.New("path contains invalid characters")
	ErrAbsolutePath  = errors.New("absolute paths not allowed")
	ErrEmptyPath     = errors.New("path cannot be empty")
)

// ValidateObjectPath checks an object path before it is used as a catalog
// key. Paths are relative, slash separated, free of traversal sequences and
// control characters.
func ValidateObjectPath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}

	// Check traversal before and after cleaning; Clean can both remove and
	// expose ".." segments depending on the input.
	if strings.Contains(path, "..") {
		return ErrPathTraversal
	}

	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return ErrAbsolutePath
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return ErrPathTraversal
	}

	for _, char := range cleaned {
		if char < 32 {
			return ErrInvalidPath
		}
	}

	return nil
}

// ValidateBucketName checks a bucket name: non-empty, no separators, no
// traversal tokens, and restricted to letters, digits, '-', '_' and '.'.
func ValidateBucketName(bucket string) error {
	if bucket == "" {
		return ErrEmptyPath
	}

	if bucket == "." || bucket == ".." {
		return ErrInvalidPath
	}

	for _, char := range bucket {
		if !isAllowedBucketChar(char) {
			return ErrInvalidPath
		}
	}

	return nil
}

func isAllowedBucketChar(r rune) bool {
	return unicode.IsLetter(r) ||
		unicode.IsDigit(r) ||
		r == '-' || r == '_' || r == '.'
}
