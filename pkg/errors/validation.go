package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// githubNameRegex matches GitHub organization and user names.
var githubNameRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,37}[A-Za-z0-9])?$`)

// ValidateOrgName validates a GitHub organization name.
func ValidateOrgName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidConfig, "organization cannot be empty")
	}
	if !githubNameRegex.MatchString(name) {
		return New(ErrCodeInvalidConfig, "invalid organization name: %q", name)
	}
	return nil
}

// ValidateBranchName rejects names git would refuse as a ref.
func ValidateBranchName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidConfig, "branch name cannot be empty")
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.HasSuffix(name, ".lock") || strings.Contains(name, "..") || strings.Contains(name, "@{") {
		return New(ErrCodeInvalidConfig, "invalid branch name: %q", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) || strings.ContainsRune("~^:?*[\\", r) {
			return New(ErrCodeInvalidConfig, "invalid branch name: %q", name)
		}
	}
	return nil
}

// ValidatePath validates a file path within a repository.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No control characters
//   - No absolute paths
//   - No ".." segments or backslashes
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
			return New(ErrCodeInvalidPath, "path contains invalid control characters")
		}
	}
	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative")
	}
	if strings.Contains(path, `\`) {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain '..'")
		}
	}
	return nil
}

// gemNameRegex matches names RubyGems accepts.
var gemNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateGemName validates a gem name.
func ValidateGemName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidPackage, "package name too long (max 256 characters)")
	}
	if !gemNameRegex.MatchString(name) {
		return New(ErrCodeInvalidPackage, "invalid gem name: %q", name)
	}
	return nil
}

// ValidateURL ensures the URL has an http or https scheme.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	return nil
}
