package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/shuttlehq/shuttle/session"
)

// MaxFileSize is the fixed ceiling on a single file.
const MaxFileSize int64 = 5 * 1024 * 1024 * 1024

// DefaultAllowedContentTypes is the fixed allow-list of declared content
// types.
var DefaultAllowedContentTypes = []string{
	"application/octet-stream",
	"application/pdf",
	"application/zip",
	"image/gif",
	"image/jpeg",
	"image/png",
	"text/plain",
	"video/mp4",
}

// ValidateFile enforces the upload preconditions on a file's declared content
// type and size. Collaborators must call this before handing a job to the
// orchestrator. A nil allow-list selects DefaultAllowedContentTypes.
func ValidateFile(contentType string, size int64, allowedContentTypes []string) error {
	if allowedContentTypes == nil {
		allowedContentTypes = DefaultAllowedContentTypes
	}
	allowed := false
	for _, candidate := range allowedContentTypes {
		if candidate == contentType {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: content type %q is not allowed", session.ErrInput, contentType)
	}
	if size < 1 {
		return fmt.Errorf("%w: file size must be positive, got %d", session.ErrInput, size)
	}
	if size > MaxFileSize {
		return fmt.Errorf("%w: file size %d exceeds the %d byte ceiling", session.ErrInput, size, MaxFileSize)
	}
	return nil
}

// ExpandPaths resolves the provided path patterns into a validated list of
// absolute file paths for a multi-file submission. Patterns that match
// nothing are logged and skipped.
func ExpandPaths(patterns []string, pathModifier pathutil.PathModifier, pathChecker pathutil.PathChecker, logger log.Logger) ([]string, error) {
	var expandedPaths []string
	for _, pattern := range patterns {
		if !strings.Contains(pattern, "*") {
			expandedPaths = append(expandedPaths, pattern)
			continue
		}

		base, glob := doublestar.SplitPattern(pattern)
		absBase, err := pathModifier.AbsPath(base) // resolves ~/ and expands any envs
		if err != nil {
			return nil, err
		}
		matches, err := doublestar.Glob(os.DirFS(absBase), glob, doublestar.WithNoFollow())
		if matches == nil {
			logger.Warnf("No match for path pattern: %s", pattern)
			continue
		}
		if err != nil {
			logger.Warnf("Error in path pattern '%s': %s", pattern, err)
			continue
		}

		for _, match := range matches {
			expandedPaths = append(expandedPaths, filepath.Join(base, match))
		}
	}

	var finalPaths []string
	for _, path := range expandedPaths {
		absPath, err := pathModifier.AbsPath(path)
		if err != nil {
			logger.Warnf("Failed to parse path %s, error: %s", path, err)
			continue
		}

		exists, err := pathChecker.IsPathExists(absPath)
		if err != nil {
			logger.Warnf("Failed to check path %s, error: %s", absPath, err)
		}
		if !exists {
			logger.Warnf("Upload path doesn't exist: %s", path)
			continue
		}

		finalPaths = append(finalPaths, absPath)
	}

	return finalPaths, nil
}
