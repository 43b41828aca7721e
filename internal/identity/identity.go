// Package identity derives stable video identifiers.
//
// An identifier is a deterministic UUIDv5 of the path a video was first
// discovered at. It is assigned exactly once: scans look records up by their
// current path (or a secondary filename/size match) before calling AssignID,
// so a file keeps its identity no matter how often it is moved afterwards.
package identity

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// namespace scopes video identifiers away from other UUIDv5 users.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("clipdex/video"))

// AssignID returns the stable identifier for a video first discovered at
// originalPath. Deterministic, fixed-length, URL and filesystem safe.
func AssignID(originalPath string) string {
	cleaned := normalizePath(originalPath)
	return uuid.NewSHA1(namespace, []byte(cleaned)).String()
}

func normalizePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if abs, err := filepath.Abs(filepath.Clean(trimmed)); err == nil {
		return abs
	}
	return filepath.Clean(trimmed)
}
