package server

import (
	"strconv"
	"strings"
	"time"
)

// archiveExt is the only extension accepted for uploads.
const archiveExt = ".wacc"

// maxBaseName bounds the stored name before the timestamp suffix.
const maxBaseName = 200

// isArchive reports whether name ends in the exact archive extension.
func isArchive(name string) bool {
	return strings.HasSuffix(name, archiveExt)
}

// storedName turns "foo.wacc" into "foo_<epoch millis>".
func storedName(orig string, now time.Time) string {
	base := SanitizeFilename(strings.TrimSuffix(orig, archiveExt))
	return base + "_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// SanitizeFilename removes potentially dangerous characters from filenames
func SanitizeFilename(filename string) string {
	// Remove path separators
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")

	// Remove null bytes
	filename = strings.ReplaceAll(filename, "\x00", "")

	filename = strings.Trim(filename, " .")

	if len(filename) > maxBaseName {
		filename = filename[:maxBaseName]
	}

	if filename == "" {
		filename = "unnamed"
	}

	return filename
}
