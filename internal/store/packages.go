package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Latest is the version token that selects the most recently uploaded version.
const Latest = "latest"

var (
	// ErrNotFound means no row matched the package name (and version).
	ErrNotFound = errors.New("package not found")
	// ErrNoLocation means a row matched but carries no file_location, which
	// happens for a package without any versions.
	ErrNoLocation = errors.New("package has no file location")
)

const latestQuery = `SELECT file_location FROM packages
	LEFT JOIN package_versions ON package_versions.package_id = packages.id
	WHERE UPPER(package_name) = UPPER($1)
	ORDER BY upload_ts DESC
	LIMIT 1`

const versionQuery = `SELECT file_location FROM packages
	LEFT JOIN package_versions ON package_versions.package_id = packages.id
	WHERE UPPER(package_name) = UPPER($1)
	AND UPPER(version_number) = UPPER($2)
	LIMIT 1`

// Packages resolves package versions to stored file locations. It only reads.
type Packages struct {
	db *sql.DB
}

// NewPackages wraps an open database handle.
func NewPackages(db *sql.DB) *Packages {
	return &Packages{db: db}
}

// Locate returns the file_location for name at version, or for the newest
// upload when version is Latest. Names and versions match case-insensitively.
func (p *Packages) Locate(ctx context.Context, name, version string) (string, error) {
	var row *sql.Row
	if version == Latest {
		row = p.db.QueryRowContext(ctx, latestQuery, name)
	} else {
		row = p.db.QueryRowContext(ctx, versionQuery, name, version)
	}

	var location sql.NullString
	if err := row.Scan(&location); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("locate %s@%s: %w", name, version, err)
	}
	if !location.Valid || location.String == "" {
		return "", ErrNoLocation
	}
	return location.String, nil
}
