//go:build integration

package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/bogdansurdu/vibranium-waccanda/internal/config"
)

// startPostgres runs a throwaway Postgres container and returns its settings.
func startPostgres(t *testing.T) config.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15",
		Env: []string{
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=waccanda",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		t.Fatalf("could not start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	port, _ := strconv.Atoi(resource.GetPort("5432/tcp"))
	cfg := config.DB{
		Host:    "localhost",
		Port:    port,
		User:    "postgres",
		Pass:    "secret",
		Name:    "waccanda",
		SSLMode: "disable",
	}

	if err := pool.Retry(func() error {
		db, err := sql.Open("postgres", DSN(cfg))
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Ping()
	}); err != nil {
		t.Fatalf("could not connect to postgres: %v", err)
	}
	return cfg
}

func TestPackagesAgainstPostgres(t *testing.T) {
	cfg := startPostgres(t)

	if err := Migrate(DSN(cfg)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Applying twice is a no-op.
	if err := Migrate(DSN(cfg)); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	seed, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		t.Fatal(err)
	}
	defer seed.Close()

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO packages (id, package_name) VALUES (1, 'MyPkg'), (2, 'Hollow')`, nil},
		{`INSERT INTO package_versions (package_id, version_number, file_location, upload_ts) VALUES (1, '1.0.0', 'pkgs/mypkg_1', $1)`, []any{t1}},
		{`INSERT INTO package_versions (package_id, version_number, file_location, upload_ts) VALUES (1, '2.0.0-RC', 'pkgs/mypkg_2', $1)`, []any{t2}},
	}
	for _, s := range stmts {
		if _, err := seed.Exec(s.q, s.args...); err != nil {
			t.Fatalf("seed %q: %v", s.q, err)
		}
	}

	db, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := Ping(context.Background(), db); err != nil {
		t.Fatalf("ping: %v", err)
	}
	pkgs := NewPackages(db)
	ctx := context.Background()

	tests := []struct {
		name, pkg, version string
		want               string
		wantErr            error
	}{
		{"latest picks newest upload", "MyPkg", Latest, "pkgs/mypkg_2", nil},
		{"name is case-insensitive", "mypkg", Latest, "pkgs/mypkg_2", nil},
		{"exact version", "MyPkg", "1.0.0", "pkgs/mypkg_1", nil},
		{"version is case-insensitive", "MYPKG", "2.0.0-rc", "pkgs/mypkg_2", nil},
		{"unknown version", "MyPkg", "9.9.9", "", ErrNotFound},
		{"unknown package", "Unknown", Latest, "", ErrNotFound},
		{"package without versions", "Hollow", Latest, "", ErrNoLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pkgs.Locate(ctx, tt.pkg, tt.version)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Locate(%q, %q) = %q, want %q", tt.pkg, tt.version, got, tt.want)
			}
		})
	}
}
