package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bogdansurdu/vibranium-waccanda/internal/client"
	"github.com/bogdansurdu/vibranium-waccanda/internal/project"
)

// fakeInstaller serves archives from a map keyed by "name==version".
type fakeInstaller struct {
	archives  map[string]string
	missing   map[string]bool
	installs  []string
	published []string
}

func (f *fakeInstaller) Install(_ context.Context, name, version string) ([]byte, error) {
	key := name + "==" + version
	f.installs = append(f.installs, key)
	if f.missing[name] {
		return nil, client.ErrPackageMissing
	}
	data, ok := f.archives[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, client.ErrPackageNotFound)
	}
	return []byte(data), nil
}

func (f *fakeInstaller) Publish(_ context.Context, path string) error {
	f.published = append(f.published, path)
	if !strings.HasSuffix(path, ".wacc") {
		return client.ErrRejected
	}
	return nil
}

func run(t *testing.T, cfg Config, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newProject(t *testing.T, fake *fakeInstaller) Config {
	t.Helper()
	cfg := Config{Dir: t.TempDir(), Client: fake}
	if _, err := run(t, cfg, "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	return cfg
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand(Config{API: client.DefaultAPI})

	for _, name := range []string{"init", "install", "remove", "publish"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("missing subcommand %s", name)
		}
	}
	install, _, _ := cmd.Find([]string{"install"})
	if install.Flags().Lookup("save") == nil {
		t.Error("install is missing --save")
	}
	remove, _, _ := cmd.Find([]string{"remove"})
	if remove.Flags().ShorthandLookup("s") == nil {
		t.Error("remove is missing -s")
	}
}

func TestInit_Twice(t *testing.T) {
	cfg := newProject(t, &fakeInstaller{})

	out, err := run(t, cfg, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "already been initialised") {
		t.Errorf("expected reinit warning, got %q", out)
	}
}

func TestInstall(t *testing.T) {
	fake := &fakeInstaller{archives: map[string]string{
		"MyPkg==latest": "new",
		"MyPkg==1.0.0":  "old",
	}}
	cfg := newProject(t, fake)

	if _, err := run(t, cfg, "install", "MyPkg", "--save"); err != nil {
		t.Fatalf("install: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.Dir, ".installed_packages", "MyPkg.wacc"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("archive = %q", data)
	}

	proj := project.Open(cfg.Dir)
	pkg, ok, err := proj.Installed("MyPkg")
	if err != nil || !ok || pkg.Version != "latest" {
		t.Errorf("Installed = %+v %v %v", pkg, ok, err)
	}
	m, err := proj.LoadManifest()
	if err != nil {
		t.Fatal(err)
	}
	if m.Dependencies["MyPkg"] != "latest" {
		t.Errorf("manifest dependencies = %v", m.Dependencies)
	}

	out, err := run(t, cfg, "install", "MyPkg")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "already present") {
		t.Errorf("expected skip, got %q", out)
	}
	if len(fake.installs) != 1 {
		t.Errorf("server contacted again: %v", fake.installs)
	}

	if _, err := run(t, cfg, "install", "MyPkg==1.0.0"); err != nil {
		t.Fatal(err)
	}
	pkg, _, _ = proj.Installed("MyPkg")
	if pkg.Version != "1.0.0" {
		t.Errorf("version after reinstall = %q", pkg.Version)
	}
}

func TestInstall_FromManifest(t *testing.T) {
	fake := &fakeInstaller{archives: map[string]string{
		"A==1":      "a",
		"B==latest": "b",
	}}
	cfg := newProject(t, fake)
	proj := project.Open(cfg.Dir)
	if err := proj.SaveDependency("B", "latest"); err != nil {
		t.Fatal(err)
	}
	if err := proj.SaveDependency("A", "1"); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, cfg, "install"); err != nil {
		t.Fatalf("install: %v", err)
	}
	if strings.Join(fake.installs, ",") != "A==1,B==latest" {
		t.Errorf("installs = %v", fake.installs)
	}
}

func TestInstall_Errors(t *testing.T) {
	fake := &fakeInstaller{missing: map[string]bool{"Gone": true}}
	cfg := newProject(t, fake)

	tests := []struct {
		ref     string
		wantErr error
	}{
		{"Nope", client.ErrPackageNotFound},
		{"Gone==2", client.ErrPackageMissing},
		{"../evil", project.ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			_, err := run(t, cfg, "install", tt.ref)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("install error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInstall_NotInitialised(t *testing.T) {
	cfg := Config{Dir: t.TempDir(), Client: &fakeInstaller{}}
	if _, err := run(t, cfg, "install", "MyPkg"); !errors.Is(err, project.ErrNotInitialised) {
		t.Errorf("install error = %v, want ErrNotInitialised", err)
	}
}

func TestRemove(t *testing.T) {
	fake := &fakeInstaller{archives: map[string]string{"MyPkg==latest": "x"}}
	cfg := newProject(t, fake)
	if _, err := run(t, cfg, "install", "MyPkg", "-s"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, cfg, "remove", "MyPkg", "--save")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !strings.Contains(out, "Removed MyPkg") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(cfg.Dir, ".installed_packages", "MyPkg.wacc")); !os.IsNotExist(err) {
		t.Error("archive not removed")
	}
	m, _ := project.Open(cfg.Dir).LoadManifest()
	if _, ok := m.Dependencies["MyPkg"]; ok {
		t.Error("dependency not dropped")
	}

	if _, err := run(t, cfg, "remove"); err == nil {
		t.Error("remove without args should fail")
	}
}

func TestPublish(t *testing.T) {
	fake := &fakeInstaller{}
	cfg := Config{Dir: t.TempDir(), Client: fake}

	if _, err := run(t, cfg, "publish", "lib.wacc"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := run(t, cfg, "publish", "lib.txt"); !errors.Is(err, client.ErrRejected) {
		t.Errorf("publish error = %v, want ErrRejected", err)
	}
	if len(fake.published) != 2 {
		t.Errorf("published = %v", fake.published)
	}
}

func TestInstall_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/install/MyPkg/latest" {
			_, _ = io.WriteString(w, "not found")
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="MyPkg_1"`)
		_, _ = io.WriteString(w, "begin skip end")
	}))
	defer srv.Close()

	cfg := Config{Dir: t.TempDir(), API: srv.URL + "/api/"}
	if _, err := run(t, cfg, "init"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, cfg, "install", "MyPkg"); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := run(t, cfg, "install", "Other"); !errors.Is(err, client.ErrPackageNotFound) {
		t.Errorf("install Other error = %v", err)
	}
}
