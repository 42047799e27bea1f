// Package project manages a vibranium project on disk: the vibranium.toml
// manifest and the .installed_packages directory with its package.directory
// index of installed archives.
package project

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	ManifestFile   = "vibranium.toml"
	PackagesDir    = ".installed_packages"
	DirectoryFile  = "package.directory"
	EntrypointFile = "main.wacc"

	// Latest asks the server for the newest upload.
	Latest = "latest"
)

const entrypointSource = "begin\nskip\nend"

var (
	// ErrNotInitialised means the project has no package directory.
	ErrNotInitialised = errors.New("project: package directory not found, has the project been initialised?")

	// ErrNoManifest means the project has no vibranium.toml.
	ErrNoManifest = errors.New("project: " + ManifestFile + " not found")

	// ErrInvalidName rejects package names that are not usable as file names.
	ErrInvalidName = errors.New("project: invalid package name")
)

// Settings is the [settings] table of the manifest.
type Settings struct {
	Entrypoint string `toml:"entrypoint"`
	OutputDir  string `toml:"output_dir"`
}

// Manifest is vibranium.toml. Dependencies maps package name to version.
type Manifest struct {
	Settings     Settings          `toml:"settings"`
	Dependencies map[string]string `toml:"dependencies"`
}

// Package is one entry of package.directory.
type Package struct {
	Version string `toml:"version"`
	Path    string `toml:"path"`
}

// Project is a vibranium project rooted at Dir.
type Project struct {
	Dir string
}

// Open returns the project rooted at dir. Nothing is read until needed.
func Open(dir string) *Project {
	return &Project{Dir: dir}
}

// Init lays out a new project. Existing files are left alone; reinit
// reports true when the package directory was already there.
func (p *Project) Init() (reinit bool, err error) {
	pkgDir := filepath.Join(p.Dir, PackagesDir)
	if err := os.Mkdir(pkgDir, 0o755); err != nil {
		if !errors.Is(err, os.ErrExist) {
			return false, fmt.Errorf("create package directory: %w", err)
		}
		reinit = true
	}

	if err := writeIfMissing(filepath.Join(pkgDir, DirectoryFile), nil); err != nil {
		return reinit, err
	}
	if err := writeIfMissing(filepath.Join(p.Dir, EntrypointFile), []byte(entrypointSource)); err != nil {
		return reinit, err
	}

	m := Manifest{
		Settings:     Settings{Entrypoint: EntrypointFile, OutputDir: "out"},
		Dependencies: map[string]string{},
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return reinit, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeIfMissing(filepath.Join(p.Dir, ManifestFile), data); err != nil {
		return reinit, err
	}
	return reinit, nil
}

func writeIfMissing(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(name), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(name), err)
	}
	return f.Close()
}

// LoadManifest reads vibranium.toml.
func (p *Project) LoadManifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(p.Dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Dependencies == nil {
		m.Dependencies = make(map[string]string)
	}
	return &m, nil
}

func (p *Project) saveManifest(m *Manifest) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.Dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// SaveDependency records name at version in the manifest.
func (p *Project) SaveDependency(name, version string) error {
	m, err := p.LoadManifest()
	if err != nil {
		return err
	}
	m.Dependencies[name] = version
	return p.saveManifest(m)
}

// DropDependency removes name from the manifest. Unknown names are ignored.
func (p *Project) DropDependency(name string) error {
	m, err := p.LoadManifest()
	if err != nil {
		return err
	}
	if _, ok := m.Dependencies[name]; !ok {
		return nil
	}
	delete(m.Dependencies, name)
	return p.saveManifest(m)
}

func (p *Project) directoryPath() string {
	return filepath.Join(p.Dir, PackagesDir, DirectoryFile)
}

func (p *Project) loadDirectory() (map[string]Package, error) {
	data, err := os.ReadFile(p.directoryPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotInitialised
		}
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}
	dir := make(map[string]Package)
	if err := toml.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("failed to parse package directory: %w", err)
	}
	return dir, nil
}

func (p *Project) saveDirectory(dir map[string]Package) error {
	data, err := toml.Marshal(dir)
	if err != nil {
		return fmt.Errorf("failed to marshal package directory: %w", err)
	}
	if err := os.WriteFile(p.directoryPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write package directory: %w", err)
	}
	return nil
}

// Installed looks name up in package.directory.
func (p *Project) Installed(name string) (Package, bool, error) {
	dir, err := p.loadDirectory()
	if err != nil {
		return Package{}, false, err
	}
	pkg, ok := dir[name]
	return pkg, ok, nil
}

// ArchivePath is where the archive for name is written, relative to Dir.
func ArchivePath(name string) string {
	return path.Join(PackagesDir, name+".wacc")
}

// WriteArchive stores data as the installed archive of name and returns
// its path relative to Dir.
func (p *Project) WriteArchive(name string, data []byte) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(p.Dir, PackagesDir)); err != nil {
		return "", ErrNotInitialised
	}
	rel := ArchivePath(name)
	if err := os.WriteFile(filepath.Join(p.Dir, filepath.FromSlash(rel)), data, 0o644); err != nil {
		return "", fmt.Errorf("write archive %s: %w", name, err)
	}
	return rel, nil
}

// Record notes that name is installed at version from the archive at
// archivePath.
func (p *Project) Record(name, version, archivePath string) error {
	dir, err := p.loadDirectory()
	if err != nil {
		return err
	}
	dir[name] = Package{Version: version, Path: archivePath}
	return p.saveDirectory(dir)
}

// Forget removes name from package.directory and deletes its archive. It
// reports whether the package was installed.
func (p *Project) Forget(name string) (bool, error) {
	dir, err := p.loadDirectory()
	if err != nil {
		return false, err
	}
	pkg, ok := dir[name]
	if !ok {
		return false, nil
	}
	delete(dir, name)
	if err := p.saveDirectory(dir); err != nil {
		return true, err
	}
	if pkg.Path != "" {
		err := os.Remove(filepath.Join(p.Dir, filepath.FromSlash(pkg.Path)))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return true, fmt.Errorf("remove archive %s: %w", name, err)
		}
	}
	return true, nil
}

// ValidateName rejects names that would escape the package directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`+"\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ParseRef splits "name==version". A bare name means the latest version.
func ParseRef(ref string) (name, version string, err error) {
	name, version, found := strings.Cut(ref, "==")
	if !found || version == "" {
		version = Latest
	}
	if err := ValidateName(name); err != nil {
		return "", "", err
	}
	return name, version, nil
}
