package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrVersionMissing is returned for manifests without a version field.
	ErrVersionMissing = errors.New("manifest has no version")
	// ErrNameMissing is returned for manifests without a name field.
	ErrNameMissing = errors.New("manifest has no name")
)

// Manifest is the subset of package.json used to locate the packed archive.
type Manifest struct {
	// Name is the npm package name, possibly scoped (@scope/name).
	Name string `json:"name"`
	// Version is the semantic version written into the archive filename.
	Version string `json:"version"`
}

// Read parses the manifest at path.
func Read(path string) (*Manifest, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err = json.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}

	m.Name = strings.TrimSpace(m.Name)
	m.Version = strings.TrimSpace(m.Version)

	if m.Name == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrNameMissing)
	}

	if m.Version == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrVersionMissing)
	}

	return &m, nil
}

// ArchiveFilename returns the name npm pack gives the archive:
// "@scope/name" becomes "scope-name", followed by "-<version><ext>".
func (m *Manifest) ArchiveFilename(ext string) string {
	name := strings.TrimPrefix(m.Name, "@")
	name = strings.ReplaceAll(name, "/", "-")

	return name + "-" + m.Version + ext
}

// FixedFilename is the version-free archive name placed under the destination.
func FixedFilename(packageName, ext string) string {
	return packageName + ext
}
