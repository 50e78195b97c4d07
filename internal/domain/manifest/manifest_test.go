package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "package.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

// TestRead extracts name and version and ignores the other fields.
func TestRead(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `{
  "name": "zone.js",
  "version": "0.15.1",
  "main": "./bundles/zone.umd.js",
  "dependencies": {"tslib": "^2.3.0"}
}`)

	m, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, &Manifest{Name: "zone.js", Version: "0.15.1"}, m)
}

// TestReadErrors covers missing files, bad JSON and missing fields.
func TestReadErrors(t *testing.T) {
	t.Parallel()

	_, err := Read(filepath.Join(t.TempDir(), "package.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Read(writeManifest(t, `{"name": `))
	require.Error(t, err)

	_, err = Read(writeManifest(t, `{"version": "1.0.0"}`))
	require.ErrorIs(t, err, ErrNameMissing)

	_, err = Read(writeManifest(t, `{"name": "zone.js", "version": " "}`))
	require.ErrorIs(t, err, ErrVersionMissing)
}

// TestArchiveFilename follows npm pack naming, including scoped packages.
func TestArchiveFilename(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"zone.js":       "zone.js-0.15.1.tgz",
		"@angular/core": "angular-core-0.15.1.tgz",
		"@scope/a/b":    "scope-a-b-0.15.1.tgz",
	}
	for name, want := range cases {
		m := &Manifest{Name: name, Version: "0.15.1"}
		require.Equal(t, want, m.ArchiveFilename(".tgz"))
	}

	require.Equal(t, "zone.js.tgz", FixedFilename("zone.js", ".tgz"))
}
