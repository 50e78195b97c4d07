package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DefaultPrefix is the top-level directory npm pack writes entries under.
const DefaultPrefix = "package"

// ErrArchiveMismatch is returned when the archive and the tree disagree.
var ErrArchiveMismatch = errors.New("archive does not match package tree")

// ManifestName is the package manifest at the archive root. npm pack may
// normalise it, so its size is not compared.
const ManifestName = "package.json"

// Listing maps slash-separated paths relative to the package root to file sizes.
type Listing map[string]int64

// ReadListing returns the regular files stored in a gzip tarball under prefix.
func ReadListing(archivePath, prefix string) (Listing, error) {
	f, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read gzip header: %w", err)
	}

	defer func() {
		_ = zr.Close()
	}()

	var (
		tr      = tar.NewReader(zr)
		listing = make(Listing)
		root    = strings.Trim(prefix, "/") + "/"
	)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Clean(strings.TrimPrefix(hdr.Name, "./"))
		if !strings.HasPrefix(name, root) {
			return nil, fmt.Errorf("%s outside %s: %w", hdr.Name, root, ErrArchiveMismatch)
		}

		listing[strings.TrimPrefix(name, root)] = hdr.Size
	}

	return listing, nil
}

// ListTree returns the regular files under root.
func ListTree(root string) (Listing, error) {
	listing := make(Listing)

	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		listing[filepath.ToSlash(rel)] = info.Size()

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	return listing, nil
}

// VerifyTree checks that every regular file the archive holds under prefix
// exists in root with the same size. Files of root the archive leaves out are
// returned, sorted, without failing: the pack tool applies its own ignore rules
// (.npmignore, the manifest's "files" list, lockfiles) that decide what ships.
func VerifyTree(archivePath, root, prefix string) ([]string, error) {
	packed, err := ReadListing(archivePath, prefix)
	if err != nil {
		return nil, err
	}

	tree, err := ListTree(root)
	if err != nil {
		return nil, err
	}

	problems := Diff(tree, packed)
	omitted := Omitted(tree, packed)

	if len(problems) == 0 {
		return omitted, nil
	}

	return omitted, fmt.Errorf("%w: %s", ErrArchiveMismatch, strings.Join(problems, "; "))
}

// Diff describes, in sorted order, every file of got that is absent from want
// or differs in size. The root manifest is only required to exist.
func Diff(want, got Listing) []string {
	var problems []string

	for name, packedSize := range got {
		size, ok := want[name]

		switch {
		case !ok:
			problems = append(problems, "unexpected "+name)
		case name == ManifestName:
		case packedSize != size:
			problems = append(problems, fmt.Sprintf("size of %s is %d, want %d", name, packedSize, size))
		}
	}

	sort.Strings(problems)

	return problems
}

// Omitted returns the files of tree that packed does not hold, sorted.
func Omitted(tree, packed Listing) []string {
	var omitted []string

	for name := range tree {
		if _, ok := packed[name]; !ok {
			omitted = append(omitted, name)
		}
	}

	sort.Strings(omitted)

	return omitted
}
