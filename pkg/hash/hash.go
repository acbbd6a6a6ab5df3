// Package hash computes a content identifier for a directory tree, such as a
// project's binder directory. Two trees with the same relative paths and file
// contents always hash to the same value.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/rdmstage/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Dir returns the hex encoded sha256 hash of the tree rooted at `root`.
// Every path in the tree is hashed first, followed by the contents of each
// file, both in sorted order.
func Dir(root string) (string, error) {
	var paths []string
	isFile := map[string]bool{}
	err := afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk")
		}

		if path == root {
			return nil
		}

		relativePath, err := filepath.Rel(root, path)
		if err != nil {
			return errors.WithContext(err, "normalized path")
		}
		relativePath = filepath.ToSlash(relativePath)

		// Walk doesn't follow links, but a linked file's contents are
		// still part of the tree.
		if fi.Mode()&os.ModeSymlink != 0 {
			if target, err := fs.Stat(path); err == nil {
				fi = target
			}
		}

		paths = append(paths, relativePath)
		isFile[relativePath] = fi.Mode().IsRegular()
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(paths)

	hasher := sha256.New()
	for _, path := range paths {
		fmt.Fprintf(hasher, "PATH:%s\n", path)
	}

	for _, path := range paths {
		if !isFile[path] {
			continue
		}

		fmt.Fprintf(hasher, "CONTENT:%s\n", path)
		if err := hashFile(hasher, filepath.Join(root, filepath.FromSlash(path))); err != nil {
			return "", errors.WithContext(err, fmt.Sprintf("hash %q", path))
		}
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	log.WithFields(log.Fields{"path": root, "hash": sum}).Debug("Computed directory hash")
	return sum, nil
}

func hashFile(w io.Writer, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return errors.WithContext(err, "open")
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return errors.WithContext(err, "read")
	}
	return nil
}

// Files returns the hex encoded sha256 hash of the contents of `paths`.
// Missing paths are part of the hash, so creating or removing one of them
// changes it.
func Files(paths []string) (string, error) {
	hasher := sha256.New()
	for _, path := range paths {
		fi, err := fs.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			fmt.Fprintf(hasher, "MISSING:%s\n", path)
			continue
		case err != nil:
			return "", errors.WithContext(err, "stat")
		case fi.IsDir():
			fmt.Fprintf(hasher, "DIR:%s\n", path)
			continue
		}

		fmt.Fprintf(hasher, "CONTENT:%s:%d\n", path, fi.Size())
		if err := hashFile(hasher, path); err != nil {
			return "", errors.WithContext(err, fmt.Sprintf("hash %q", path))
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
