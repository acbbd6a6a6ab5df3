package stage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/rdmstage/pkg/errors"
)

// copyDir recursively copies the contents of the remote directory `src` into
// the local directory `dst`. Files that already exist in `dst` are
// overwritten.
func copyDir(remote afero.Fs, src, dst string) error {
	return afero.Walk(remote, src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk")
		}

		relativePath, err := filepath.Rel(src, path)
		if err != nil {
			return errors.WithContext(err, "normalize path")
		}
		if strings.HasPrefix(relativePath, "..") {
			// This shouldn't happen because `path` is always a child of `src`.
			return errors.New("walked outside of the source directory")
		}
		dstPath := filepath.Join(dst, relativePath)

		switch {
		case fi.IsDir():
			// A link left at dstPath by an earlier operation is replaced
			// rather than copied through.
			if relativePath != "." {
				if err := removeLink(dstPath); err != nil {
					return err
				}
			}
			if err := fs.MkdirAll(dstPath, fi.Mode().Perm()|0700); err != nil {
				return errors.WithContext(err, "make directory")
			}
			return nil
		case fi.Mode()&os.ModeSymlink != 0:
			return copySymlink(remote, path, dstPath)
		default:
			return copyFile(remote, path, dstPath)
		}
	})
}

// copyFile copies the remote file `src` to the local path `dst`, preserving
// its mode and modification time.
func copyFile(remote afero.Fs, src, dst string) error {
	dstParent := filepath.Dir(dst)
	dstParentExists, err := afero.DirExists(fs, dstParent)
	if err != nil {
		return errors.WithContext(err, "check if parent exists")
	}

	if !dstParentExists {
		if err := fs.MkdirAll(dstParent, 0755); err != nil {
			return errors.WithContext(err, "make parent")
		}
	}

	srcFile, err := remote.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	// Remove any existing file first so that read-only files left by an
	// earlier operation don't block the write.
	if err := fs.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.WithContext(err, "remove old file")
	}

	dstFile, err := fs.Create(dst)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return errors.WithContext(err, "copy")
	}

	if err := fs.Chmod(dst, fileInfo.Mode()); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	// Change the modification time as the last step so that it doesn't get
	// reset by other file operations.
	if err := fs.Chtimes(dst, time.Now(), fileInfo.ModTime()); err != nil {
		return errors.WithContext(err, "set file modtime")
	}
	return nil
}

// copySymlink recreates a symlink found inside a copied directory. Links are
// copied as links rather than followed.
func copySymlink(remote afero.Fs, src, dst string) error {
	reader, ok := remote.(afero.LinkReader)
	linker, linkerOk := fs.(afero.Linker)
	if !ok || !linkerOk {
		log.WithField("path", src).Warn("Skipping symbolic link. " +
			"The filesystem does not support symbolic links.")
		return nil
	}

	linkTarget, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return errors.WithContext(err, "read link")
	}

	if err := fs.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.WithContext(err, "remove old link")
	}

	if err := linker.SymlinkIfPossible(linkTarget, dst); err != nil {
		return errors.WithContext(err, "symlink")
	}
	return nil
}

// removeLink removes `path` if it's a symlink, leaving what it points to
// untouched.
func removeLink(path string) error {
	lstater, ok := fs.(afero.Lstater)
	if !ok {
		return nil
	}

	fi, _, err := lstater.LstatIfPossible(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.WithContext(err, "stat")
	}

	if fi.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	if err := fs.Remove(path); err != nil {
		return errors.WithContext(err, "remove link")
	}
	return nil
}
