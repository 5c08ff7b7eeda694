package bundle

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cellprofiler/cpbuild/internal/paths"
)

// Copies a file or directory tree from src to dest.
//
// Directories are created as needed. Regular files keep their permission
// bits; symbolic links are recreated with the same target. Existing files at
// the destination are overwritten.
func CopyTree(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return copyEntry(src, dest, info)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyEntry(path, filepath.Join(dest, relPath), info)
	})
}

// Copies a single file, directory or symlink entry.
func copyEntry(src, dest string, info fs.FileInfo) error {
	switch {
	case info.IsDir():
		return os.MkdirAll(dest, paths.DefaultDirMode)

	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
			return err
		}
		os.Remove(dest)
		return os.Symlink(target, dest)

	case info.Mode().IsRegular():
		return copyFile(src, dest, info.Mode().Perm())

	default:
		slog.Debug("skipping special file", "path", src, "mode", info.Mode())
		return nil
	}
}

// Copies a regular file, creating the parent directory.
func copyFile(src, dest string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
