package bundle

import (
	"archive/tar"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cellprofiler/cpbuild/internal/paths"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"lukechampine.com/blake3"
)

// Compression applied to a bundle archive.
type Format string

const (
	TarGz  Format = "tar.gz"
	TarXz  Format = "tar.xz"
	TarZst Format = "tar.zst"
)

// Suffix of the checksum file written next to an archive.
const ChecksumSuffix = ".b3"

// Parses an archive format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(s), ".")); f {
	case TarGz, TarXz, TarZst:
		return f, nil
	case "tgz":
		return TarGz, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrArchiveFormat, s)
	}
}

// Result of [Archive].
type ArchiveResult struct {
	Path     string // Archive file.
	Checksum string // Hex BLAKE3-256 of the archive.
	SumPath  string // Checksum file.
}

// Packs bundleDir into "<dest>.<format>" and writes a BLAKE3 checksum file
// next to it.
//
// Entries are stored under the bundle directory's base name. The checksum
// file has the "<hex>  <file name>" layout b3sum reads.
func Archive(bundleDir, dest string, format Format) (*ArchiveResult, error) {
	path := dest + "." + string(format)
	if err := os.MkdirAll(filepath.Dir(path), paths.DefaultDirMode); err != nil {
		return nil, err
	}

	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	hasher := blake3.New(32, nil)
	err = writeArchive(io.MultiWriter(fh, hasher), bundleDir, format)
	if closeErr := fh.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("archive %s: %w", bundleDir, err)
	}

	res := &ArchiveResult{
		Path:     path,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
		SumPath:  path + ChecksumSuffix,
	}
	line := fmt.Sprintf("%s  %s\n", res.Checksum, filepath.Base(path))
	if err := os.WriteFile(res.SumPath, []byte(line), paths.DefaultFileMode); err != nil {
		return nil, err
	}

	slog.Info("bundle archived", "path", path, "blake3", res.Checksum)
	return res, nil
}

// Streams the tar of dir through the compressor for format into w.
func writeArchive(w io.Writer, dir string, format Format) error {
	var zw io.WriteCloser
	switch format {
	case TarGz:
		zw = pgzip.NewWriter(w)
	case TarXz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return err
		}
		zw = xw
	case TarZst:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		zw = enc
	default:
		return fmt.Errorf("%w: %q", ErrArchiveFormat, format)
	}

	tw := tar.NewWriter(zw)
	if err := writeDirToTar(tw, dir, filepath.Base(dir)); err != nil {
		tw.Close()
		zw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Writes a directory tree to a tar writer rooted at the given archive prefix.
func writeDirToTar(tw *tar.Writer, hostDir, prefix string) error {
	return filepath.WalkDir(hostDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}

		archivePath := filepath.ToSlash(filepath.Join(prefix, relPath))
		return writeTarEntry(tw, path, archivePath, d)
	})
}

// Writes a single file, directory or symlink entry to a tar writer.
func writeTarEntry(tw *tar.Writer, hostPath, archivePath string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(hostPath); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	header.Name = archivePath
	if info.IsDir() {
		header.Name += "/"
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}
