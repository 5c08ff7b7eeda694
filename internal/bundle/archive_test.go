package bundle

import (
	"archive/tar"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"lukechampine.com/blake3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "tar.gz", want: TarGz},
		{in: ".TAR.XZ", want: TarXz},
		{in: "tgz", want: TarGz},
		{in: "tar.zst", want: TarZst},
		{in: "zip", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrArchiveFormat) {
				t.Errorf("ParseFormat(%q) err = %v, want ErrArchiveFormat", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
}

func decompress(t *testing.T, r io.Reader, format Format) io.Reader {
	t.Helper()
	switch format {
	case TarGz:
		zr, err := pgzip.NewReader(r)
		if err != nil {
			t.Fatal(err)
		}
		return zr
	case TarXz:
		zr, err := xz.NewReader(r)
		if err != nil {
			t.Fatal(err)
		}
		return zr
	case TarZst:
		zr, err := zstd.NewReader(r)
		if err != nil {
			t.Fatal(err)
		}
		return zr
	}
	t.Fatalf("unknown format %q", format)
	return nil
}

func TestArchive(t *testing.T) {
	bundleDir := filepath.Join(t.TempDir(), "CellProfiler")
	writeFiles(t, bundleDir, "CellProfiler.exe", "artwork/splash.png", "libzmq.pyd")

	for _, format := range []Format{TarGz, TarXz, TarZst} {
		t.Run(string(format), func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "CellProfiler-2.2.0")

			res, err := Archive(bundleDir, dest, format)
			if err != nil {
				t.Fatalf("Archive: %v", err)
			}
			if res.Path != dest+"."+string(format) {
				t.Fatalf("path = %q", res.Path)
			}

			data, err := os.ReadFile(res.Path)
			if err != nil {
				t.Fatal(err)
			}
			sum := blake3.Sum256(data)
			if res.Checksum != hex.EncodeToString(sum[:]) {
				t.Fatalf("checksum = %s, want %x", res.Checksum, sum)
			}
			line, _ := os.ReadFile(res.SumPath)
			if want := res.Checksum + "  " + filepath.Base(res.Path) + "\n"; string(line) != want {
				t.Fatalf("checksum file = %q, want %q", line, want)
			}

			fh, _ := os.Open(res.Path)
			defer fh.Close()
			tr := tar.NewReader(decompress(t, fh, format))

			var names []string
			for {
				hdr, err := tr.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("read archive: %v", err)
				}
				if hdr.Typeflag == tar.TypeReg {
					names = append(names, hdr.Name)
				}
				if !strings.HasPrefix(hdr.Name, "CellProfiler/") {
					t.Fatalf("entry %q not under bundle name", hdr.Name)
				}
			}
			sort.Strings(names)

			want := []string{"CellProfiler/CellProfiler.exe", "CellProfiler/artwork/splash.png", "CellProfiler/libzmq.pyd"}
			if diff := cmp.Diff(want, names); diff != "" {
				t.Fatalf("entries (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, "a/b/c.txt", "d.txt")
	dest := filepath.Join(t.TempDir(), "out")

	if err := CopyTree(src, dest); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	for _, rel := range []string{"a/b/c.txt", "d.txt"} {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		if err != nil || string(got) != rel {
			t.Fatalf("%s = %q, %v", rel, got, err)
		}
	}
}
