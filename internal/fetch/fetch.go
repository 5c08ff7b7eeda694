package fetch

import (
	"context"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cellprofiler/cpbuild/internal/paths"
	"github.com/opencontainers/go-digest"
)

const (

	// Release asset URL; every "{tag}" is replaced by the version.
	DefaultURLTemplate = "https://github.com/CellProfiler/prokaryote/releases/download/{tag}/prokaryote-{tag}.jar"

	// Directory under the output root holding the dependency.
	DefaultNamespace = "imagej"

	// Artifact base name; the cached file is "<artifact>-<version>.jar".
	DefaultArtifact = "prokaryote"

	// Name of the classpath manifest written next to the artifact.
	DefaultClasspathFile = "cellprofiler-java-dependencies-classpath.txt"

	// Subdirectory of the namespace directory holding JARs.
	jarsDir = "jars"

	// Transfer chunk size. Progress is reported once per chunk.
	ChunkSize = 32 * 1024

	// Suffix of the in-flight download file.
	partSuffix = ".part"
)

// Reports transfer progress. Called once per chunk with the bytes written so
// far and the expected total, or -1 when the server sent no length. It runs
// on the transfer goroutine and must return promptly.
type ProgressFunc func(written, total int64)

// Controls where the dependency comes from and where it is cached.
type Options struct {
	URLTemplate   string        // Defaults to [DefaultURLTemplate].
	Namespace     string        // Defaults to [DefaultNamespace].
	Artifact      string        // Defaults to [DefaultArtifact].
	ClasspathFile string        // Defaults to [DefaultClasspathFile].
	Digest        digest.Digest // Verified against freshly downloaded bytes when set.
	Progress      ProgressFunc  // Optional.
}

// A versioned artifact cached on disk.
type CachedDownload struct {
	URL       string // Source URL.
	Version   string // Version tag.
	Path      string // Absolute path of the cached artifact.
	Size      int64  // Expected size from the transfer, -1 when unknown or cached.
	Cached    bool   // Whether the artifact was already present.
	Classpath string // Absolute path of the classpath manifest.
}

// Reports whether the artifact file exists.
//
// Existence is the only completion marker: a file left behind by an
// interrupted transfer outside this package counts as complete.
func (d *CachedDownload) Complete() bool {
	_, err := os.Stat(d.Path)
	return err == nil
}

// Retrieves a versioned binary dependency over HTTP and caches it on disk.
type Fetcher struct {
	client *http.Client
	opts   Options
}

// Creates a [Fetcher]. A nil client uses [NewHTTPClient].
func New(client *http.Client, opts Options) *Fetcher {
	if client == nil {
		client = NewHTTPClient()
	}
	if opts.URLTemplate == "" {
		opts.URLTemplate = DefaultURLTemplate
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.Artifact == "" {
		opts.Artifact = DefaultArtifact
	}
	if opts.ClasspathFile == "" {
		opts.ClasspathFile = DefaultClasspathFile
	}
	return &Fetcher{client: client, opts: opts}
}

// Creates the HTTP client used for dependency downloads.
//
// Only the transport enforces time limits; the transfer itself may take as
// long as the artifact needs.
func NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSHandshakeTimeout = 30 * time.Second
	return &http.Client{Transport: transport}
}

// Returns the options with defaults filled in.
func (f *Fetcher) Options() Options {
	return f.opts
}

// Returns the download URL for version.
func (f *Fetcher) URL(version string) string {
	return strings.ReplaceAll(f.opts.URLTemplate, "{tag}", version)
}

// Returns the directory holding the dependency under root.
func (f *Fetcher) Dir(root string) string {
	return filepath.Join(root, f.opts.Namespace, jarsDir)
}

// Ensures the dependency for version is cached under root.
//
// When the artifact already exists no request is made. Otherwise the body is
// streamed in [ChunkSize] chunks to a temporary file that is renamed into
// place once the transfer succeeds. In both cases the classpath manifest is
// written if it does not exist yet. Fails with [ErrMissingVersion] before any
// network access when version is empty, with [ErrInvalidVersion] when it
// contains a path separator or "..", and with [DownloadError] when the
// transfer fails. Nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context, version, root string) (*CachedDownload, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, ErrMissingVersion
	}
	if strings.ContainsAny(version, `/\`) || strings.Contains(version, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}

	dir, err := filepath.Abs(f.Dir(root))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create dependency directory: %w", err)
	}

	dl := &CachedDownload{
		URL:       f.URL(version),
		Version:   version,
		Path:      filepath.Join(dir, fmt.Sprintf("%s-%s.jar", f.opts.Artifact, version)),
		Size:      -1,
		Classpath: filepath.Join(dir, f.opts.ClasspathFile),
	}

	if dl.Complete() {
		slog.Debug("dependency already cached", "path", dl.Path)
		dl.Cached = true
	} else {
		slog.Info("downloading dependency", "url", dl.URL, "path", dl.Path)
		if err := f.download(ctx, dl); err != nil {
			return nil, err
		}
	}

	if err := writeClasspath(dl.Classpath, dl.Path); err != nil {
		return nil, err
	}

	return dl, nil
}

// Streams dl.URL into dl.Path.
func (f *Fetcher) download(ctx context.Context, dl *CachedDownload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.URL, nil)
	if err != nil {
		return &DownloadError{URL: dl.URL, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &DownloadError{URL: dl.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DownloadError{URL: dl.URL, Status: resp.StatusCode}
	}
	dl.Size = resp.ContentLength

	part := dl.Path + partSuffix
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create %s: %w", part, err)
	}

	written, err := f.copyChunks(out, resp.Body, dl.Size)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && dl.Size >= 0 && written != dl.Size {
		err = fmt.Errorf("received %d of %d bytes", written, dl.Size)
	}
	if err == nil && f.opts.Digest != "" {
		err = verify(part, f.opts.Digest)
	}
	if err != nil {
		os.Remove(part)
		return &DownloadError{URL: dl.URL, Err: err}
	}

	if err := os.Rename(part, dl.Path); err != nil {
		os.Remove(part)
		return fmt.Errorf("move download into place: %w", err)
	}

	slog.Debug("dependency downloaded", "path", dl.Path, "bytes", written)
	return nil
}

// Copies r to w chunk by chunk, reporting progress after each chunk.
func (f *Fetcher) copyChunks(w *os.File, r io.Reader, total int64) (int64, error) {
	buf := make([]byte, ChunkSize)
	var written int64

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if f.opts.Progress != nil {
				f.opts.Progress(written, total)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// Checks the file at path against the expected digest.
func verify(path string, expected digest.Digest) error {
	if err := expected.Validate(); err != nil {
		return err
	}

	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	actual, err := expected.Algorithm().FromReader(fh)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: got %s, want %s", ErrDigestMismatch, actual, expected)
	}
	return nil
}

// Writes the classpath manifest unless it already exists.
func writeClasspath(manifest, artifact string) error {
	if _, err := os.Stat(manifest); err == nil {
		return nil
	}
	if err := os.WriteFile(manifest, []byte(artifact), paths.DefaultFileMode); err != nil {
		return fmt.Errorf("write classpath manifest: %w", err)
	}
	slog.Debug("classpath manifest written", "path", manifest)
	return nil
}

// Returns the artifact paths recorded in the classpath manifest under root.
func ReadClasspath(root string, opts Options) ([]string, error) {
	f := New(nil, opts)
	data, err := os.ReadFile(filepath.Join(f.Dir(root), f.opts.ClasspathFile))
	if err != nil {
		return nil, err
	}

	var entries []string
	for _, line := range strings.FieldsFunc(string(data), func(r rune) bool {
		return r == '\n' || r == '\r' || r == os.PathListSeparator
	}) {
		if line = strings.TrimSpace(line); line != "" {
			entries = append(entries, line)
		}
	}
	return entries, nil
}
