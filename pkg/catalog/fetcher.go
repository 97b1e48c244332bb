package catalog

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/types"
)

// FetcherOptions tunes download behavior.
type FetcherOptions struct {
	// Timeout bounds a single download attempt.
	Timeout time.Duration

	// Retries is how many times a failed attempt is repeated before the
	// addon is given up for this run.
	Retries int

	// Backoff is the base delay between attempts, doubled each retry.
	Backoff time.Duration
}

// HTTPFetcher downloads candidate archives over HTTP and unpacks them
// into per-fetch staging directories. Staging lives outside both the
// live and cache trees, so a failed fetch never touches either.
//
// The fetcher works on the real filesystem: zip extraction needs random
// access to a file on disk.
type HTTPFetcher struct {
	client  *http.Client
	staging string
	opts    FetcherOptions
	logger  zerolog.Logger
}

// NewFetcher creates a fetcher staging into stagingDir.
func NewFetcher(client *http.Client, stagingDir string, opts FetcherOptions) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &HTTPFetcher{
		client:  client,
		staging: stagingDir,
		opts:    opts,
		logger:  logging.GetLogger("fetcher"),
	}
}

// Fetch downloads cand's archive, unpacks it, and returns the unpacked
// root folder for the named addon. The staged result has passed the
// integrity check: the archive was non-empty and contains an addon root
// folder (a directory with a matching .toc).
func (f *HTTPFetcher) Fetch(ctx context.Context, cand types.Candidate, name string) (string, error) {
	if err := os.MkdirAll(f.staging, 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "create staging directory %s", f.staging)
	}

	archive, err := f.download(ctx, cand.Source)
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(archive) }()

	dest, err := os.MkdirTemp(f.staging, sanitize(name)+"-")
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "create staging directory for %s", name)
	}

	if err := unzip(archive, dest); err != nil {
		_ = os.RemoveAll(dest)
		return "", err
	}

	root, err := findAddonRoot(dest, name)
	if err != nil {
		_ = os.RemoveAll(dest)
		return "", err
	}

	f.logger.Debug().Str("addon", name).Str("staged", root).Msg("Addon fetched and staged")
	return root, nil
}

// download retrieves url to a temporary file, retrying with exponential
// backoff. Each attempt carries its own timeout so no fetch blocks
// indefinitely.
func (f *HTTPFetcher) download(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= f.opts.Retries; attempt++ {
		if attempt > 0 {
			delay := f.opts.Backoff << (attempt - 1)
			f.logger.Debug().
				Str("url", url).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying download")
			select {
			case <-ctx.Done():
				return "", errors.Wrap(ctx.Err(), errors.ErrFetchFailed, "download cancelled")
			case <-time.After(delay):
			}
		}

		path, err := f.attempt(ctx, url)
		if err == nil {
			return path, nil
		}
		lastErr = err
		f.logger.Warn().Err(err).Str("url", url).Int("attempt", attempt+1).Msg("Download attempt failed")

		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Wrapf(lastErr, errors.ErrFetchFailed,
		"download of %s failed after %d attempts", url, f.opts.Retries+1)
}

func (f *HTTPFetcher) attempt(ctx context.Context, url string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrInternal, "build request for %s", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrNetwork, "fetch %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", errors.Newf(errors.ErrNotFound, "fetch %s: not found", url)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf(errors.ErrNetwork, "fetch %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(f.staging, "download-*.zip")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrFileAccess, "create download file")
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", errors.Wrapf(err, errors.ErrNetwork, "read body of %s", url)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", errors.Wrap(err, errors.ErrFileAccess, "finish download file")
	}
	return tmp.Name(), nil
}

// unzip extracts archive into dest, rejecting entries that would escape
// it.
func unzip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return errors.Wrap(err, errors.ErrIntegrityCheckFailed, "archive is not a valid zip")
	}
	defer func() { _ = r.Close() }()

	if len(r.File) == 0 {
		return errors.New(errors.ErrIntegrityCheckFailed, "archive is empty")
	}

	for _, file := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(file.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return errors.Newf(errors.ErrIntegrityCheckFailed, "archive entry %q escapes staging", file.Name)
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "extract %s", file.Name)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "extract %s", file.Name)
		}
		if err := extractFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return errors.Wrapf(err, errors.ErrIntegrityCheckFailed, "open archive entry %s", file.Name)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, file.Mode().Perm()|0600)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "create extracted file %s", target)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "write extracted file %s", target)
	}
	return nil
}

// findAddonRoot locates the unpacked folder for name: a directory whose
// name matches case-insensitively and which contains its own .toc file.
func findAddonRoot(dest, name string) (string, error) {
	var found string
	err := filepath.WalkDir(dest, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if !strings.EqualFold(d.Name(), name) {
			return nil
		}
		toc := filepath.Join(path, d.Name()+".toc")
		if _, statErr := os.Stat(toc); statErr == nil {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrIntegrityCheckFailed, "inspect staged archive for %s", name)
	}
	if found == "" {
		return "", errors.Newf(errors.ErrIntegrityCheckFailed,
			"archive does not contain an addon root folder for %q", name)
	}
	return found, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

var _ types.Fetcher = (*HTTPFetcher)(nil)
var _ types.Resolver = (*MultiResolver)(nil)
