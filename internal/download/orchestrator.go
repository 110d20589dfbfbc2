// Package download implements the client-side forced-download flow: fetch
// the rendered asset as binary, materialise a transient local reference,
// trigger a save with a suggested filename, and guarantee the reference is
// released exactly once. If the fetch path fails the orchestrator falls back
// to direct navigation and lets the server drive the transfer.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipvault/backend/internal/logging"
)

// DefaultReleaseDelay gives the save action time to open the local reference
// before it is invalidated.
const DefaultReleaseDelay = 100 * time.Millisecond

// Fetcher retrieves a remote resource as a binary stream.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Saver triggers the user-facing save action for a local reference.
type Saver interface {
	Save(ctx context.Context, path, suggestedName string) error
}

// Opener is the fallback: hand the URL to a new browsing context and let the
// remote end serve the transfer without forced-filename semantics.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// HTTPFetcher fetches over plain HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch issues a GET and returns the response body on a 200.
func (f HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	return resp.Body, nil
}

// Orchestrator runs best-effort downloads. Zero value fields fall back to
// sane defaults; only Saver is required for the forced-save path.
type Orchestrator struct {
	Fetcher Fetcher
	Saver   Saver
	Opener  Opener

	// Dir receives the transient local files. Defaults to the OS temp dir.
	Dir string
	// ReleaseDelay is how long after triggering the save the local
	// reference lives. Defaults to DefaultReleaseDelay.
	ReleaseDelay time.Duration

	// releaseFunc removes the local reference; swappable in tests to count
	// release calls.
	releaseFunc func(path string)
}

// session is one download's transient state: at most one local reference,
// released exactly once.
type session struct {
	path    string
	release func(path string)
	once    sync.Once
}

func (s *session) releaseOnce() {
	s.once.Do(func() { s.release(s.path) })
}

// Download fetches remoteURL and triggers a forced save under suggestedName.
// Best-effort: every failure degrades silently (fallback navigation or log)
// and nothing is reported to the caller.
func (o *Orchestrator) Download(ctx context.Context, remoteURL, suggestedName string) {
	logger := logging.FromContext(ctx)

	fetcher := o.Fetcher
	if fetcher == nil {
		fetcher = HTTPFetcher{}
	}

	body, err := fetcher.Fetch(ctx, remoteURL)
	if err != nil {
		logger.Warn("download fetch failed, falling back to direct navigation", "url", remoteURL, "error", err)
		o.fallback(ctx, remoteURL)
		return
	}
	defer body.Close()

	sess, err := o.materialize(body)
	if err != nil {
		logger.Warn("materialize download failed, falling back to direct navigation", "url", remoteURL, "error", err)
		o.fallback(ctx, remoteURL)
		return
	}

	if o.Saver != nil {
		if err := o.Saver.Save(ctx, sess.path, suggestedName); err != nil {
			logger.Warn("save trigger failed", "url", remoteURL, "error", err)
		}
	}

	// The reference outlives the trigger just long enough for the save
	// action to begin, then is released no matter what.
	delay := o.ReleaseDelay
	if delay <= 0 {
		delay = DefaultReleaseDelay
	}
	time.AfterFunc(delay, sess.releaseOnce)
}

// materialize writes the stream to a transient local file and returns the
// session owning that single reference.
func (o *Orchestrator) materialize(body io.Reader) (*session, error) {
	dir := o.Dir
	if dir == "" {
		dir = os.TempDir()
	}

	path := filepath.Join(dir, "clipvault-"+uuid.NewString())
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create local reference: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write local reference: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close local reference: %w", err)
	}

	release := o.releaseFunc
	if release == nil {
		release = func(p string) { _ = os.Remove(p) }
	}

	return &session{path: path, release: release}, nil
}

func (o *Orchestrator) fallback(ctx context.Context, url string) {
	if o.Opener == nil {
		return
	}
	if err := o.Opener.Open(ctx, url); err != nil {
		logging.FromContext(ctx).Warn("fallback navigation failed", "url", url, "error", err)
	}
}
