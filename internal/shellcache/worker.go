package shellcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	applog "contabils/internal/log"
)

// State is the lifecycle position of one shell version.
type State int

const (
	StateInstalling State = iota
	StateInstalled        // waiting for takeover
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrOffline is returned when neither the network nor the bucket can answer.
var ErrOffline = errors.New("shell offline and not cached")

// Worker is one installed shell version and its fetch policy.
type Worker struct {
	manifest Manifest
	origin   *url.URL
	storage  *Storage
	network  http.RoundTripper
	logger   *applog.Logger

	mu    sync.Mutex
	state State
}

func (w *Worker) Version() string { return w.manifest.Version }

func (w *Worker) Bucket() string { return BucketName(w.manifest.Version) }

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	w.logger.Debug("Shell worker state changed", "version", w.manifest.Version, "state", s.String())
}

// install fetches every manifest asset and only then writes the bucket, so
// a failed install leaves no partial bucket behind.
func (w *Worker) install(ctx context.Context) error {
	entries := make(map[string]Entry, len(w.manifest.Assets))
	for _, asset := range w.manifest.Assets {
		u := w.origin.ResolveReference(&url.URL{Path: asset})
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("build request %s: %w", asset, err)
		}
		resp, err := w.network.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", asset, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return fmt.Errorf("fetch %s: status %d", asset, resp.StatusCode)
		}
		entry, err := NewEntry(resp)
		if err != nil {
			return fmt.Errorf("read %s: %w", asset, err)
		}
		entries[asset] = entry
	}

	bucket := w.storage.Open(w.Bucket())
	for key, entry := range entries {
		bucket.pin(key, entry)
	}
	return nil
}

// Fetch answers a request the way the active worker does: bypassed paths
// go straight to the network, navigations are network-first and every
// other request is cache-first.
func (w *Worker) Fetch(req *http.Request) (*http.Response, error) {
	if w.State() != StateActivated || w.manifest.Bypass(req.URL) {
		return w.network.RoundTrip(req)
	}

	bucket := w.storage.Open(w.Bucket())
	key := CacheKey(req.URL)

	if IsNavigation(req) {
		resp, err := w.network.RoundTrip(req)
		if err == nil {
			if req.Method != http.MethodGet || !ok(resp) {
				return resp, nil
			}
			entry, rerr := NewEntry(resp)
			if rerr != nil {
				return nil, rerr
			}
			bucket.Put(key, entry)
			bucket.Put(HomeKey, entry)
			return entry.response(req, false), nil
		}
		for _, k := range []string{key, HomeKey, "/index.html"} {
			if entry, found := bucket.Match(k); found {
				return entry.response(req, true), nil
			}
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrOffline, key, err)
	}

	if entry, found := bucket.Match(key); found {
		return entry.response(req, true), nil
	}
	resp, err := w.network.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOffline, key, err)
	}
	if req.Method != http.MethodGet || !ok(resp) {
		return resp, nil
	}
	entry, err := NewEntry(resp)
	if err != nil {
		return nil, err
	}
	bucket.Put(key, entry)
	return entry.response(req, false), nil
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
