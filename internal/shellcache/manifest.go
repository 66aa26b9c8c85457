// Package shellcache models the offline cache of the client shell: the
// versioned asset buckets, the worker lifecycle, the fetch policy and the
// user-approved update handshake. The same manifest renders the browser
// worker script served at /sw.js.
package shellcache

import (
	"net/http"
	"net/url"
	"strings"
)

// CachePrefix starts the name of every bucket the shell owns.
const CachePrefix = "contabils-cache-"

// MessageSkipWaiting asks a waiting worker to activate.
const MessageSkipWaiting = "SKIP_WAITING"

// HomeKey is the cache key of the home document.
const HomeKey = "/"

// DefaultAssets is the shell manifest cached on install.
func DefaultAssets() []string {
	return []string{
		"/",
		"/index.html",
		"/styles.css",
		"/app.js",
		"/login.html",
		"/manifest.webmanifest",
		"/icon.svg",
	}
}

// BucketName returns the bucket holding version's assets.
func BucketName(version string) string {
	return CachePrefix + version
}

// Manifest describes one shell version.
type Manifest struct {
	Version        string
	Assets         []string
	BypassPrefixes []string
	BypassSuffixes []string
}

func NewManifest(version string) Manifest {
	return Manifest{
		Version:        version,
		Assets:         DefaultAssets(),
		BypassPrefixes: []string{"/api/"},
		BypassSuffixes: []string{".xlsx"},
	}
}

// Bypass reports requests that always go to the network untouched.
func (m Manifest) Bypass(u *url.URL) bool {
	for _, p := range m.BypassPrefixes {
		if strings.HasPrefix(u.Path, p) {
			return true
		}
	}
	for _, s := range m.BypassSuffixes {
		if strings.HasSuffix(u.Path, s) {
			return true
		}
	}
	return false
}

// IsNavigation reports page loads: explicit navigate mode or an HTML accept.
func IsNavigation(r *http.Request) bool {
	return r.Header.Get("Sec-Fetch-Mode") == "navigate" ||
		strings.Contains(r.Header.Get("Accept"), "text/html")
}

// CacheKey identifies a request inside a bucket.
func CacheKey(u *url.URL) string {
	return u.RequestURI()
}
