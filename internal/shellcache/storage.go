package shellcache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"contabils/internal/cache"
)

// Entry is a stored response.
type Entry struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewEntry drains resp into an entry and closes its body.
func NewEntry(resp *http.Response) (Entry, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}, nil
}

// HeaderCache is set to "hit" on responses served from a bucket.
const HeaderCache = "X-Shell-Cache"

// response rebuilds a fresh response for req.
func (e Entry) response(req *http.Request, hit bool) *http.Response {
	h := e.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if hit {
		h.Set(HeaderCache, "hit")
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// Bucket is one named cache. Manifest entries are pinned; runtime entries
// are bounded by LRU eviction.
type Bucket struct {
	name    string
	entries *cache.LRUCache[Entry]
}

func (b *Bucket) Name() string { return b.name }

func (b *Bucket) Put(key string, e Entry) { b.entries.Set(key, e) }

func (b *Bucket) pin(key string, e Entry) { b.entries.SetPinned(key, e) }

func (b *Bucket) Match(key string) (Entry, bool) { return b.entries.Get(key) }

func (b *Bucket) Keys() []string { return b.entries.Keys() }

// Storage holds the named buckets of one origin.
type Storage struct {
	mu         sync.Mutex
	buckets    map[string]*Bucket
	runtimeCap int
}

// NewStorage creates an empty storage. runtimeCap bounds the unpinned
// entries of each bucket.
func NewStorage(runtimeCap int) *Storage {
	if runtimeCap <= 0 {
		runtimeCap = 64
	}
	return &Storage{buckets: make(map[string]*Bucket), runtimeCap: runtimeCap}
}

// Open returns the named bucket, creating it when missing.
func (s *Storage) Open(name string) *Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[name]; ok {
		return b
	}
	b := &Bucket{name: name, entries: cache.NewLRUCache[Entry](s.runtimeCap, 0)}
	s.buckets[name] = b
	return b
}

// Delete drops a bucket and reports whether it existed.
func (s *Storage) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[name]
	delete(s.buckets, name)
	return ok
}

// Keys lists bucket names in lexical order.
func (s *Storage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.buckets))
	for n := range s.buckets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DeleteOthers removes every shell bucket except keep and returns the
// removed names. Buckets outside the shell prefix are left alone.
func (s *Storage) DeleteOthers(keep string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for n := range s.buckets {
		if n != keep && strings.HasPrefix(n, CachePrefix) {
			delete(s.buckets, n)
			removed = append(removed, n)
		}
	}
	sort.Strings(removed)
	return removed
}
