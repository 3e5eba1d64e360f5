// Package fileservice implements path sanitization, MIME lookup, the
// bounded LRU body cache, default-index lookup, and directory listing.
// Grounded in original_source's FileService (the C++ singleton this was
// distilled from) and in indigo-web/indigo's router/inbuilt Static handler
// for the traversal-safe dispatch shape.
package fileservice

import (
	"io"
	"os"
	"path/filepath"

	"github.com/corowave/evhttpd/http/status"
)

// defaultFiles is probed, in order, before falling back to a directory
// listing — original_source's FileService::defaultFiles.
var defaultFiles = []string{"index.html", "index.htm", "default.html"}

// chunkSize is the read granularity for files that bypass the cache.
const chunkSize = 8 * 1024

// Result is what Get returns: a status code, the body to send, and the
// MIME type to report.
type Result struct {
	Status status.Code
	Body   []byte
	MIME   string
}

// Service dispatches file requests against rootDir, backed by a bounded
// Cache and configurable directory-listing support.
type Service struct {
	rootDir      string
	allowListing bool
	cache        *Cache
}

// New builds a Service rooted at rootDir.
func New(rootDir string, allowListing bool, cache *Cache) *Service {
	return &Service{
		rootDir:      rootDir,
		allowListing: allowListing,
		cache:        cache,
	}
}

// Get dispatches a single request path: sanitize, then not-exists -> 404,
// directory -> listing or 404, regular file -> cache hit or
// read-and-maybe-cache, any read error -> 500.
func (s *Service) Get(requestPath string) Result {
	full, ok := Sanitize(s.rootDir, requestPath)
	if !ok {
		return Result{Status: status.NotFound}
	}

	info, err := os.Stat(full)
	if err != nil {
		return Result{Status: status.NotFound}
	}

	if info.IsDir() {
		return s.getDirectory(requestPath, full)
	}

	if !info.Mode().IsRegular() {
		return Result{Status: status.NotFound}
	}

	return s.getFile(full, info.Size())
}

func (s *Service) getDirectory(requestPath, fullDir string) Result {
	if idx, ok := s.findDefaultFile(fullDir); ok {
		stat, err := os.Stat(idx)
		if err == nil {
			return s.getFile(idx, stat.Size())
		}
	}

	if !s.allowListing {
		return Result{Status: status.NotFound}
	}

	entries, err := os.ReadDir(fullDir)
	if err != nil {
		return Result{Status: status.InternalServerError}
	}

	return Result{
		Status: status.OK,
		Body:   renderListing(requestPath, entries),
		MIME:   "text/html",
	}
}

func (s *Service) findDefaultFile(dir string) (string, bool) {
	for _, name := range defaultFiles {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}

	return "", false
}

func (s *Service) getFile(fullPath string, size int64) Result {
	mime := mimeFor(fullPath)

	if e, ok := s.cache.Get(fullPath); ok {
		return Result{Status: status.OK, Body: e.Content, MIME: e.MIME}
	}

	if size > s.cache.MaxFileSize() {
		body, err := readChunked(fullPath)
		if err != nil {
			return Result{Status: status.InternalServerError}
		}

		return Result{Status: status.OK, Body: body, MIME: mime}
	}

	body, err := os.ReadFile(fullPath)
	if err != nil {
		return Result{Status: status.InternalServerError}
	}

	s.cache.Put(fullPath, mime, body)

	return Result{Status: status.OK, Body: body, MIME: mime}
}

// readChunked streams a file in fixed 8KiB chunks into a single buffer,
// without ever inserting it into the cache.
func readChunked(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []byte
	buf := make([]byte, chunkSize)

	for {
		n, err := f.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}
