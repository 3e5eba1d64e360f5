package fileservice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corowave/evhttpd/http/status"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, string) {
	root := t.TempDir()
	cache := NewCache(1<<20, 100, 5*1024*1024)
	return New(root, false, cache), root
}

func TestGetStaticFileHit(t *testing.T) {
	svc, root := newTestService(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("Hello\n"), 0o644))

	res := svc.Get("/hello.txt")
	require.Equal(t, status.OK, res.Status)
	require.Equal(t, "Hello\n", string(res.Body))
	require.Equal(t, "text/plain", res.MIME)
}

func TestGetMissingFile(t *testing.T) {
	svc, _ := newTestService(t)

	res := svc.Get("/missing")
	require.Equal(t, status.NotFound, res.Status)
}

func TestGetTraversalBlocked(t *testing.T) {
	svc, root := newTestService(t)
	// the ".." is dropped at root, so this resolves to root/etc/passwd,
	// which doesn't exist under root -> 404, never escapes.
	_ = root

	res := svc.Get("/../etc/passwd")
	require.Equal(t, status.NotFound, res.Status)
}

func TestGetDirectoryWithoutListingIs404(t *testing.T) {
	svc, root := newTestService(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	res := svc.Get("/sub")
	require.Equal(t, status.NotFound, res.Status)
}

func TestGetDirectoryWithListingEnabled(t *testing.T) {
	root := t.TempDir()
	cache := NewCache(1<<20, 100, 5*1024*1024)
	svc := New(root, true, cache)

	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "f.txt"), []byte("x"), 0o644))

	res := svc.Get("/sub")
	require.Equal(t, status.OK, res.Status)
	require.Equal(t, "text/html", res.MIME)
	require.Contains(t, string(res.Body), "f.txt")
}

func TestGetDefaultIndexServedBeforeListing(t *testing.T) {
	root := t.TempDir()
	cache := NewCache(1<<20, 100, 5*1024*1024)
	svc := New(root, true, cache)

	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "index.html"), []byte("<h1>hi</h1>"), 0o644))

	res := svc.Get("/sub")
	require.Equal(t, status.OK, res.Status)
	require.Equal(t, "<h1>hi</h1>", string(res.Body))
	require.Equal(t, "text/html", res.MIME)
}

func TestGetLargeFileBypassesCache(t *testing.T) {
	root := t.TempDir()
	cache := NewCache(1<<20, 100, 4) // tiny per-file cutoff
	svc := New(root, false, cache)

	content := []byte("this is larger than four bytes")
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), content, 0o644))

	res := svc.Get("/big.txt")
	require.Equal(t, status.OK, res.Status)
	require.Equal(t, string(content), string(res.Body))
	require.Equal(t, 0, cache.Len())
}

func TestGetCachesSmallFileAndServesFromCacheOnSecondHit(t *testing.T) {
	svc, root := newTestService(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "small.txt"), []byte("cacheme"), 0o644))

	res1 := svc.Get("/small.txt")
	require.Equal(t, status.OK, res1.Status)
	require.Equal(t, 1, svc.cache.Len())

	res2 := svc.Get("/small.txt")
	require.Equal(t, status.OK, res2.Status)
	require.Equal(t, "cacheme", string(res2.Body))
}
