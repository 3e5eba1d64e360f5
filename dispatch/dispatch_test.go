package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	goHttp "github.com/corowave/evhttpd/http"
	"github.com/corowave/evhttpd/http/status"

	"github.com/corowave/evhttpd/config"
	"github.com/corowave/evhttpd/fileservice"
	"github.com/corowave/evhttpd/perfmon"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.RootDir = root

	cache := fileservice.NewCache(cfg.Cache.MaxSizeBytes, cfg.Cache.MaxEntries, cfg.Cache.MaxFileSizeBytes)
	files := fileservice.New(root, false, cache)
	monitor := perfmon.New(true, nil)

	return New(cfg, files, monitor), root
}

func doRequest(h *Handler, method, path string) *goHttp.Response {
	req := goHttp.NewRequest()
	req.Method = method
	req.Path = path

	resp := goHttp.NewResponse()
	h.Handle(req, resp)
	resp.Init()

	return resp
}

func TestServerStatusEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := doRequest(h, "GET", "/server-status")

	require.Equal(t, status.OK, resp.Code)
	require.Contains(t, string(resp.Body), "total_requests")
}

func TestServerInfoEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := doRequest(h, "GET", "/server-info")

	require.Equal(t, status.OK, resp.Code)
	require.Contains(t, string(resp.Body), "evhttpd")
}

func TestGetServesFile(t *testing.T) {
	h, root := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hi.txt"), []byte("hi"), 0o644))

	resp := doRequest(h, "GET", "/hi.txt")

	require.Equal(t, status.OK, resp.Code)
	require.Equal(t, "hi", string(resp.Body))
}

func TestHeadOmitsBodyButSetsContentLength(t *testing.T) {
	h, root := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hi.txt"), []byte("hello"), 0o644))

	resp := doRequest(h, "HEAD", "/hi.txt")

	require.Equal(t, status.OK, resp.Code)
	require.Empty(t, resp.Body)

	cl, ok := resp.Headers.Get("Content-Length")
	require.True(t, ok)
	require.Equal(t, "5", cl)
}

func TestPostEchoesBody(t *testing.T) {
	h, _ := newTestHandler(t)

	req := goHttp.NewRequest()
	req.Method = "POST"
	req.Path = "/anything"
	req.Body = []byte("payload")

	resp := goHttp.NewResponse()
	h.Handle(req, resp)

	require.Equal(t, status.OK, resp.Code)
	require.Equal(t, "payload", string(resp.Body))
}

func TestUnknownMethodIsNotImplemented(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := doRequest(h, "PATCH", "/anything")

	require.Equal(t, status.NotImplemented, resp.Code)
}

func TestMissingFileIsNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := doRequest(h, "GET", "/missing")

	require.Equal(t, status.NotFound, resp.Code)
}
