// Package dispatch is the request router the connection state machine's
// DISPATCH state hands off to: the two built-in status endpoints, static
// file serving via fileservice, a diagnostic echo for POST, and the
// method/error fallbacks. Grounded in indigo-web/indigo's router/inbuilt
// handlers (its Static and its method-not-allowed responder) and in
// original_source's RequestHandler::handleRequest dispatch table.
package dispatch

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	goHttp "github.com/corowave/evhttpd/http"
	"github.com/corowave/evhttpd/http/status"

	"github.com/corowave/evhttpd/config"
	"github.com/corowave/evhttpd/fileservice"
	"github.com/corowave/evhttpd/perfmon"
)

// buildVersion is overridable at link time (-ldflags "-X ...buildVersion=..."),
// matching original_source's compile-time VERSION macro surfaced at
// GET /server-info.
var buildVersion = "dev"

// Handler routes a completed Request into a Response. One Handler is
// shared by every connection; it holds no per-request state.
type Handler struct {
	cfg     *config.Config
	files   *fileservice.Service
	monitor *perfmon.Monitor
	started time.Time
}

// New builds a Handler wired to cfg, the file service, and the shared
// performance monitor.
func New(cfg *config.Config, files *fileservice.Service, monitor *perfmon.Monitor) *Handler {
	return &Handler{
		cfg:     cfg,
		files:   files,
		monitor: monitor,
		started: time.Now(),
	}
}

// Handle fills resp according to req: the two built-in endpoints take
// priority over the file service, then GET/HEAD/POST are routed, and any
// other method gets 501.
func (h *Handler) Handle(req *goHttp.Request, resp *goHttp.Response) {
	switch {
	case req.Path == "/server-status":
		h.serverStatus(resp)
		return
	case req.Path == "/server-info":
		h.serverInfo(resp)
		return
	}

	switch req.Method {
	case "GET":
		h.serveFile(req, resp, true)
	case "HEAD":
		h.serveFile(req, resp, false)
	case "POST":
		h.echo(req, resp)
	default:
		resp.SetStatus(status.NotImplemented).
			SetContentType("text/plain").
			SetBodyString(fmt.Sprintf("method %s is not implemented\n", req.Method))
	}
}

func (h *Handler) serverStatus(resp *goHttp.Response) {
	resp.SetStatus(status.OK).
		SetContentType("text/plain").
		SetBodyString(h.monitor.Summary())
}

func (h *Handler) serverInfo(resp *goHttp.Response) {
	var b strings.Builder
	fmt.Fprintf(&b, "server: evhttpd %s\n", buildVersion)
	fmt.Fprintf(&b, "go_version: %s\n", runtime.Version())
	fmt.Fprintf(&b, "uptime: %s\n", time.Since(h.started).Truncate(time.Second))
	fmt.Fprintf(&b, "listen: %s\n", h.cfg.Addr())
	fmt.Fprintf(&b, "root_dir: %s\n", h.cfg.RootDir)
	fmt.Fprintf(&b, "directory_listing: %t\n", h.cfg.AllowDirectoryListing)
	fmt.Fprintf(&b, "performance_monitoring: %t\n", h.cfg.EnablePerformanceMonitoring)
	fmt.Fprintf(&b, "cache_max_size_bytes: %d\n", h.cfg.Cache.MaxSizeBytes)
	fmt.Fprintf(&b, "cache_max_entries: %d\n", h.cfg.Cache.MaxEntries)
	fmt.Fprintf(&b, "cache_max_file_size_bytes: %d\n", h.cfg.Cache.MaxFileSizeBytes)

	resp.SetStatus(status.OK).
		SetContentType("text/plain").
		SetBodyString(b.String())
}

// serveFile answers GET/HEAD against the file service. On 200, HEAD sets
// Content-Length to the body's size but omits the body itself; an error
// status carries its plain-text body for both methods.
func (h *Handler) serveFile(req *goHttp.Request, resp *goHttp.Response, withBody bool) {
	result := h.files.Get(req.Path)

	resp.SetStatus(result.Status)

	if result.Status != status.OK {
		resp.SetContentType("text/plain").
			SetBodyString(fmt.Sprintf("%s\n", status.Text(result.Status)))
		return
	}

	resp.SetContentType(result.MIME)

	if withBody {
		resp.SetBody(result.Body)
	} else {
		resp.SetHeader("Content-Length", fmt.Sprintf("%d", len(result.Body)))
	}
}

// echo answers POST by reflecting the request body back as plain text;
// this system has no form or multipart upload surface to route to instead.
func (h *Handler) echo(req *goHttp.Request, resp *goHttp.Response) {
	resp.SetStatus(status.OK).
		SetContentType("text/plain").
		SetBody(req.Body)
}
