package fileservice

import (
	"fmt"
	"html"
	"os"
	"path"
	"sort"
	"strings"
)

// renderListing builds a directory-listing HTML page: a parent-directory
// link (unless at root), directories first then files, both alphabetical,
// file sizes scaled B/KB/MB/GB. Grounded in original_source's
// FileService::generateDirectoryListing, restated in Go without the C++
// iostream plumbing.
func renderListing(requestPath string, dirEntries []os.DirEntry) []byte {
	requestPath = ensureTrailingSlash(requestPath)

	entries := sortedEntries(dirEntries)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n")
	fmt.Fprintf(&b, "<title>Index of %s</title>\n", html.EscapeString(requestPath))
	b.WriteString("<style>\n" +
		"body { font-family: Arial, sans-serif; margin: 20px; }\n" +
		"h1 { color: #333; }\n" +
		"ul { list-style-type: none; padding: 0; }\n" +
		"li { margin: 5px 0; }\n" +
		"a { text-decoration: none; color: #0066cc; }\n" +
		"a:hover { text-decoration: underline; }\n" +
		".directory { font-weight: bold; }\n" +
		"</style>\n</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<ul>\n", html.EscapeString(requestPath))

	if requestPath != "/" {
		fmt.Fprintf(&b, "<li><a href=\"%s\">..</a></li>\n", html.EscapeString(parentOf(requestPath)))
	}

	for _, e := range entries {
		href := html.EscapeString(path.Join(requestPath, e.Name()))

		if e.IsDir() {
			fmt.Fprintf(&b, "<li><a class=\"directory\" href=\"%s/\">%s/</a></li>\n",
				href, html.EscapeString(e.Name()))
			continue
		}

		info, err := e.Info()
		size := int64(0)
		if err == nil {
			size = info.Size()
		}

		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a> (%s)</li>\n",
			href, html.EscapeString(e.Name()), formatSize(size))
	}

	b.WriteString("</ul>\n<hr>\n<p>evhttpd</p>\n</body>\n</html>")

	return []byte(b.String())
}

func ensureTrailingSlash(p string) string {
	if !strings.HasSuffix(p, "/") {
		return p + "/"
	}

	return p
}

func parentOf(requestPath string) string {
	trimmed := strings.TrimSuffix(requestPath, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx <= 0 {
		return "/"
	}

	return trimmed[:idx+1]
}

// sortedEntries orders directories before files, both alphabetical,
// matching original_source's comparator exactly.
func sortedEntries(entries []os.DirEntry) []os.DirEntry {
	out := make([]os.DirEntry, len(entries))
	copy(out, entries)

	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir() != out[j].IsDir() {
			return out[i].IsDir()
		}

		return out[i].Name() < out[j].Name()
	})

	return out
}

func formatSize(size int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)

	switch {
	case size < kb:
		return fmt.Sprintf("%d B", size)
	case size < mb:
		return fmt.Sprintf("%.1f KB", float64(size)/kb)
	case size < gb:
		return fmt.Sprintf("%.1f MB", float64(size)/mb)
	default:
		return fmt.Sprintf("%.1f GB", float64(size)/gb)
	}
}
