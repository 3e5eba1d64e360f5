package fileservice

import "strings"

// Sanitize normalizes a raw request path into one guaranteed to be
// rootDir or a descendant of it, via a five-step algorithm grounded in
// original_source's FileService::sanitizePath: fold backslashes to
// forward slashes, collapse repeated slashes, drop "." segments, pop the
// last retained segment on "..", then join under rootDir.
//
// Absolute paths aren't special-cased here — leading slashes are stripped
// in step 5 regardless — but NUL bytes are rejected outright, since they
// can't occur in a legitimate filesystem path and often signal a
// injection attempt against C-string-based filesystem APIs.
func Sanitize(rootDir, rawPath string) (string, bool) {
	if strings.IndexByte(rawPath, 0) != -1 {
		return "", false
	}

	folded := foldSeparators(rawPath)
	segments := collapseSegments(folded)

	joined := "/" + strings.Join(segments, "/")
	if joined == "/" {
		return rootDir, true
	}

	return strings.TrimRight(rootDir, "/") + joined, true
}

func foldSeparators(path string) string {
	b := make([]byte, 0, len(path))

	var prevSlash bool
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' || c == '\\' {
			if !prevSlash {
				b = append(b, '/')
				prevSlash = true
			}
			continue
		}

		b = append(b, c)
		prevSlash = false
	}

	return string(b)
}

// collapseSegments splits on '/', drops empty and "." segments, and pops
// the last retained segment for each ".." — never below root, where a
// ".." is silently dropped instead of erroring.
func collapseSegments(folded string) []string {
	raw := strings.Split(folded, "/")
	segments := make([]string, 0, len(raw))

	for _, seg := range raw {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, seg)
		}
	}

	return segments
}
