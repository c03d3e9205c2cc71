package http

import (
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/momentics/reactor-http/buffer"
)

// validPath reports whether path's ".." segments never walk the
// cumulative depth counter below zero, treating empty segments (from a
// leading '/' or a repeated '/') and "." segments as no-ops rather than
// as depth-increasing entries. The source this is adapted from
// incremented the depth counter for every non-".." segment, including
// empty ones produced by a leading slash, which let an absolute path like
// "/../etc/passwd" register a depth that never went negative; this
// version only increments depth for a real, non-empty, non-"." segment.
func validPath(p string) bool {
	depth := 0
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return false
			}
		default:
			depth++
		}
	}
	return true
}

// serveStatic serves path under baseDir if it resolves to a regular file
// within baseDir, per spec.md §4.8's static-file safety rule. It returns
// false (without modifying resp) if the request isn't a static-file hit,
// so the caller can fall back to the route tables.
func serveStatic(baseDir, reqPath string, resp *Response) bool {
	if baseDir == "" || !validPath(reqPath) {
		return false
	}
	clean := path.Clean("/" + reqPath)
	full := path.Join(baseDir, clean)
	if !strings.HasPrefix(full, path.Clean(baseDir)) {
		return false
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	f, err := os.Open(full)
	if err != nil {
		return false
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		return false
	}

	resp.Status = 200
	resp.Body = body
	resp.SetHeader("Content-Type", mimeForPath(full))
	resp.SetHeader("Content-Length", strconv.Itoa(len(body)))
	return true
}

// writeBody appends a buffer.Buffer's readable range to a Response body
// without consuming it; nothing in this package calls it. It matches
// the source's single-push write discipline (the source this is adapted
// from pushed the buffer's size twice into its outbound accounting; here
// a response body is simply appended once).
func writeBody(resp *Response, src *buffer.Buffer) {
	resp.Body = append(resp.Body, src.Bytes()...)
}
