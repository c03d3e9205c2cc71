package http

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/momentics/reactor-http/buffer"
)

// ParseState is one stage of the resumable request parser from spec.md
// §4.7.
type ParseState int

const (
	StateLine ParseState = iota
	StateHead
	StateBody
	StateOver
	StateError
)

// maxLineBytes bounds both the request line and any single header line;
// exceeding it is a 414, per spec.md §6 Limits.
const maxLineBytes = 8192

var requestLineRe = regexp.MustCompile(`^([A-Za-z0-9_]+) ([^?\s]+)(?:\?(.*))? (HTTP/1\.[01])(?:\r?\n)?$`)

// Context is a resumable state machine driven by repeated Recv calls
// across readiness events on a persistent connection. Reset restarts it,
// discarding all partial state, and is a left identity for parsing: the
// sequence reset;recv(b) behaves exactly like parsing b on a fresh
// Context.
type Context struct {
	state  ParseState
	status int
	req    *Request
}

// NewContext returns a fresh Context ready to parse a request line.
func NewContext() *Context {
	c := &Context{}
	c.Reset()
	return c
}

// Reset discards all partial parse state and prepares to parse a new
// request line.
func (c *Context) Reset() {
	c.state = StateLine
	c.status = 200
	c.req = newRequest()
}

// State returns the current parser state.
func (c *Context) State() ParseState { return c.state }

// Status returns the response status the parser has decided on: 200 while
// parsing proceeds normally, 400 on a malformed request, 414 on an
// oversize line.
func (c *Context) Status() int { return c.status }

// Request returns the request built so far (complete once State() ==
// StateOver).
func (c *Context) Request() *Request { return c.req }

// Recv drains as much of buf as the current state can consume, advancing
// through LINE -> HEAD -> BODY -> OVER. A partial line is left in buf for
// the next Recv call; body bytes are consumed as they arrive and appended
// to the request's Body, never beyond its Content-Length.
func (c *Context) Recv(buf *buffer.Buffer) {
	for {
		switch c.state {
		case StateLine:
			if !c.parseLine(buf) {
				return
			}
		case StateHead:
			if !c.parseHead(buf) {
				return
			}
		case StateBody:
			if !c.parseBody(buf) {
				return
			}
		case StateOver, StateError:
			return
		}
	}
}

// oversizeGuard enforces the 8192-byte ceiling on a line that has not yet
// terminated: if the buffer holds more unread bytes than the ceiling
// without having produced a line, the request is rejected as 414.
func (c *Context) oversizeGuard(buf *buffer.Buffer) bool {
	if buf.Len() > maxLineBytes {
		c.status = 414
		c.state = StateError
		return true
	}
	return false
}

func (c *Context) parseLine(buf *buffer.Buffer) bool {
	line := buf.PeekLine()
	if line == nil {
		c.oversizeGuard(buf)
		return false
	}
	if len(line) > maxLineBytes {
		c.status = 414
		c.state = StateError
		return false
	}
	buf.Drop(len(line))

	m := requestLineRe.FindStringSubmatch(string(line))
	if m == nil {
		c.status = 400
		c.state = StateError
		return false
	}
	c.req.Method = m[1]
	c.req.Path = percentDecode(m[2], false)
	c.req.Query = parseQuery(m[3])
	c.req.Version = m[4]
	c.state = StateHead
	return true
}

func (c *Context) parseHead(buf *buffer.Buffer) bool {
	for {
		line := buf.PeekLine()
		if line == nil {
			c.oversizeGuard(buf)
			return false
		}
		if len(line) > maxLineBytes {
			c.status = 414
			c.state = StateError
			return false
		}
		buf.Drop(len(line))

		trimmed := strings.TrimRight(string(line), "\r\n")
		if trimmed == "" {
			c.state = StateBody
			return true
		}
		sep := strings.Index(trimmed, ": ")
		if sep < 0 {
			c.status = 400
			c.state = StateError
			return false
		}
		key := trimmed[:sep]
		val := trimmed[sep+2:]
		c.req.Headers[key] = val
	}
}

func (c *Context) parseBody(buf *buffer.Buffer) bool {
	want := 0
	if cl, ok := c.req.Headers["Content-Length"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err == nil && n > 0 {
			want = n
		}
	}
	need := want - len(c.req.Body)
	if need <= 0 {
		c.state = StateOver
		return true
	}
	avail := buf.Len()
	if avail == 0 {
		return false
	}
	take := need
	if avail < take {
		take = avail
	}
	c.req.Body = append(c.req.Body, buf.Read(take)...)
	if len(c.req.Body) >= want {
		c.state = StateOver
		return true
	}
	return false
}
