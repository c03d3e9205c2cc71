package http

import (
	"fmt"
	"regexp"

	"github.com/momentics/reactor-http/buffer"
	"github.com/momentics/reactor-http/loop"
	"github.com/momentics/reactor-http/tcp"
)

// Handler processes a matched request and fills in the response.
type Handler func(req *Request, resp *Response)

type route struct {
	re      *regexp.Regexp
	handler Handler
}

// contextKey is the type stashed on tcp.Connection.Context to carry this
// connection's parser state across readiness events, per spec.md §4.6's
// protocol-upgrade mechanism: a plain TCP connection becomes an HTTP
// connection by Upgrade-ing its callback set once, here at accept time.
type contextKey struct {
	parser *Context
}

// Server is the HTTP/1.1 application layer built on tcp.Server, per
// spec.md §4.8/§6.
type Server struct {
	tcpSrv *tcp.Server

	baseDir string

	getRoutes    []route
	postRoutes   []route
	putRoutes    []route
	deleteRoutes []route
}

// NewServer constructs an HttpServer listening on addr, using masterLoop
// as the acceptor's owning loop. Any tcp.ServerOption is forwarded to the
// underlying tcp.Server.
func NewServer(masterLoop *loop.EventLoop, addr string, opts ...tcp.ServerOption) *Server {
	s := &Server{}
	s.tcpSrv = tcp.NewServer(masterLoop, addr, opts...)
	return s
}

// Get registers a GET/HEAD route.
func (s *Server) Get(pattern string, h Handler) { s.getRoutes = append(s.getRoutes, mustRoute(pattern, h)) }

// Post registers a POST route.
func (s *Server) Post(pattern string, h Handler) {
	s.postRoutes = append(s.postRoutes, mustRoute(pattern, h))
}

// Put registers a PUT route.
func (s *Server) Put(pattern string, h Handler) {
	s.putRoutes = append(s.putRoutes, mustRoute(pattern, h))
}

// Delete registers a DELETE route.
func (s *Server) Delete(pattern string, h Handler) {
	s.deleteRoutes = append(s.deleteRoutes, mustRoute(pattern, h))
}

func mustRoute(pattern string, h Handler) route {
	return route{re: regexp.MustCompile(pattern), handler: h}
}

// SetBaseDir configures the static-file base directory. Empty (the
// default) disables static serving.
func (s *Server) SetBaseDir(dir string) { s.baseDir = dir }

// SetThreadCount configures worker loop count, forwarded to the
// underlying tcp.Server.
func (s *Server) SetThreadCount(n int) { s.tcpSrv.SetThreadCount(n) }

// SetIdleTimeoutSec arms idle eviction, forwarded to the underlying
// tcp.Server.
func (s *Server) SetIdleTimeoutSec(sec int) { s.tcpSrv.SetIdleTimeoutSec(sec) }

// Listen starts accepting connections and upgrading each to the HTTP
// protocol handler set, per spec.md §6.
func (s *Server) Listen() error {
	s.tcpSrv.SetCallbacks(s.onConnected, nil, nil, nil)
	return s.tcpSrv.Start()
}

// Stop tears down the underlying tcp.Server.
func (s *Server) Stop() { s.tcpSrv.Stop() }

// Metrics returns a snapshot of the underlying tcp.Server's counters.
func (s *Server) Metrics() tcp.Metrics { return s.tcpSrv.Metrics() }

// onConnected upgrades the freshly-established Connection to the HTTP
// callback set, attaching a fresh parser Context as its user context, per
// spec.md §4.6/§9's protocol-upgrade mechanism.
func (s *Server) onConnected(c *tcp.Connection) {
	parser := NewContext()
	c.Upgrade(contextKey{parser: parser}, nil, s.onMessage, nil, nil)
}

// onMessage feeds newly-arrived bytes through the connection's parser,
// and for every complete request it produces, routes and responds, then
// resets the parser so a subsequent pipelined/persistent request can be
// parsed on the same connection — the left-identity property spec.md §8
// requires of Reset.
func (s *Server) onMessage(c *tcp.Connection, in *buffer.Buffer) {
	ck, ok := c.Context.(contextKey)
	if !ok {
		return
	}
	parser := ck.parser

	for {
		parser.Recv(in)
		switch parser.State() {
		case StateLine, StateHead, StateBody:
			return // need more bytes
		case StateOver:
			s.respond(c, parser)
			parser.Reset()
			if in.Len() == 0 {
				return
			}
		case StateError:
			s.respondError(c, parser.Status())
			return
		}
	}
}

func (s *Server) respond(c *tcp.Connection, parser *Context) {
	req := parser.Request()
	resp := NewResponse()
	s.route(req, resp)

	out := buffer.New()
	resp.Write(out, req.KeepAlive())
	c.Send(out.ReadAll())
	if !req.KeepAlive() {
		c.Shutdown()
	}
}

func (s *Server) respondError(c *tcp.Connection, status int) {
	resp := NewResponse()
	resp.Status = status
	resp.SetBodyString(fmt.Sprintf("%d %s\n", status, statusReason(status)))
	out := buffer.New()
	resp.Write(out, false)
	c.Send(out.ReadAll())
	c.Shutdown()
}

// route implements spec.md §4.8: a static-file hit for GET/HEAD under
// baseDir wins first; otherwise the method's table is scanned in
// insertion order and the first fully-matching regex wins, with its
// captures copied into req.Captures. No match is a 404.
func (s *Server) route(req *Request, resp *Response) {
	if (req.Method == "GET" || req.Method == "HEAD") && serveStatic(s.baseDir, req.Path, resp) {
		return
	}

	var table []route
	switch req.Method {
	case "GET", "HEAD":
		table = s.getRoutes
	case "POST":
		table = s.postRoutes
	case "PUT":
		table = s.putRoutes
	case "DELETE":
		table = s.deleteRoutes
	default:
		table = nil
	}

	for _, r := range table {
		m := r.re.FindStringSubmatch(req.Path)
		if m == nil {
			continue
		}
		if m[0] != req.Path {
			continue // require a full match, not a partial one
		}
		req.Captures = m[1:]
		r.handler(req, resp)
		return
	}

	resp.Status = 404
	resp.SetBodyString("404 Not Found\n")
}
