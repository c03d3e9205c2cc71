// Command httpserver runs the HTTP/1.1 application layer on the reactor,
// serving static files from -basedir alongside a couple of illustrative
// routes.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/momentics/reactor-http/http"
	"github.com/momentics/reactor-http/loop"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	baseDir := flag.String("basedir", "", "static file root (empty disables static serving)")
	threads := flag.Int("threads", 0, "worker loop count (0 = single-loop)")
	idle := flag.Int("idle", 60, "idle connection timeout in seconds (0 = disabled)")
	flag.Parse()

	master, err := loop.New()
	if err != nil {
		log.Fatalf("httpserver: new loop: %v", err)
	}

	srv := http.NewServer(master, *addr)
	srv.SetBaseDir(*baseDir)
	srv.SetThreadCount(*threads)
	srv.SetIdleTimeoutSec(*idle)

	srv.Get(`/hello`, func(req *http.Request, resp *http.Response) {
		resp.SetBodyString("hello, world\n")
		resp.SetHeader("Content-Type", "text/plain")
	})
	srv.Get(`/echo/([^/]+)`, func(req *http.Request, resp *http.Response) {
		resp.SetBodyString(fmt.Sprintf("%s\n", req.Captures[0]))
		resp.SetHeader("Content-Type", "text/plain")
	})

	if err := srv.Listen(); err != nil {
		log.Fatalf("httpserver: listen: %v", err)
	}
	log.Printf("httpserver: listening on %s", *addr)

	if err := master.Run(); err != nil {
		log.Fatalf("httpserver: run: %v", err)
	}
}
