// Command echoserver runs a bare TCP echo service on the reactor, per
// spec.md's scenario 2.
package main

import (
	"flag"
	"log"

	"github.com/momentics/reactor-http/buffer"
	"github.com/momentics/reactor-http/loop"
	"github.com/momentics/reactor-http/tcp"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "listen address")
	threads := flag.Int("threads", 0, "worker loop count (0 = single-loop)")
	idle := flag.Int("idle", 0, "idle connection timeout in seconds (0 = disabled)")
	flag.Parse()

	master, err := loop.New()
	if err != nil {
		log.Fatalf("echoserver: new loop: %v", err)
	}

	srv := tcp.NewServer(master, *addr)
	srv.SetThreadCount(*threads)
	srv.SetIdleTimeoutSec(*idle)
	srv.SetCallbacks(nil, echoMessage, nil, nil)

	if err := srv.Start(); err != nil {
		log.Fatalf("echoserver: start: %v", err)
	}
	log.Printf("echoserver: listening on %s", *addr)

	if err := master.Run(); err != nil {
		log.Fatalf("echoserver: run: %v", err)
	}
}

// echoMessage writes back every byte received, the canonical reactor
// smoke test.
func echoMessage(c *tcp.Connection, in *buffer.Buffer) {
	c.Send(in.ReadAll())
}
