package loop

import (
	"fmt"
	"sync/atomic"
)

// Pool holds a fixed set of reactor threads and hands out their loops
// round-robin, the worker half of the master-loop/subordinate-loops split
// spec.md §6 and DESIGN NOTES describe for TcpServer.
type Pool struct {
	threads []*Thread
	next    uint64
}

// NewPool starts n reactor threads. n == 0 is valid and yields an empty
// pool; callers should fall back to running everything on the master loop
// in that case, per spec.md's "0 means all work on the master loop".
func NewPool(n int) (*Pool, error) {
	p := &Pool{threads: make([]*Thread, 0, n)}
	for i := 0; i < n; i++ {
		lt, err := NewThread()
		if err != nil {
			p.Stop()
			return nil, fmt.Errorf("loop: pool worker %d: %w", i, err)
		}
		p.threads = append(p.threads, lt)
	}
	return p, nil
}

// Size returns the number of worker threads in the pool.
func (p *Pool) Size() int { return len(p.threads) }

// NextLoop returns the next EventLoop in round-robin order. Callers must
// check Size() > 0 first; NextLoop panics on an empty pool.
func (p *Pool) NextLoop() *EventLoop {
	idx := atomic.AddUint64(&p.next, 1) - 1
	return p.threads[idx%uint64(len(p.threads))].Loop()
}

// Stop stops every worker thread and waits for them to exit.
func (p *Pool) Stop() {
	for _, t := range p.threads {
		t.Stop()
	}
}
