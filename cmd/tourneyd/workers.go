package main

import (
	"context"
	"sync"
)

// workerGroup runs background loops on a context of its own, so a shutdown
// signal does not stop them while requests are still draining. Stop cancels
// the loops and waits for them; the event sinks flush their queues on the
// way out.
type workerGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWorkerGroup() *workerGroup {
	ctx, cancel := context.WithCancel(context.Background())
	return &workerGroup{ctx: ctx, cancel: cancel}
}

// Go starts fn in a goroutine with the group's context.
func (g *workerGroup) Go(fn func(context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn(g.ctx)
	}()
}

// Stop cancels the group and blocks until every loop has returned.
func (g *workerGroup) Stop() {
	g.cancel()
	g.wg.Wait()
}
