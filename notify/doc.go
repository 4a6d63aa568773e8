// Package notify provides the in-process notification bus used by the
// engine's components to surface observable side effects (cache hits and
// misses, rule executions, retrieval completions) to the host application.
//
// The bus is intentionally synchronous: handlers run on the emitting
// goroutine in subscription order, which guarantees FIFO delivery within
// one event kind for one emitting component. There is no ordering guarantee
// across different kinds.
//
// Example usage:
//
//	bus := notify.NewBus()
//	bus.Subscribe("hit", func(ev notify.Event) {
//	    log.Printf("cache hit: %v", ev.Payload["key"])
//	})
package notify
