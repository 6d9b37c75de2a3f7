// Package chanbuf provides a growable channel buffer, used where a
// producer (the IPC connection handler's outgoing write path) must never
// block on a slow or stalled consumer.
package chanbuf

import "go.uber.org/zap"

// Unbounded creates a channel buffer that grows as needed. It returns a
// write-only channel to feed data in, and a read-only channel to read data
// out.
//
// initialCap is the starting size of the backing slice. hardLimit is the
// maximum number of items to buffer before the oldest is dropped.
//
// Usage:
//
//	in, out := chanbuf.Unbounded[string](100, 50000, logger)
//	in <- "hello"
//	msg := <-out
func Unbounded[T any](initialCap, hardLimit int, logger *zap.Logger) (chan<- T, <-chan T) {
	in := make(chan T, 10)
	out := make(chan T, 10)

	go func() {
		defer close(out)

		queue := make([]T, 0, initialCap)

		for {
			var next T
			var downstream chan T

			if len(queue) > 0 {
				next = queue[0]
				downstream = out
			}

			select {
			case val, ok := <-in:
				if !ok {
					for _, item := range queue {
						out <- item
					}
					return
				}

				if len(queue) >= hardLimit {
					if logger != nil {
						logger.Warn("channel buffer limit reached, dropping oldest item", zap.Int("limit", hardLimit))
					}
					queue = queue[1:]
				}

				queue = append(queue, val)

			case downstream <- next:
				queue = queue[1:]
			}
		}
	}()

	return in, out
}
