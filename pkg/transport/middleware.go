package transport

import "slices"

// Middleware decorates a ChatCompleter.
type Middleware func(ChatCompleter) ChatCompleter

// Chain composes middlewares so that the first one listed sees the request
// first: Chain(a, b, c)(h) is a(b(c(h))).
func Chain(middlewares ...Middleware) Middleware {
	return func(h ChatCompleter) ChatCompleter {
		for _, mw := range slices.Backward(middlewares) {
			h = mw(h)
		}
		return h
	}
}
