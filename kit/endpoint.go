// Package kit holds transport-agnostic plumbing: the Endpoint abstraction,
// middleware chaining, request-scoped context values, and the MCP tool
// adapter. Service logic is written once as Endpoints and exposed over
// HTTP and MCP without duplication.
package kit

import "context"

// Endpoint is one invocable operation, independent of transport.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behavior.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first one is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
