package kit

import (
	"context"
	"errors"
	"testing"
)

func TestChain_Order(t *testing.T) {
	// WHAT: three middlewares chained around an endpoint.
	// WHY: the first middleware must be outermost so auth runs before
	// logging runs before the handler.
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"), mw("c"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	// WHAT: an endpoint error through a no-op chain.
	// WHY: middlewares must pass errors through unchanged.
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) {
		return nil, errFail
	}

	noop := func(next Endpoint) Endpoint { return next }
	chained := Chain(noop)(base)

	_, err := chained(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestContextValues(t *testing.T) {
	// WHAT: context accessors on empty and populated contexts.
	// WHY: GetTransport defaults to "http" so HTTP handlers skip the
	// With call.
	ctx := context.Background()
	if v := GetRequestID(ctx); v != "" {
		t.Fatalf("empty context: got %q", v)
	}
	if v := GetTransport(ctx); v != "http" {
		t.Fatalf("default transport: got %q", v)
	}

	ctx = WithRequestID(ctx, "req_1")
	ctx = WithTransport(ctx, "mcp")
	ctx = WithRemoteAddr(ctx, "10.0.0.1")
	if GetRequestID(ctx) != "req_1" || GetTransport(ctx) != "mcp" || GetRemoteAddr(ctx) != "10.0.0.1" {
		t.Fatal("values not round-tripped")
	}
}
