// Package editor dispatches text-editing requests to interchangeable AI
// backends with fallback, multi-variation generation, and self-refinement.
package editor

import "context"

// Request is a single editing call: rewrite Text per Instruction at the given
// sampling Temperature.
type Request struct {
	Instruction string
	Text        string
	Temperature float64
}

// Client is one editing backend bound to a concrete model. Implementations
// hold no mutable state; a call's only side effect is the network request.
type Client interface {
	Name() string
	Edit(ctx context.Context, req Request) (string, error)
}
