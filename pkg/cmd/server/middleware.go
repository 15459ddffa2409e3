package server

import (
	"fmt"
	"net/http"
	"slices"
)

// Middleware wraps an http.Handler.
type Middleware func(next http.Handler) http.Handler

// ReferenceableMiddleware is a named entry of a MiddlewareChain. Modifications
// refer to entries by name. Internal entries can be built around but never
// replaced.
type ReferenceableMiddleware struct {
	Name       string
	Internal   bool
	Middleware Middleware
}

// MiddlewareOperation is the kind of change a MiddlewareModification makes.
type MiddlewareOperation int

const (
	// OperationPrepend inserts the middlewares right before the dependency.
	OperationPrepend MiddlewareOperation = iota

	// OperationReplace swaps the dependency for the middlewares. An empty
	// list removes it.
	OperationReplace

	// OperationAppend inserts the middlewares right after the dependency.
	OperationAppend
)

// MiddlewareModification changes a MiddlewareChain relative to one of its
// entries, named by DependencyMiddlewareName.
type MiddlewareModification struct {
	DependencyMiddlewareName string
	Operation                MiddlewareOperation
	Middlewares              []ReferenceableMiddleware
}

// MiddlewareChain is an ordered list of middlewares. The first entry sees a
// request first.
type MiddlewareChain struct {
	chain []ReferenceableMiddleware
}

// NewMiddlewareChain creates a chain from uniquely named middlewares.
func NewMiddlewareChain(mw ...ReferenceableMiddleware) (MiddlewareChain, error) {
	if err := checkNames(mw); err != nil {
		return MiddlewareChain{}, err
	}
	return MiddlewareChain{chain: mw}, nil
}

func checkNames(mws []ReferenceableMiddleware) error {
	seen := make(map[string]struct{}, len(mws))
	for _, mw := range mws {
		if mw.Name == "" {
			return fmt.Errorf("unnamed middleware found: %v", mw)
		}
		if _, ok := seen[mw.Name]; ok {
			return fmt.Errorf("found middleware with duplicate names in middleware modification: %s", mw.Name)
		}
		seen[mw.Name] = struct{}{}
	}
	return nil
}

// Names returns the names of the middlewares in a chain, in order.
func (mc *MiddlewareChain) Names() []string {
	names := make([]string, len(mc.chain))
	for i, mw := range mc.chain {
		names[i] = mw.Name
	}
	return names
}

// Handler wraps the handler with every middleware of the chain.
func (mc *MiddlewareChain) Handler(handler http.Handler) http.Handler {
	for _, mw := range slices.Backward(mc.chain) {
		handler = mw.Middleware(handler)
	}
	return handler
}

func (mc *MiddlewareChain) modify(modifications ...MiddlewareModification) error {
	for _, mod := range modifications {
		if err := mc.apply(mod); err != nil {
			return err
		}
	}
	return nil
}

func (mc *MiddlewareChain) apply(mod MiddlewareModification) error {
	if mod.DependencyMiddlewareName == "" {
		return fmt.Errorf("cannot perform middleware modification without a dependency: %v", mod)
	}
	if err := checkNames(mod.Middlewares); err != nil {
		return err
	}

	at := slices.IndexFunc(mc.chain, func(mw ReferenceableMiddleware) bool {
		return mw.Name == mod.DependencyMiddlewareName
	})
	if at < 0 {
		return fmt.Errorf("referenced dependency does not exist on chain: %s", mod.DependencyMiddlewareName)
	}

	replacing := mod.Operation == OperationReplace
	if replacing && mc.chain[at].Internal {
		return fmt.Errorf("modification attempts to replace an internal middleware: %s", mc.chain[at].Name)
	}

	existing := mc.Names()
	for _, mw := range mod.Middlewares {
		if replacing && mw.Name == mod.DependencyMiddlewareName {
			continue
		}
		if slices.Contains(existing, mw.Name) {
			return fmt.Errorf("modification will cause a duplicate in chain: %s", mw.Name)
		}
	}

	switch mod.Operation {
	case OperationPrepend:
		mc.chain = slices.Insert(mc.chain, at, mod.Middlewares...)
	case OperationReplace:
		mc.chain = slices.Replace(mc.chain, at, at+1, mod.Middlewares...)
	case OperationAppend:
		mc.chain = slices.Insert(mc.chain, at+1, mod.Middlewares...)
	default:
		return fmt.Errorf("unknown middleware operation: %d", mod.Operation)
	}
	return nil
}
