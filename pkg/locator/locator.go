// Package locator finds the namespace holding a resource by evaluating a
// ranked list of lookup strategies, first match wins.
package locator

import "context"

// Resource identifies what is being searched for.
type Resource struct {
	Kind string
	Name string
}

func (r Resource) String() string {
	return r.Kind + "/" + r.Name
}

// Finder answers whether a resource exists in a namespace.
type Finder interface {
	Exists(ctx context.Context, namespace string, r Resource) (bool, error)
}

// Strategy is one ranked lookup.
type Strategy interface {
	Locate(ctx context.Context) (namespace string, ok bool)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context) (string, bool)

func (f StrategyFunc) Locate(ctx context.Context) (string, bool) {
	return f(ctx)
}

// FirstMatch evaluates strategies in order and returns the first hit.
// A miss is ("", false), never an error.
func FirstMatch(ctx context.Context, strategies ...Strategy) (string, bool) {
	for _, s := range strategies {
		if ctx.Err() != nil {
			return "", false
		}
		if ns, ok := s.Locate(ctx); ok {
			return ns, true
		}
	}
	return "", false
}

// Options tune InNamespaces.
type Options struct {
	// OnError observes finder errors. The candidate is treated as a miss.
	OnError func(namespace string, err error)
}

// InNamespaces builds one strategy per candidate namespace, preserving order
// and dropping empty or repeated names.
func InNamespaces(f Finder, r Resource, opts Options, candidates ...string) []Strategy {
	seen := map[string]bool{}
	strategies := make([]Strategy, 0, len(candidates))

	for _, ns := range candidates {
		if ns == "" || seen[ns] {
			continue
		}
		seen[ns] = true

		namespace := ns
		strategies = append(strategies, StrategyFunc(func(ctx context.Context) (string, bool) {
			found, err := f.Exists(ctx, namespace, r)
			if err != nil {
				if opts.OnError != nil {
					opts.OnError(namespace, err)
				}
				return "", false
			}
			return namespace, found
		}))
	}

	return strategies
}

// Find returns the first candidate namespace containing r.
func Find(ctx context.Context, f Finder, r Resource, opts Options, candidates ...string) (string, bool) {
	return FirstMatch(ctx, InNamespaces(f, r, opts, candidates...)...)
}
