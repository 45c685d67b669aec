// Package catalog provides the immutable registry of executable demos.
//
// A Catalog is built once from a list of entries and never mutated. Each
// Entry couples a typed parameter struct, a resource policy and a pure
// computation. Lookups never resolve an identifier to anything outside the
// registered set.
//
// Usage:
//
//	entry := catalog.Define(catalog.Info{ID: "echo", MaxRuntime: 5 * time.Second},
//		func(ctx context.Context, p *EchoParams) (map[string]any, error) {
//			return map[string]any{"message": p.Message}, nil
//		})
//	cat, err := catalog.New(entry)
//	e, params, err := cat.Validate("echo", raw)
package catalog
