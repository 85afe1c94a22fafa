// Package braid is a tool-augmented completion execution engine for Go.
//
// It turns free-form model output containing embedded call markers into a
// resolvable tree, dispatches those calls against a host-supplied function
// registry, splices the results back, and repeats until no call remains
// unresolved, subject to a bounded round ceiling.
//
// # Quick Start
//
// Register host functions, seed a flow, and drain it:
//
//	registry, err := braid.NewRegistry(braid.Function{
//		Name:        "search",
//		Description: "Web search.",
//		Params:      []braid.Param{{Name: "query", Kind: braid.KindString}},
//		Fn: func(ctx context.Context, args map[string]string) (string, error) {
//			return webSearch(ctx, args["query"])
//		},
//	})
//
//	engine := braid.New(
//		braid.WithRegistry(registry),
//		braid.WithLogger(slog.Default()),
//	)
//
//	flow, err := engine.Parse(ctx, executor,
//		"Who is the CEO?", document, 4096, braid.StrategySummarize, 0)
//	results, err := engine.ExecuteFlow(ctx, flow)
//
// # Core Interfaces
//
// The root package defines the contracts that hosts implement:
//
//   - [Executor] — model-API round trips (transport lives outside the core)
//   - [Ranker] — relevance-ranked data splitting for the search strategy
//   - [TokenCounter] — budget measurement ([Estimator] and [Tiktoken] included)
//   - [Tracer] — span emission (observer provides an OTEL-backed one)
//
// # Parsing
//
// The parser scans text for an ordered list of marker conventions (see
// [DefaultMarkers]), resolves each inner expression against the registry,
// and keeps anything unresolvable verbatim as text; parsing never fails.
// [Engine.Rewrite] exposes this normalisation standalone.
package braid
