package braid

import (
	"context"
	"log/slog"
)

// DefaultToolRoundLimit bounds how many times one model round trip may ask
// for more function calls before the engine forces termination.
const DefaultToolRoundLimit = 5

// DefaultSystemPrompt is attached to seeded calls unless overridden.
const DefaultSystemPrompt = "Don't make assumptions about what values to plug into functions. " +
	"Ask for clarification if a user request is ambiguous."

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 100
)

// Engine drives the parse/dispatch/rewrite loop: it turns model output
// containing call markers into a tree, dispatches the calls against the
// registry, splices results back, and repeats to a fixed point. One Engine
// may serve many flows; each flow owns its own tree and pending list.
type Engine struct {
	registry     *Registry
	logger       *slog.Logger
	tracer       Tracer
	counter      TokenCounter
	roundLimit   int
	chunkSize    int
	chunkOverlap int
	ranker       Ranker
	markers      []Marker
	systemPrompt string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the function registry calls are resolved against.
// Without one, every marker is kept verbatim as text.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithLogger sets the structured logger. If not set, a no-op logger is
// used (no output).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer. When set, the engine emits spans for flow,
// round-trip, and dispatch operations. Use observer.NewTracer() for an
// OTEL-backed implementation.
func WithTracer(t Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithTokenCounter sets the token counter used for budget checks and
// chunking. Defaults to the character estimator; use NewTiktoken() for
// BPE-accurate counts.
func WithTokenCounter(c TokenCounter) Option {
	return func(e *Engine) { e.counter = c }
}

// WithToolRoundLimit sets the per-round-trip function-call ceiling.
// Values below 1 keep the default.
func WithToolRoundLimit(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.roundLimit = n
		}
	}
}

// WithChunkSize sets the token window used by the summarize strategy.
func WithChunkSize(tokens int) Option {
	return func(e *Engine) {
		if tokens > 0 {
			e.chunkSize = tokens
		}
	}
}

// WithChunkOverlap sets the token overlap between consecutive chunks.
func WithChunkOverlap(tokens int) Option {
	return func(e *Engine) {
		if tokens >= 0 {
			e.chunkOverlap = tokens
		}
	}
}

// WithRanker sets the ranker required by the search strategy.
func WithRanker(r Ranker) Option {
	return func(e *Engine) { e.ranker = r }
}

// WithMarkers replaces the marker conventions the parser recognises.
// Conventions are checked in the given order.
func WithMarkers(markers []Marker) Option {
	return func(e *Engine) {
		if len(markers) > 0 {
			e.markers = markers
		}
	}
}

// WithSystemPrompt sets the system preamble attached to seeded calls.
// An empty string removes the preamble entirely.
func WithSystemPrompt(s string) Option {
	return func(e *Engine) { e.systemPrompt = s }
}

// New builds an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:       nopLogger,
		counter:      Estimator{},
		roundLimit:   DefaultToolRoundLimit,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		markers:      DefaultMarkers,
		systemPrompt: DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// nopLogger is a logger that discards all output. Used when WithLogger is not set.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Rewrite normalises a tree: every Text node is scanned for call markers
// and split into interleaved Text and FunctionCall children. Usable
// standalone; idempotent once no residual markers remain.
func (e *Engine) Rewrite(n Node) Node {
	return Rewrite(n, &ReplacementVisitor{
		Match:   func(n Node) bool { _, ok := n.(*Text); return ok },
		Replace: func(n Node) Node { return e.parseText(n.(*Text)) },
	})
}

// definitions renders the registry's signatures for the executor to
// advertise to the model.
func (e *Engine) definitions() []Definition {
	if e.registry == nil {
		return nil
	}
	return e.registry.Definitions()
}

// flowState tracks bookkeeping for one draining flow: which message
// produced each pending call, which round trip produced each message, and
// how many tool rounds each round trip has consumed.
type flowState struct {
	parent map[*FunctionCall]*Message
	origin map[*Message]*LLMCall
	rounds map[*LLMCall]int
}

func newFlowState() *flowState {
	return &flowState{
		parent: make(map[*FunctionCall]*Message),
		origin: make(map[*Message]*LLMCall),
		rounds: make(map[*LLMCall]int),
	}
}

// conversation snapshots the exchange that led to a terminal message.
func (st *flowState) conversation(msg *Message) []Node {
	origin := st.origin[msg]
	if origin == nil {
		return []Node{msg}
	}
	conv := make([]Node, 0, len(origin.Messages)+1)
	for _, m := range origin.Messages {
		conv = append(conv, m)
	}
	return append(conv, msg)
}

// ExecuteFlow drains the flow to completion and returns every terminal
// Result in emission order. The loop has no global iteration cap: forward
// progress comes from each item either resolving into text or consuming
// one of its round trip's bounded tool rounds. Cancelling ctx aborts the
// whole flow; already-emitted results are returned alongside the error.
//
// Dispatch failures are folded into the tree as text and never abort the
// flow. An unknown function name is fatal and surfaces to the caller;
// ChainedCall processing provides no extra guard, so an unknown function
// mid-batch aborts that batch.
func (e *Engine) ExecuteFlow(ctx context.Context, flow *Flow[Node]) ([]*Result, error) {
	ctx, span := e.startSpan(ctx, "engine.flow", IntAttr("pending", flow.Len()))
	defer e.endSpan(span)

	st := newFlowState()
	var results []*Result
	for !flow.IsEmpty() {
		if err := ctx.Err(); err != nil {
			e.spanError(span, err)
			return results, err
		}
		item, _ := flow.Pop()
		switch node := item.(type) {
		case *LLMCall:
			res, err := e.runRoundTrip(ctx, flow, st, node)
			if err != nil {
				e.spanError(span, err)
				return results, err
			}
			if res != nil {
				results = append(results, res)
			}
		case *ChainedCall:
			batch, err := e.runChained(ctx, flow, node)
			results = append(results, batch...)
			if err != nil {
				e.spanError(span, err)
				return results, err
			}
		case *FunctionCall:
			if err := e.runFunctionCall(ctx, flow, st, node); err != nil {
				e.spanError(span, err)
				return results, err
			}
		case *Message:
			res, err := e.revisitMessage(ctx, flow, st, node)
			if err != nil {
				e.spanError(span, err)
				return results, err
			}
			if res != nil {
				results = append(results, res)
			}
		case *Result:
			results = append(results, node)
		default:
			results = append(results, NewResult([]Node{node}, node.String(), nil))
		}
	}
	if span != nil {
		span.SetAttr(IntAttr("results", len(results)))
	}
	return results, nil
}

// runRoundTrip performs one tool-advertising model round trip. The reply
// is rewritten through the parser; a reply still holding call nodes goes
// back onto the flow for resolution, anything else is terminal.
func (e *Engine) runRoundTrip(ctx context.Context, flow *Flow[Node], st *flowState, call *LLMCall) (*Result, error) {
	ctx, span := e.startSpan(ctx, "engine.round_trip", StringAttr("executor", call.Executor.Name()))
	defer e.endSpan(span)

	reply, err := call.Executor.ExecuteWithTools(ctx, call, e.definitions())
	if err != nil {
		e.spanError(span, err)
		return nil, err
	}
	reply.Role = RoleAssistant
	e.Rewrite(reply)

	if ContainsCall(reply) {
		st.origin[reply] = call
		flow.Push(reply)
		return nil, nil
	}
	conv := make([]Node, 0, len(call.Messages)+1)
	for _, m := range call.Messages {
		conv = append(conv, m)
	}
	conv = append(conv, reply)
	return NewResult(conv, reply.String(), nil), nil
}

// runChained iterates the batch in order over the plain (non-tool) path.
// A child yielding a terminal outcome emits a Result immediately; any
// other outcome goes back onto the flow for further resolution.
func (e *Engine) runChained(ctx context.Context, flow *Flow[Node], chain *ChainedCall) ([]*Result, error) {
	ctx, span := e.startSpan(ctx, "engine.chained", IntAttr("calls", len(chain.Calls)))
	defer e.endSpan(span)

	var results []*Result
	for _, child := range chain.Calls {
		if err := ctx.Err(); err != nil {
			e.spanError(span, err)
			return results, err
		}
		call, ok := child.(*LLMCall)
		if !ok {
			flow.Push(child)
			continue
		}
		out, err := call.Executor.Execute(ctx, call.String(), call.Data)
		if err != nil {
			e.spanError(span, err)
			return results, err
		}
		switch outcome := out.(type) {
		case *Result:
			results = append(results, outcome)
		case nil:
			e.logger.Warn("executor returned no outcome", "executor", call.Executor.Name())
		default:
			flow.Push(outcome)
		}
	}
	return results, nil
}

// runFunctionCall dispatches one pending call and splices the result text
// over every structurally-equal occurrence in the producing message. The
// producing message is recorded when the call is pushed; Peek(-1) is the
// fallback when no record exists (caller-assembled flows).
func (e *Engine) runFunctionCall(ctx context.Context, flow *Flow[Node], st *flowState, call *FunctionCall) error {
	parent := st.parent[call]
	if parent == nil {
		for _, off := range []int{-1, 0} {
			if n, ok := flow.Peek(off); ok {
				if m, ok := n.(*Message); ok {
					parent = m
					break
				}
			}
		}
	}
	// A structurally-equal sibling dispatched earlier in this round has
	// already replaced this occurrence.
	if parent != nil && !occursIn(parent, call) {
		return nil
	}

	ctx, span := e.startSpan(ctx, "engine.dispatch", StringAttr("function", call.Name))
	defer e.endSpan(span)

	if e.registry == nil {
		err := &ErrUnknownFunction{Name: call.Name}
		e.spanError(span, err)
		return err
	}
	dr, err := e.registry.Dispatch(ctx, call)
	if err != nil {
		e.spanError(span, err)
		return err
	}
	if dr.IsError {
		e.logger.Warn("function dispatch failed", "function", call.Name, "error", dr.Content)
		if span != nil {
			span.SetAttr(BoolAttr("dispatch_error", true))
		}
	} else {
		e.logger.Debug("function dispatched", "function", call.Name)
	}
	if parent == nil {
		e.logger.Warn("dispatched call has no producing message to splice into", "function", call.Name)
		return nil
	}
	replaceCall(parent, call, dr.Content)
	return nil
}

// revisitMessage handles an assistant message re-entering the flow. The
// message is re-parsed first: dispatch results spliced as text may carry
// fresh markers. A message still holding calls consumes one tool round and
// goes back with its calls ordered so they resolve before the revisit;
// past the ceiling, residual calls flatten to their literal text and the
// message terminates. A call-free message is terminal.
func (e *Engine) revisitMessage(ctx context.Context, flow *Flow[Node], st *flowState, msg *Message) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.Rewrite(msg)
	calls := containedCalls(msg)
	if len(calls) == 0 {
		return NewResult(st.conversation(msg), msg.String(), nil), nil
	}

	origin := st.origin[msg]
	st.rounds[origin]++
	if st.rounds[origin] > e.roundLimit {
		e.logger.Warn("tool round limit reached, flattening remaining calls",
			"rounds", st.rounds[origin]-1, "limit", e.roundLimit)
		flattenCalls(msg)
		return NewResult(st.conversation(msg), msg.String(), nil), nil
	}

	for _, c := range calls {
		if fc, ok := c.(*FunctionCall); ok {
			st.parent[fc] = msg
		}
	}
	if flow.Discipline() == Stack {
		flow.Push(msg)
		for _, c := range calls {
			flow.Push(c)
		}
	} else {
		for _, c := range calls {
			flow.Push(c)
		}
		flow.Push(msg)
	}
	return nil, nil
}

// containedCalls collects every call node in the subtree, in tree order.
func containedCalls(n Node) []CallNode {
	var calls []CallNode
	for node := range Walk(n) {
		if c, ok := node.(CallNode); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

// occursIn reports whether this exact call instance is still in the tree.
func occursIn(root Node, call *FunctionCall) bool {
	for n := range Walk(root) {
		if fc, ok := n.(*FunctionCall); ok && fc == call {
			return true
		}
	}
	return false
}

// replaceCall rewrites every occurrence structurally equal to call into
// the given literal text.
func replaceCall(root Node, call *FunctionCall, text string) {
	Rewrite(root, &ReplacementVisitor{
		Match: func(n Node) bool {
			fc, ok := n.(*FunctionCall)
			return ok && sameCall(fc, call)
		},
		Replace: func(Node) Node { return &Text{Text: text} },
	})
}

// flattenCalls rewrites every residual call node into its literal text.
func flattenCalls(n Node) {
	Rewrite(n, &ReplacementVisitor{
		Match: func(n Node) bool {
			_, ok := n.(CallNode)
			return ok
		},
		Replace: func(n Node) Node { return &Text{Text: n.String()} },
	})
}

// --- span helpers (tracer is optional) ---

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span) {
	if e.tracer == nil {
		return ctx, nil
	}
	return e.tracer.Start(ctx, name, attrs...)
}

func (e *Engine) endSpan(span Span) {
	if span != nil {
		span.End()
	}
}

func (e *Engine) spanError(span Span, err error) {
	if span != nil {
		span.Error(err)
	}
}
