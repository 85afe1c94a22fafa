package braid

import "context"

// Executor carries model round trips on behalf of the engine. It is a
// capability supplied by the caller: the engine binds it into LLMCall
// nodes but never constructs, pools, or retries one. Transport concerns
// (API clients, rate limits, streaming) live entirely behind it.
type Executor interface {
	// ExecuteWithTools runs the call's conversation with the registered
	// function definitions advertised to the model, returning the
	// assistant reply.
	ExecuteWithTools(ctx context.Context, call *LLMCall, defs []Definition) (*Message, error)
	// Execute answers a free-form query over a data payload.
	Execute(ctx context.Context, query, data string) (Node, error)
	// CanExecute reports whether this executor accepts the query.
	CanExecute(query string) bool
	// Name identifies the executor in logs, spans, and errors.
	Name() string
	// SetChatMode toggles multi-turn conversation handling.
	SetChatMode(enabled bool)
}
