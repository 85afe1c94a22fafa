package braid

import (
	"context"
	"fmt"
)

// Strategy selects how input that exceeds the token budget is handled.
type Strategy string

const (
	// StrategyReject fails immediately when the budget is exceeded.
	StrategyReject Strategy = "reject"
	// StrategySearch splits data into relevance-ranked sections via the
	// configured Ranker, one call per section.
	StrategySearch Strategy = "search"
	// StrategySummarize splits data into fixed-size overlapping token
	// chunks, one call per chunk.
	StrategySummarize Strategy = "summarize"
)

// Ranker splits a data payload into relevance-ranked sections for the
// search strategy. Ranking is external to the engine: vector retrieval,
// BM25, or anything else the host wires in.
type Ranker interface {
	Rank(ctx context.Context, query, data string) ([]string, error)
}

// Parse seeds a queue-discipline flow for the given prompt/data pair.
// Input within the budget (or with no budget, maxTokens <= 0) seeds a
// single call; oversized input is handled per the strategy, the split
// calls bundled into one ChainedCall. maxBatches caps the number of
// summarize chunks, 0 meaning all. The executor is bound into every
// seeded call; drain the returned flow with ExecuteFlow.
func (e *Engine) Parse(ctx context.Context, exec Executor, prompt, data string, maxTokens int, strategy Strategy, maxBatches int) (*Flow[Node], error) {
	ctx, span := e.startSpan(ctx, "engine.parse", StringAttr("strategy", string(strategy)))
	defer e.endSpan(span)

	total := e.counter.Count(prompt) + e.counter.Count(data)
	if span != nil {
		span.SetAttr(IntAttr("tokens", total), IntAttr("budget", maxTokens))
	}

	flow := NewFlow[Node](Queue)
	if maxTokens <= 0 || total <= maxTokens {
		flow.Push(e.newCall(exec, prompt, data))
		return flow, nil
	}

	switch strategy {
	case StrategyReject:
		err := &ErrTokenBudget{Tokens: total, Budget: maxTokens}
		e.spanError(span, err)
		return nil, err

	case StrategySearch:
		if e.ranker == nil {
			err := fmt.Errorf("parse: search strategy requires a ranker")
			e.spanError(span, err)
			return nil, err
		}
		sections, err := e.ranker.Rank(ctx, prompt, data)
		if err != nil {
			e.spanError(span, err)
			return nil, fmt.Errorf("parse: rank data: %w", err)
		}
		if len(sections) == 0 {
			err := fmt.Errorf("parse: ranker returned no sections")
			e.spanError(span, err)
			return nil, err
		}
		flow.Push(e.newChain(exec, prompt, sections))
		e.logger.Debug("seeded search batch", "sections", len(sections))
		return flow, nil

	case StrategySummarize:
		chunks := chunkByTokens(data, e.counter, e.chunkSize, e.chunkOverlap)
		if maxBatches > 0 && len(chunks) > maxBatches {
			chunks = chunks[:maxBatches]
		}
		if len(chunks) == 0 {
			flow.Push(e.newCall(exec, prompt, data))
			return flow, nil
		}
		flow.Push(e.newChain(exec, prompt, chunks))
		e.logger.Debug("seeded summarize batch", "chunks", len(chunks))
		return flow, nil

	default:
		err := fmt.Errorf("parse: unknown strategy %q", strategy)
		e.spanError(span, err)
		return nil, err
	}
}

func (e *Engine) newCall(exec Executor, prompt, data string) *LLMCall {
	call := &LLMCall{
		Messages: []*Message{UserMessage(prompt)},
		Data:     data,
		Executor: exec,
	}
	if e.systemPrompt != "" {
		call.System = SystemMessage(e.systemPrompt)
	}
	return call
}

func (e *Engine) newChain(exec Executor, prompt string, sections []string) *ChainedCall {
	calls := make([]CallNode, len(sections))
	for i, section := range sections {
		calls[i] = e.newCall(exec, prompt, section)
	}
	return &ChainedCall{Calls: calls}
}
