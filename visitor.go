package braid

import "iter"

// Visitor transforms a single node. Visit returns the node unchanged when
// it does not apply, preserving identity.
type Visitor interface {
	Visit(n Node) Node
}

// ReplacementVisitor replaces any node satisfying Match with the node
// produced by Replace. All other nodes pass through untouched.
type ReplacementVisitor struct {
	Match   func(Node) bool
	Replace func(Node) Node
}

func (rv *ReplacementVisitor) Visit(n Node) Node {
	if rv.Match(n) {
		return rv.Replace(n)
	}
	return n
}

// Rewrite recursively rewrites every child bottom-up, then applies the
// visitor to the node itself. Identity is preserved when nothing matches:
// the same node pointer comes back and no allocation happens.
//
// Each execution cycle owns its tree, so children are patched in place;
// the caller replaces the root with the returned node.
func Rewrite(n Node, v Visitor) Node {
	switch node := n.(type) {
	case *Text:
		// leaf
	case *Content:
		for i, child := range node.Children {
			node.Children[i] = Rewrite(child, v)
		}
	case *Message:
		if node.Content != nil {
			node.Content = rewriteContent(node.Content, v)
		}
	case *FunctionCall:
		if node.Context != nil {
			node.Context = rewriteContent(node.Context, v)
		}
	case *LLMCall:
		for i, m := range node.Messages {
			if rewritten, ok := Rewrite(m, v).(*Message); ok {
				node.Messages[i] = rewritten
			}
		}
		if node.System != nil {
			if rewritten, ok := Rewrite(node.System, v).(*Message); ok {
				node.System = rewritten
			}
		}
	case *ChainedCall:
		for i, call := range node.Calls {
			if rewritten, ok := Rewrite(call, v).(CallNode); ok {
				node.Calls[i] = rewritten
			}
		}
	case *Result:
		// terminal and immutable
	}
	return n.Accept(v)
}

// rewriteContent rewrites a Content subtree, wrapping the replacement when
// a visitor swaps the Content itself for a different node kind.
func rewriteContent(c *Content, v Visitor) *Content {
	rewritten := Rewrite(c, v)
	if content, ok := rewritten.(*Content); ok {
		return content
	}
	return NewContent(rewritten)
}

// Walk yields every node of the subtree rooted at n in pre-order. The
// sequence is lazy and finite, so existential queries stop at the first
// hit without materialising the whole tree.
func Walk(n Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walk(n, yield)
	}
}

func walk(n Node, yield func(Node) bool) bool {
	if n == nil {
		return true
	}
	if !yield(n) {
		return false
	}
	switch node := n.(type) {
	case *Text:
	case *Content:
		for _, child := range node.Children {
			if !walk(child, yield) {
				return false
			}
		}
	case *Message:
		if node.Content != nil {
			return walk(node.Content, yield)
		}
	case *FunctionCall:
		if node.Context != nil {
			return walk(node.Context, yield)
		}
	case *LLMCall:
		for _, m := range node.Messages {
			if !walk(m, yield) {
				return false
			}
		}
		if node.System != nil {
			return walk(node.System, yield)
		}
	case *ChainedCall:
		for _, call := range node.Calls {
			if !walk(call, yield) {
				return false
			}
		}
	case *Result:
		for _, c := range node.Conversation {
			if !walk(c, yield) {
				return false
			}
		}
	}
	return true
}

// Collect projects every node of the subtree through project, lazily.
func Collect[T any](n Node, project func(Node) T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for node := range Walk(n) {
			if !yield(project(node)) {
				return
			}
		}
	}
}

// ContainsCall reports whether the subtree still holds an unresolved
// CallNode. The scheduler uses this to decide fixed-point termination.
func ContainsCall(n Node) bool {
	for node := range Walk(n) {
		if _, ok := node.(CallNode); ok {
			return true
		}
	}
	return false
}
