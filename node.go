package braid

import (
	"fmt"
	"strings"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
)

// Node is the closed family of tree nodes produced by parsing model output.
// The hierarchy is sealed: Text, Content, Message, the CallNode variants
// (FunctionCall, LLMCall, ChainedCall), and Result. Consumers dispatch with
// an exhaustive type switch; a new node kind is a compile-time change here,
// not a runtime surprise.
type Node interface {
	// Accept performs double dispatch through a Visitor.
	Accept(v Visitor) Node
	// String renders the node back to plain text.
	String() string

	node()
}

// CallNode marks the node variants that represent pending work: a function
// invocation, a model round trip, or a batch of model round trips. A tree
// containing no CallNode has reached its fixed point.
type CallNode interface {
	Node
	callNode()
}

// Text is a literal string segment.
type Text struct {
	Text string
}

func (t *Text) Accept(v Visitor) Node { return v.Visit(t) }
func (t *Text) String() string        { return t.Text }
func (t *Text) node()                 {}

// Content is an ordered sequence of child nodes. Insertion order is
// significant: String concatenates the children back in place.
type Content struct {
	Children []Node
}

// NewContent builds a Content from the given children.
func NewContent(children ...Node) *Content {
	return &Content{Children: children}
}

// TextContent builds a Content holding a single Text child.
func TextContent(s string) *Content {
	return NewContent(&Text{Text: s})
}

func (c *Content) Accept(v Visitor) Node { return v.Visit(c) }
func (c *Content) node()                 {}

func (c *Content) String() string {
	var b strings.Builder
	for _, child := range c.Children {
		b.WriteString(child.String())
	}
	return b.String()
}

// Message wraps a Content with the role that authored it.
type Message struct {
	Role    Role
	Content *Content
}

// UserMessage builds a user-role message from plain text.
func UserMessage(text string) *Message {
	return &Message{Role: RoleUser, Content: TextContent(text)}
}

// SystemMessage builds a system-role message from plain text.
func SystemMessage(text string) *Message {
	return &Message{Role: RoleSystem, Content: TextContent(text)}
}

// AssistantMessage builds an assistant-role message from plain text.
func AssistantMessage(text string) *Message {
	return &Message{Role: RoleAssistant, Content: TextContent(text)}
}

func (m *Message) Accept(v Visitor) Node { return v.Visit(m) }
func (m *Message) node()                 {}

func (m *Message) String() string {
	if m.Content == nil {
		return ""
	}
	return m.Content.String()
}

// Argument is one positional argument of a FunctionCall, paired with the
// parameter name it was matched to.
type Argument struct {
	Name  string
	Value string
}

// TypeTag records the declared kind of one FunctionCall argument.
type TypeTag struct {
	Name string
	Kind Kind
}

// FunctionCall is a parsed, registry-resolved call directive awaiting
// dispatch. Args and Types are ordered to match the registered signature;
// len(Args) == len(Types) == the signature's arity. Context carries the
// free text that followed the marker, and raw holds the original marker
// text for literal flattening.
type FunctionCall struct {
	Name    string
	Args    []Argument
	Types   []TypeTag
	Context *Content

	raw string
}

func (f *FunctionCall) Accept(v Visitor) Node { return v.Visit(f) }
func (f *FunctionCall) node()                 {}
func (f *FunctionCall) callNode()             {}

// String renders the call expression, e.g. `search('CEO of AMD')`.
func (f *FunctionCall) String() string {
	if f.raw != "" {
		return f.raw
	}
	values := make([]string, len(f.Args))
	for i, a := range f.Args {
		values[i] = fmt.Sprintf("%q", a.Value)
	}
	return f.Name + "(" + strings.Join(values, ", ") + ")"
}

// Signature renders the declared parameter list, e.g. `search(query: string)`.
func (f *FunctionCall) Signature() string {
	params := make([]string, len(f.Types))
	for i, t := range f.Types {
		params[i] = t.Name + ": " + string(t.Kind)
	}
	return f.Name + "(" + strings.Join(params, ", ") + ")"
}

// sameCall reports structural equality on the (name, args) pair. Dispatch
// replaces every occurrence for which this holds, not only the first.
func sameCall(a, b *FunctionCall) bool {
	if a.Name != b.Name || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return false
		}
	}
	return true
}

// LLMCall is one pending model round trip: a message history, a System
// preamble, and a Data payload, bound to the Executor that will carry it
// out. The executor is a capability supplied by the caller and outlives
// the call; the call does not own it.
type LLMCall struct {
	Messages []*Message
	System   *Message
	Data     string
	Executor Executor
}

func (l *LLMCall) Accept(v Visitor) Node { return v.Visit(l) }
func (l *LLMCall) node()                 {}
func (l *LLMCall) callNode()             {}

func (l *LLMCall) String() string {
	parts := make([]string, 0, len(l.Messages))
	for _, m := range l.Messages {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, "\n")
}

// ChainedCall batches multiple calls issued to cover content that exceeds
// one call's token budget. Calls is non-empty and ordered.
type ChainedCall struct {
	Calls []CallNode
}

func (c *ChainedCall) Accept(v Visitor) Node { return v.Visit(c) }
func (c *ChainedCall) node()                 {}
func (c *ChainedCall) callNode()             {}

func (c *ChainedCall) String() string {
	parts := make([]string, len(c.Calls))
	for i, call := range c.Calls {
		parts[i] = call.String()
	}
	return strings.Join(parts, "\n")
}

// Result is a terminal outcome: a snapshot of the conversation that
// produced it, the outcome value, and an optional error. Immutable once
// constructed.
type Result struct {
	ID           string
	Conversation []Node
	Value        string
	Err          error
}

// NewResult builds a Result with a fresh identifier.
func NewResult(conversation []Node, value string, err error) *Result {
	return &Result{ID: NewID(), Conversation: conversation, Value: value, Err: err}
}

func (r *Result) Accept(v Visitor) Node { return v.Visit(r) }
func (r *Result) node()                 {}

func (r *Result) String() string {
	var b strings.Builder
	b.WriteString("Result(")
	b.WriteString(r.Value)
	if r.Err != nil {
		b.WriteString(", error: ")
		b.WriteString(r.Err.Error())
	}
	b.WriteString(")")
	for _, n := range r.Conversation {
		b.WriteString("\n  ")
		b.WriteString(n.String())
	}
	return b.String()
}
