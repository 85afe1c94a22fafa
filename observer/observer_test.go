package observer

import (
	"context"
	"errors"
	"testing"

	braid "github.com/nevindra/braid"
)

// mockExecutor for observer tests.
type mockExecutor struct {
	name     string
	reply    *braid.Message
	node     braid.Node
	err      error
	chatMode bool
}

func (m *mockExecutor) ExecuteWithTools(_ context.Context, _ *braid.LLMCall, _ []braid.Definition) (*braid.Message, error) {
	return m.reply, m.err
}
func (m *mockExecutor) Execute(_ context.Context, _, _ string) (braid.Node, error) {
	return m.node, m.err
}
func (m *mockExecutor) CanExecute(string) bool   { return true }
func (m *mockExecutor) Name() string             { return m.name }
func (m *mockExecutor) SetChatMode(enabled bool) { m.chatMode = enabled }

// testInstruments creates Instruments against the global OTEL providers
// (no-ops by default), safe for testing delegation without a backend.
func testInstruments(t *testing.T) *Instruments {
	t.Helper()
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	return inst
}

func TestObservedExecutorName(t *testing.T) {
	oe := WrapExecutor(&mockExecutor{name: "remote"}, testInstruments(t))
	if got := oe.Name(); got != "remote" {
		t.Errorf("Name() = %q, want remote", got)
	}
}

func TestObservedExecutorExecuteWithTools(t *testing.T) {
	want := braid.AssistantMessage("hello")
	inner := &mockExecutor{name: "e", reply: want}
	oe := WrapExecutor(inner, testInstruments(t))

	got, err := oe.ExecuteWithTools(context.Background(), &braid.LLMCall{}, nil)
	if err != nil {
		t.Fatalf("ExecuteWithTools: %v", err)
	}
	if got != want {
		t.Errorf("reply = %v, want the inner reply", got)
	}
}

func TestObservedExecutorExecute(t *testing.T) {
	want := braid.NewResult(nil, "done", nil)
	inner := &mockExecutor{name: "e", node: want}
	oe := WrapExecutor(inner, testInstruments(t))

	got, err := oe.Execute(context.Background(), "q", "d")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != braid.Node(want) {
		t.Errorf("node = %v, want the inner outcome", got)
	}
}

func TestObservedExecutorErrorPassesThrough(t *testing.T) {
	wantErr := errors.New("executor unavailable")
	oe := WrapExecutor(&mockExecutor{name: "e", err: wantErr}, testInstruments(t))

	if _, err := oe.ExecuteWithTools(context.Background(), &braid.LLMCall{}, nil); !errors.Is(err, wantErr) {
		t.Errorf("ExecuteWithTools error = %v, want %v", err, wantErr)
	}
	if _, err := oe.Execute(context.Background(), "q", "d"); !errors.Is(err, wantErr) {
		t.Errorf("Execute error = %v, want %v", err, wantErr)
	}
}

func TestObservedExecutorSetChatMode(t *testing.T) {
	inner := &mockExecutor{name: "e"}
	oe := WrapExecutor(inner, testInstruments(t))
	oe.SetChatMode(true)
	if !inner.chatMode {
		t.Error("SetChatMode not forwarded to the inner executor")
	}
}

func TestNewTracerWithoutInit(t *testing.T) {
	// Without Init the global provider is a no-op; span operations must
	// still be safe.
	tracer := NewTracer()
	ctx, span := tracer.Start(context.Background(), "test.span",
		braid.StringAttr("k", "v"),
		braid.IntAttr("n", 1),
		braid.BoolAttr("b", true),
		braid.Float64Attr("f", 0.5),
	)
	if ctx == nil || span == nil {
		t.Fatal("Start returned nil context or span")
	}
	span.SetAttr(braid.StringAttr("after", "start"))
	span.Event("checkpoint", braid.IntAttr("i", 2))
	span.Error(errors.New("recorded"))
	span.End()
}
