package braid

import (
	"context"
	"fmt"
	"strings"
)

// Kind is the declared type of a function parameter. The schema is fixed
// at registration time; dispatch never introspects the callable.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindEnum    Kind = "enum"
)

// Param declares one parameter of a registered function. Enum parameters
// carry their value domain; dispatch coerces supplied strings against it.
type Param struct {
	Name string
	Kind Kind
	// Enum is the closed value domain. Required (non-empty) when Kind is
	// KindEnum, must be empty otherwise.
	Enum []string
}

// Function is a host-supplied callable with its declared signature.
// Fn receives the arguments keyed by parameter name.
type Function struct {
	Name        string
	Description string
	Params      []Param
	Fn          func(ctx context.Context, args map[string]string) (string, error)
}

// Definition is the rendered signature of a registered function, forwarded
// to executors so the model knows which calls it may request.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Signature   string `json:"signature"`
}

// Registry maps call names to host functions. It is read-only after
// construction and safe for concurrent readers; dispatch failures are
// folded into text so a single bad tool never aborts an enclosing flow.
type Registry struct {
	byName map[string]Function
	order  []string
}

// NewRegistry builds a registry from the given functions, validating each
// declared schema once.
func NewRegistry(funcs ...Function) (*Registry, error) {
	r := &Registry{byName: make(map[string]Function, len(funcs))}
	for _, f := range funcs {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a function, validating its schema. Names are unique and
// lookups are exact-match only.
func (r *Registry) Register(f Function) error {
	if f.Name == "" {
		return fmt.Errorf("register: function name is empty")
	}
	if f.Fn == nil {
		return fmt.Errorf("register %s: nil callable", f.Name)
	}
	if _, exists := r.byName[f.Name]; exists {
		return fmt.Errorf("register %s: duplicate function name", f.Name)
	}
	seen := make(map[string]bool, len(f.Params))
	for _, p := range f.Params {
		if p.Name == "" {
			return fmt.Errorf("register %s: parameter with empty name", f.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("register %s: duplicate parameter %s", f.Name, p.Name)
		}
		seen[p.Name] = true
		switch p.Kind {
		case KindString, KindNumber, KindBoolean:
			if len(p.Enum) > 0 {
				return fmt.Errorf("register %s: parameter %s declares a domain but is not an enum", f.Name, p.Name)
			}
		case KindEnum:
			if len(p.Enum) == 0 {
				return fmt.Errorf("register %s: enum parameter %s has an empty domain", f.Name, p.Name)
			}
		default:
			return fmt.Errorf("register %s: parameter %s has unknown kind %q", f.Name, p.Name, p.Kind)
		}
	}
	r.byName[f.Name] = f
	r.order = append(r.order, f.Name)
	return nil
}

// Lookup returns the function registered under exactly the given name.
func (r *Registry) Lookup(name string) (Function, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// Len returns the number of registered functions.
func (r *Registry) Len() int { return len(r.order) }

// Definitions renders every registered signature in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		f := r.byName[name]
		defs = append(defs, Definition{
			Name:        f.Name,
			Description: f.Description,
			Signature:   renderSignature(f),
		})
	}
	return defs
}

func renderSignature(f Function) string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		if p.Kind == KindEnum {
			params[i] = p.Name + ": enum[" + strings.Join(p.Enum, "|") + "]"
		} else {
			params[i] = p.Name + ": " + string(p.Kind)
		}
	}
	return f.Name + "(" + strings.Join(params, ", ") + ")"
}

// DispatchResult is the textual outcome of one dispatch. IsError marks
// payloads that describe a failure rather than a function result; either
// way the text is spliced into the tree and the flow continues.
type DispatchResult struct {
	Content string
	IsError bool
}

// Dispatch executes the named function with the call's positional
// arguments. Enum-typed parameters are coerced against their declared
// domain; a value outside the domain fails the coercion cleanly. Errors
// and panics raised by the callable are captured as textual error
// payloads, never propagated. The only error returned is ErrUnknownFunction,
// which is fatal to the enclosing flow.
func (r *Registry) Dispatch(ctx context.Context, call *FunctionCall) (DispatchResult, error) {
	f, ok := r.Lookup(call.Name)
	if !ok {
		return DispatchResult{}, &ErrUnknownFunction{Name: call.Name}
	}
	if len(call.Args) != len(f.Params) {
		return DispatchResult{
			Content: fmt.Sprintf("the function %s expects %d arguments, got %d", f.Name, len(f.Params), len(call.Args)),
			IsError: true,
		}, nil
	}

	args := make(map[string]string, len(f.Params))
	for i, p := range f.Params {
		value := call.Args[i].Value
		if p.Kind == KindEnum {
			coerced, ok := coerceEnum(value, p.Enum)
			if !ok {
				return DispatchResult{
					Content: fmt.Sprintf("the value %q is not valid for %s.%s (one of %s)",
						value, f.Name, p.Name, strings.Join(p.Enum, ", ")),
					IsError: true,
				}, nil
			}
			value = coerced
		}
		args[p.Name] = value
	}

	out, err := safeInvoke(ctx, f, args)
	if err != nil {
		return DispatchResult{
			Content: fmt.Sprintf("the function %s could not execute: %v", f.Name, err),
			IsError: true,
		}, nil
	}
	return DispatchResult{Content: out}, nil
}

// coerceEnum matches a supplied string against the declared domain,
// tolerating case and surrounding whitespace.
func coerceEnum(value string, domain []string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	for _, d := range domain {
		if strings.EqualFold(trimmed, d) {
			return d, true
		}
	}
	return "", false
}

// safeInvoke calls the function, converting a panic into an error so one
// misbehaving tool cannot take down the scheduler loop.
func safeInvoke(ctx context.Context, f Function, args map[string]string) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return f.Fn(ctx, args)
}
