package braid

import (
	"strings"
	"unicode"
)

// Marker is one call-marker convention: a (start, end) delimiter pair.
// Conventions are checked pairwise in order, so an explicit list replaces
// any guesswork about which delimiter opened a directive.
type Marker struct {
	Start string
	End   string
}

// DefaultMarkers is the ordered list of conventions the parser recognises.
// Double brackets are checked before the bare single bracket so that
// `[[…]]` never half-matches as `[…)]`.
var DefaultMarkers = []Marker{
	{Start: "[[", End: "]]"},
	{Start: "```python", End: "```"},
	{Start: "[", End: ")]"},
}

// markerMatch locates one fully-closed marker pair inside a text segment.
type markerMatch struct {
	marker     Marker
	start      int // index of the start delimiter
	innerStart int // index just past the start delimiter
	innerEnd   int // index of the end delimiter
	end        int // index just past the end delimiter
}

// findMarker scans left-to-right for the earliest fully-closed marker pair.
// A start delimiter without a matching end is not a match, which is what
// guarantees the scan loop terminates on malformed input: unterminated
// markers stay verbatim in the trailing text. Ties on position go to the
// earlier convention in the list.
func findMarker(text string, markers []Marker) (markerMatch, bool) {
	best := markerMatch{start: -1}
	for _, m := range markers {
		s := strings.Index(text, m.Start)
		if s < 0 {
			continue
		}
		innerStart := s + len(m.Start)
		e := strings.Index(text[innerStart:], m.End)
		if e < 0 {
			continue
		}
		if best.start < 0 || s < best.start {
			best = markerMatch{
				marker:     m,
				start:      s,
				innerStart: innerStart,
				innerEnd:   innerStart + e,
				end:        innerStart + e + len(m.End),
			}
		}
	}
	return best, best.start >= 0
}

// parseText splits one Text node into a Content interleaving literal
// segments and registry-resolved FunctionCall nodes, in original order.
// Parsing never fails: anything that does not resolve (unknown name,
// arity mismatch, malformed expression) keeps its marker text verbatim.
// Text with no complete marker pair is returned unchanged.
func (e *Engine) parseText(t *Text) Node {
	text := t.Text
	var seq []Node
	for {
		m, ok := findMarker(text, e.markers)
		if !ok {
			break
		}
		expr := strings.TrimSpace(text[m.innerStart:m.innerEnd])
		raw := text[m.start:m.end]
		rest := text[m.end:]

		if before := text[:m.start]; before != "" {
			seq = append(seq, &Text{Text: before})
		}
		if fc := e.resolveCall(expr, raw); fc != nil {
			fc.Context = TextContent(trailingContext(rest))
			seq = append(seq, fc)
		} else {
			e.logger.Debug("call marker kept verbatim", "expr", expr)
			seq = append(seq, &Text{Text: raw})
		}
		text = rest
	}
	if seq == nil {
		return t
	}
	if text != "" {
		seq = append(seq, &Text{Text: text})
	}
	return NewContent(seq...)
}

// trailingContext returns the free text following a marker on the same
// line, used as the call's context annotation.
func trailingContext(rest string) string {
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}

// resolveCall turns a marker's inner expression into a FunctionCall by
// exact-name lookup against the registry. A qualifier prefix such as
// `Helpers.search` is normalised to its final segment before the lookup;
// the lookup itself is exact, never substring. Returns nil when the
// expression cannot be resolved.
func (e *Engine) resolveCall(expr, raw string) *FunctionCall {
	if e.registry == nil {
		return nil
	}
	name, values, ok := splitCallExpr(expr)
	if !ok {
		return nil
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	f, ok := e.registry.Lookup(name)
	if !ok {
		return nil
	}
	if len(values) != len(f.Params) {
		return nil
	}
	args := make([]Argument, len(f.Params))
	types := make([]TypeTag, len(f.Params))
	for i, p := range f.Params {
		args[i] = Argument{Name: p.Name, Value: values[i]}
		types[i] = TypeTag{Name: p.Name, Kind: p.Kind}
	}
	return &FunctionCall{Name: f.Name, Args: args, Types: types, raw: raw}
}

// splitCallExpr parses `name(arg, …)` into its name and argument values.
// A missing closing paren is tolerated: conventions whose end delimiter
// swallows it (such as `[` … `)]`) hand over the expression without one.
func splitCallExpr(expr string) (string, []string, bool) {
	expr = strings.TrimSpace(expr)
	open := strings.IndexByte(expr, '(')
	if open <= 0 {
		return "", nil, false
	}
	closing := strings.LastIndexByte(expr, ')')
	if closing < open {
		closing = len(expr)
	}
	name := strings.TrimSpace(expr[:open])
	if !validCallName(name) {
		return "", nil, false
	}
	return name, splitArgs(expr[open+1 : closing]), true
}

func validCallName(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			return false
		}
	}
	return s != ""
}

// splitArgs splits an argument list on top-level commas, honouring single
// and double quotes and nested parentheses. Quotes are stripped from the
// returned values. An unterminated quote yields what was accumulated
// rather than an error.
func splitArgs(s string) []string {
	var args []string
	var cur strings.Builder
	var quote rune
	depth := 0
	flush := func() {
		args = append(args, strings.TrimSpace(cur.String()))
		cur.Reset()
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case r == ',' && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if strings.TrimSpace(cur.String()) != "" || len(args) > 0 {
		flush()
	}
	return args
}
