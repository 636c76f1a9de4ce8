// Package emit serializes a lowered step program into the target YAML
// format. Mapping key order is significant (steps execute in document
// order), so the encoder works on yaml.Node trees instead of Go maps.
package emit

import (
	"bytes"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/aajanki/ts2workflows-sub001/pkg/expr"
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
	"github.com/aajanki/ts2workflows-sub001/pkg/types"
)

// Program renders the whole program as a YAML document, one top-level key
// per subworkflow, in program order.
func Program(p *step.Program) ([]byte, error) {
	root := mapping()
	for _, sub := range p.Subworkflows {
		body, err := subworkflow(sub)
		if err != nil {
			return nil, err
		}
		appendPair(root, scalarString(sub.Name), body)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func subworkflow(sub *step.Subworkflow) (*yaml.Node, error) {
	body := mapping()

	if len(sub.Params) > 0 {
		params := sequence()
		for _, p := range sub.Params {
			if p.HasDefault {
				pair := mapping()
				pair.Style = yaml.FlowStyle
				appendPair(pair, scalarString(p.Name), literalValue(p.Default))
				params.Content = append(params.Content, pair)
			} else {
				params.Content = append(params.Content, scalarString(p.Name))
			}
		}
		params.Style = yaml.FlowStyle
		appendPair(body, scalarString("params"), params)
	}

	steps, err := stepList(sub.Steps)
	if err != nil {
		return nil, err
	}
	appendPair(body, scalarString("steps"), steps)
	return body, nil
}

func stepList(steps []*step.Step) (*yaml.Node, error) {
	seq := sequence()
	for _, s := range steps {
		body, err := stepBody(s)
		if err != nil {
			return nil, err
		}
		entry := mapping()
		appendPair(entry, scalarString(s.Name), body)
		seq.Content = append(seq.Content, entry)
	}
	return seq, nil
}

func stepBody(s *step.Step) (*yaml.Node, error) {
	if s.IsPlaceholder() {
		return nil, types.NewInternalError("emitting unresolved jump placeholder %q", s.PlaceholderLabel)
	}

	body := mapping()
	switch {
	case s.Assign != nil:
		appendPair(body, scalarString("assign"), assignList(s.Assign))
	case s.Call != nil:
		emitCall(body, s.Call)
	case s.Switch != nil:
		branches, err := switchBranches(s.Switch)
		if err != nil {
			return nil, err
		}
		appendPair(body, scalarString("switch"), branches)
	case s.For != nil:
		f, err := forBody(s.For)
		if err != nil {
			return nil, err
		}
		appendPair(body, scalarString("for"), f)
	case s.Parallel != nil:
		p, err := parallelBody(s.Parallel)
		if err != nil {
			return nil, err
		}
		appendPair(body, scalarString("parallel"), p)
	case s.Try != nil:
		if err := emitTry(body, s.Try); err != nil {
			return nil, err
		}
	case s.Raise != nil:
		appendPair(body, scalarString("raise"), outputValue(s.Raise))
	case s.HasReturn:
		appendPair(body, scalarString("return"), outputValue(s.Return))
	}

	if s.Next != "" {
		appendPair(body, scalarString("next"), scalarString(s.Next))
	}
	return body, nil
}

func assignList(assignments []step.Assignment) *yaml.Node {
	seq := sequence()
	for _, a := range assignments {
		pair := mapping()
		appendPair(pair, scalarString(expr.Render(a.Target)), outputValue(a.Value))
		seq.Content = append(seq.Content, pair)
	}
	return seq
}

func emitCall(body *yaml.Node, c *step.Call) {
	appendPair(body, scalarString("call"), scalarString(c.Function))
	if len(c.Args) > 0 {
		args := mapping()
		for _, a := range c.Args {
			appendPair(args, scalarString(a.Name), outputValue(a.Value))
		}
		appendPair(body, scalarString("args"), args)
	}
	if c.Result != "" {
		appendPair(body, scalarString("result"), scalarString(c.Result))
	}
}

func switchBranches(branches []step.Branch) (*yaml.Node, error) {
	seq := sequence()
	for i := range branches {
		b := &branches[i]
		entry := mapping()
		appendPair(entry, scalarString("condition"), outputValue(b.Condition))
		if len(b.Steps) > 0 {
			steps, err := stepList(b.Steps)
			if err != nil {
				return nil, err
			}
			appendPair(entry, scalarString("steps"), steps)
		}
		switch {
		case b.HasReturn:
			appendPair(entry, scalarString("return"), outputValue(b.Return))
		case b.Raise != nil:
			appendPair(entry, scalarString("raise"), outputValue(b.Raise))
		case b.Next != "":
			appendPair(entry, scalarString("next"), scalarString(b.Next))
		}
		seq.Content = append(seq.Content, entry)
	}
	return seq, nil
}

func forBody(f *step.For) (*yaml.Node, error) {
	body := mapping()
	appendPair(body, scalarString("value"), scalarString(f.Value))
	if f.Index != "" {
		appendPair(body, scalarString("index"), scalarString(f.Index))
	}
	if f.Range != nil {
		rng := sequence()
		rng.Style = yaml.FlowStyle
		rng.Content = append(rng.Content, outputValue(f.Range[0]), outputValue(f.Range[1]))
		appendPair(body, scalarString("range"), rng)
	} else {
		appendPair(body, scalarString("in"), outputValue(f.In))
	}
	steps, err := stepList(f.Steps)
	if err != nil {
		return nil, err
	}
	appendPair(body, scalarString("steps"), steps)
	return body, nil
}

func parallelBody(p *step.Parallel) (*yaml.Node, error) {
	body := mapping()
	if len(p.Shared) > 0 {
		shared := sequence()
		shared.Style = yaml.FlowStyle
		for _, v := range p.Shared {
			shared.Content = append(shared.Content, scalarString(v))
		}
		appendPair(body, scalarString("shared"), shared)
	}
	if p.ConcurrencyLimit > 0 {
		appendPair(body, scalarString("concurrency_limit"), scalarInt(int64(p.ConcurrencyLimit)))
	}
	if p.ExceptionPolicy != "" {
		appendPair(body, scalarString("exception_policy"), scalarString(p.ExceptionPolicy))
	}
	if p.For != nil {
		f, err := forBody(p.For)
		if err != nil {
			return nil, err
		}
		appendPair(body, scalarString("for"), f)
	}
	if len(p.Branches) > 0 {
		branches := sequence()
		for _, b := range p.Branches {
			steps, err := stepList(b.Steps)
			if err != nil {
				return nil, err
			}
			inner := mapping()
			appendPair(inner, scalarString("steps"), steps)
			entry := mapping()
			appendPair(entry, scalarString(b.Name), inner)
			branches.Content = append(branches.Content, entry)
		}
		appendPair(body, scalarString("branches"), branches)
	}
	return body, nil
}

func emitTry(body *yaml.Node, t *step.Try) error {
	steps, err := stepList(t.Try)
	if err != nil {
		return err
	}
	inner := mapping()
	appendPair(inner, scalarString("steps"), steps)
	appendPair(body, scalarString("try"), inner)

	if t.Retry != nil {
		appendPair(body, scalarString("retry"), retryBody(t.Retry))
	}
	if t.Except != nil {
		except := mapping()
		if t.Except.As != "" {
			appendPair(except, scalarString("as"), scalarString(t.Except.As))
		}
		handler, err := stepList(t.Except.Steps)
		if err != nil {
			return err
		}
		appendPair(except, scalarString("steps"), handler)
		appendPair(body, scalarString("except"), except)
	}
	return nil
}

func retryBody(r *step.Retry) *yaml.Node {
	if r.Policy != nil {
		return outputValue(r.Policy)
	}

	body := mapping()
	if r.Predicate != nil {
		appendPair(body, scalarString("predicate"), outputValue(r.Predicate))
	}
	if r.MaxRetries != nil {
		appendPair(body, scalarString("max_retries"), outputValue(r.MaxRetries))
	}
	if r.Backoff != nil {
		backoff := mapping()
		if r.Backoff.InitialDelay != nil {
			appendPair(backoff, scalarString("initial_delay"), outputValue(r.Backoff.InitialDelay))
		}
		if r.Backoff.MaxDelay != nil {
			appendPair(backoff, scalarString("max_delay"), outputValue(r.Backoff.MaxDelay))
		}
		if r.Backoff.Multiplier != nil {
			appendPair(backoff, scalarString("multiplier"), outputValue(r.Backoff.Multiplier))
		}
		appendPair(body, scalarString("backoff"), backoff)
	}
	return body
}

// outputValue converts an expression to its output form: a compile-time
// literal becomes a plain YAML value, a map literal becomes a mapping whose
// values are converted recursively, and anything containing a variable
// reference, member access or call becomes a deferred expression string.
func outputValue(n expr.Node) *yaml.Node {
	if m, ok := n.(*expr.Map); ok {
		body := mapping()
		for i, k := range m.Keys {
			appendPair(body, scalarString(k), outputValue(m.Values[i]))
		}
		return body
	}
	if expr.IsLiteral(n) {
		return literalValue(n)
	}
	return scalarString(expr.RenderDeferred(n))
}

// literalValue converts a compile-time literal expression to plain YAML.
func literalValue(n expr.Node) *yaml.Node {
	switch node := n.(type) {
	case *expr.Literal:
		return scalarLiteral(node.Value)
	case *expr.List:
		seq := sequence()
		for _, e := range node.Elements {
			seq.Content = append(seq.Content, literalValue(e))
		}
		return seq
	case *expr.Map:
		body := mapping()
		for i, k := range node.Keys {
			appendPair(body, scalarString(k), literalValue(node.Values[i]))
		}
		return body
	default:
		return scalarString(expr.RenderDeferred(n))
	}
}

func scalarLiteral(v interface{}) *yaml.Node {
	switch val := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(val)}
	case int64:
		return scalarInt(val)
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(val, 'g', -1, 64)}
	case string:
		return scalarString(val)
	default:
		return scalarString(expr.Render(&expr.Literal{Value: v}))
	}
}

func scalarString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func scalarInt(v int64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v, 10)}
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func sequence() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
}

func appendPair(m *yaml.Node, key, value *yaml.Node) {
	m.Content = append(m.Content, key, value)
}
