package transform

import (
	"github.com/aajanki/ts2workflows-sub001/pkg/expr"
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
)

// hoistMapLiterals extracts map literals that are not the direct top-level
// value of an assignment or argument into prior assign steps bound to fresh
// temp variables. The output format only accepts a map literal in that one
// position; anywhere deeper it must be referenced through a variable. List
// literals are never hoisted.
func hoistMapLiterals(steps []*step.Step, gen *step.NameGenerator) []*step.Step {
	var out []*step.Step
	for _, s := range steps {
		h := &hoister{gen: gen}
		hoistStepExprs(s, h)
		out = append(out, h.pre...)
		out = append(out, s)
	}
	return out
}

// hoistStepExprs rewrites the step's own expression slots. Values of assign
// steps, call arguments, return/raise payloads and loop iterables start at
// nesting level 0; switch conditions start at level 1 because the condition
// slot renders as a deferred expression string where a map literal can never
// appear.
func hoistStepExprs(s *step.Step, h *hoister) {
	for i := range s.Assign {
		s.Assign[i].Value = h.rewrite(s.Assign[i].Value, 0)
	}
	if s.Call != nil {
		for i := range s.Call.Args {
			s.Call.Args[i].Value = h.rewrite(s.Call.Args[i].Value, 0)
		}
	}
	for i := range s.Switch {
		b := &s.Switch[i]
		b.Condition = h.rewrite(b.Condition, 1)
		if b.Return != nil {
			b.Return = h.rewrite(b.Return, 0)
		}
		if b.Raise != nil {
			b.Raise = h.rewrite(b.Raise, 0)
		}
	}
	if s.For != nil {
		if s.For.In != nil {
			s.For.In = h.rewrite(s.For.In, 0)
		}
		if s.For.Range != nil {
			s.For.Range[0] = h.rewrite(s.For.Range[0], 1)
			s.For.Range[1] = h.rewrite(s.For.Range[1], 1)
		}
	}
	if s.Parallel != nil && s.Parallel.For != nil {
		pf := s.Parallel.For
		if pf.In != nil {
			pf.In = h.rewrite(pf.In, 0)
		}
	}
	if s.Raise != nil {
		s.Raise = h.rewrite(s.Raise, 0)
	}
	if s.Return != nil {
		s.Return = h.rewrite(s.Return, 0)
	}
}

type hoister struct {
	gen *step.NameGenerator
	pre []*step.Step
}

// rewrite walks an expression tracking the nesting level. Lists, operators,
// member accesses and call arguments increase the level; direct values of a
// map literal reset it, because those values sit in a position the output
// format renders natively.
func (h *hoister) rewrite(n expr.Node, level int) expr.Node {
	switch node := n.(type) {
	case *expr.Map:
		values := make([]expr.Node, len(node.Values))
		for i, v := range node.Values {
			values[i] = h.rewrite(v, 0)
		}
		m := &expr.Map{Keys: node.Keys, Values: values}
		if level == 0 {
			return m
		}
		tmp := h.gen.Temp()
		h.pre = append(h.pre, &step.Step{
			Name:   h.gen.Next("assign"),
			Assign: []step.Assignment{{Target: &expr.Variable{Name: tmp}, Value: m}},
		})
		return &expr.Variable{Name: tmp}
	case *expr.List:
		elems := make([]expr.Node, len(node.Elements))
		for i, e := range node.Elements {
			elems[i] = h.rewrite(e, level+1)
		}
		return &expr.List{Elements: elems}
	case *expr.Member:
		return &expr.Member{
			Object:   h.rewrite(node.Object, level+1),
			Property: h.rewrite(node.Property, level+1),
			Computed: node.Computed,
		}
	case *expr.Binary:
		return &expr.Binary{
			Op:    node.Op,
			Left:  h.rewrite(node.Left, level+1),
			Right: h.rewrite(node.Right, level+1),
		}
	case *expr.Unary:
		return &expr.Unary{Op: node.Op, Operand: h.rewrite(node.Operand, level+1)}
	case *expr.Call:
		args := make([]expr.Node, len(node.Args))
		for i, a := range node.Args {
			args[i] = h.rewrite(a, level+1)
		}
		return &expr.Call{Function: node.Function, Args: args}
	default:
		return n
	}
}
