package transform

import (
	"github.com/aajanki/ts2workflows-sub001/pkg/expr"
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
)

// rewriteExpr rebuilds an expression tree bottom-up, applying f to every node
// after its children have been rewritten. Children are visited left to right,
// which fixes the evaluation order the extraction passes depend on.
func rewriteExpr(n expr.Node, f func(expr.Node) expr.Node) expr.Node {
	switch node := n.(type) {
	case *expr.List:
		elems := make([]expr.Node, len(node.Elements))
		for i, e := range node.Elements {
			elems[i] = rewriteExpr(e, f)
		}
		return f(&expr.List{Elements: elems})
	case *expr.Map:
		values := make([]expr.Node, len(node.Values))
		for i, v := range node.Values {
			values[i] = rewriteExpr(v, f)
		}
		return f(&expr.Map{Keys: node.Keys, Values: values})
	case *expr.Member:
		return f(&expr.Member{
			Object:   rewriteExpr(node.Object, f),
			Property: rewriteExpr(node.Property, f),
			Computed: node.Computed,
		})
	case *expr.Binary:
		return f(&expr.Binary{
			Op:    node.Op,
			Left:  rewriteExpr(node.Left, f),
			Right: rewriteExpr(node.Right, f),
		})
	case *expr.Unary:
		return f(&expr.Unary{Op: node.Op, Operand: rewriteExpr(node.Operand, f)})
	case *expr.Call:
		args := make([]expr.Node, len(node.Args))
		for i, a := range node.Args {
			args[i] = rewriteExpr(a, f)
		}
		return f(&expr.Call{Function: node.Function, Args: args})
	default:
		return f(n)
	}
}

// rewriteStepExprs applies f (via rewriteExpr) to every expression slot the
// step owns at its own nesting level. Expressions inside nested step bodies
// are not touched; the per-level driver reaches those on recursion.
func rewriteStepExprs(s *step.Step, f func(expr.Node) expr.Node) {
	for i := range s.Assign {
		s.Assign[i].Value = rewriteExpr(s.Assign[i].Value, f)
	}
	if s.Call != nil {
		for i := range s.Call.Args {
			s.Call.Args[i].Value = rewriteExpr(s.Call.Args[i].Value, f)
		}
	}
	for i := range s.Switch {
		b := &s.Switch[i]
		b.Condition = rewriteExpr(b.Condition, f)
		if b.Return != nil {
			b.Return = rewriteExpr(b.Return, f)
		}
		if b.Raise != nil {
			b.Raise = rewriteExpr(b.Raise, f)
		}
	}
	if s.For != nil {
		if s.For.In != nil {
			s.For.In = rewriteExpr(s.For.In, f)
		}
		if s.For.Range != nil {
			s.For.Range[0] = rewriteExpr(s.For.Range[0], f)
			s.For.Range[1] = rewriteExpr(s.For.Range[1], f)
		}
	}
	if s.Parallel != nil && s.Parallel.For != nil {
		pf := s.Parallel.For
		if pf.In != nil {
			pf.In = rewriteExpr(pf.In, f)
		}
		if pf.Range != nil {
			pf.Range[0] = rewriteExpr(pf.Range[0], f)
			pf.Range[1] = rewriteExpr(pf.Range[1], f)
		}
	}
	if s.Raise != nil {
		s.Raise = rewriteExpr(s.Raise, f)
	}
	if s.Return != nil {
		s.Return = rewriteExpr(s.Return, f)
	}
}
