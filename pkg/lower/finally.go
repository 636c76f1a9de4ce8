package lower

import (
	"fmt"

	"github.com/aajanki/ts2workflows-sub001/pkg/expr"
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
	"github.com/aajanki/ts2workflows-sub001/pkg/stmt"
)

// lowerTryFinally emulates try/catch/finally on a runtime that has try and
// except but no finalizer. The finalizer must run exactly once whether the
// protected body completes, returns or raises:
//
//  1. Two synthetic variables per nesting depth record how the protected
//     region exited ("return" or "raise") and the associated value.
//  2. Returns inside the body and handler become state capture plus a jump
//     straight to the finalizer (see lowerReturn).
//  3. An outer try captures any escaping error, including one raised by the
//     user's own catch handler.
//  4. The finalizer runs unconditionally after the outer try.
//  5. A trailing switch re-issues the captured return or raise; it stays
//     silent when the region completed normally.
func (c *context) lowerTryFinally(st *stmt.Try) ([]*step.Step, error) {
	c.finallyDepth++
	defer func() { c.finallyDepth-- }()
	n := c.finallyDepth

	condVar := fmt.Sprintf("__finally_condition%d", n)
	valueVar := fmt.Sprintf("__finally_value%d", n)
	errVar := fmt.Sprintf("__finally_error%d", n)
	finLabel := c.gen.JumpLabel()

	init := &step.Step{
		Name: c.stepName("assign"),
		Assign: []step.Assignment{
			{Target: &expr.Variable{Name: condVar}, Value: expr.Null},
			{Target: &expr.Variable{Name: valueVar}, Value: expr.Null},
		},
	}

	outerName := c.gen.Next("try")

	f := &frame{kind: frameFinally, condVar: condVar, valueVar: valueVar, finallyLabel: finLabel}
	c.push(f)
	protected, err := c.lowerProtected(st)
	c.pop()
	if err != nil {
		return nil, err
	}

	capture := &step.Step{
		Name: c.gen.Next("assign"),
		Assign: []step.Assignment{
			{Target: &expr.Variable{Name: condVar}, Value: expr.Str("raise")},
			{Target: &expr.Variable{Name: valueVar}, Value: &expr.Variable{Name: errVar}},
		},
	}
	outer := &step.Step{
		Name: outerName,
		Try: &step.Try{
			Try:    protected,
			Except: &step.Except{As: errVar, Steps: []*step.Step{capture}},
		},
	}

	// The finalizer is lowered outside this construct's finally frame:
	// returns inside it belong to the enclosing scope (or an outer finally).
	finSteps, err := c.lowerBody(st.Finally)
	if err != nil {
		return nil, err
	}

	dispatch := &step.Step{
		Name: c.gen.Next("switch"),
		Switch: []step.Branch{
			{
				Condition: &expr.Binary{Op: "==", Left: &expr.Variable{Name: condVar}, Right: expr.Str("return")},
				Return:    &expr.Variable{Name: valueVar},
				HasReturn: true,
			},
			{
				Condition: &expr.Binary{Op: "==", Left: &expr.Variable{Name: condVar}, Right: expr.Str("raise")},
				Raise:     &expr.Variable{Name: valueVar},
			},
		},
	}

	steps := []*step.Step{init, outer, placeholder(finLabel)}
	steps = append(steps, finSteps...)
	steps = append(steps, dispatch)
	return steps, nil
}

// lowerProtected lowers the body (and catch handler, when present) that the
// outer capture try wraps. A catch handler or retry policy requires an inner
// try step of its own.
func (c *context) lowerProtected(st *stmt.Try) ([]*step.Step, error) {
	if !st.HasCatch && st.Retry == nil {
		return c.lowerBody(st.Body)
	}

	innerName := c.gen.Next("try")
	body, err := c.lowerBody(st.Body)
	if err != nil {
		return nil, err
	}
	inner := &step.Step{Name: innerName, Try: &step.Try{Try: body, Retry: convertRetry(st.Retry)}}
	if st.HasCatch {
		handler, err := c.lowerBody(st.Catch)
		if err != nil {
			return nil, err
		}
		inner.Try.Except = &step.Except{As: st.ErrorVar, Steps: handler}
	}
	return []*step.Step{inner}, nil
}
