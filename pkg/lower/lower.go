// Package lower converts the structured statement tree into named steps with
// explicit next links. Loops without native runtime support become switch
// steps with back-edges, break/continue become jumps through transient
// placeholders, and try/finally is emulated with state capture and a
// trailing re-dispatch switch. Lowering runs in two phases: the descent
// emits symbolic jump labels, and a single resolution pass afterwards
// rewrites every reference and erases the placeholders.
package lower

import (
	"strings"

	"github.com/aajanki/ts2workflows-sub001/pkg/expr"
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
	"github.com/aajanki/ts2workflows-sub001/pkg/stmt"
	"github.com/aajanki/ts2workflows-sub001/pkg/types"
)

// Program lowers every subworkflow of a program with a fresh name generator
// each. Subworkflows are independent units.
func Program(p *stmt.Program) (*step.Program, error) {
	out := &step.Program{}
	for _, sub := range p.Subworkflows {
		lowered, err := Subworkflow(sub, step.NewNameGenerator())
		if err != nil {
			return nil, err
		}
		out.Subworkflows = append(out.Subworkflows, lowered)
	}
	return out, nil
}

// Subworkflow lowers a single subworkflow using the given name generator.
// The generator must be reused for the subsequent rewrite passes so that
// temporary names stay unique.
func Subworkflow(sub *stmt.Subworkflow, gen *step.NameGenerator) (*step.Subworkflow, error) {
	ctx := &context{sub: sub.Name, gen: gen}

	steps, err := ctx.lowerBody(sub.Body)
	if err != nil {
		return nil, err
	}

	steps, err = resolvePlaceholders(steps)
	if err != nil {
		return nil, err
	}

	out := &step.Subworkflow{Name: sub.Name, Steps: steps}
	for _, p := range sub.Params {
		out.Params = append(out.Params, step.Param{Name: p.Name, Default: p.Default, HasDefault: p.HasDefault})
	}

	if err := validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

type frameKind int

const (
	frameFor frameKind = iota
	frameWhile
	frameDoWhile
	frameSwitch
	frameFinally
)

// frame records one enclosing construct that break/continue or return may
// target. Frames form a stack, innermost last.
type frame struct {
	kind  frameKind
	label string // user label, loops only

	// breakTarget and continueTarget are either concrete step names or
	// placeholder labels. The used flags control placeholder emission.
	breakTarget    string
	continueTarget string
	breakUsed      bool
	continueUsed   bool

	// finally frames only
	condVar      string
	valueVar     string
	finallyLabel string
}

func (f *frame) isLoop() bool {
	return f.kind == frameFor || f.kind == frameWhile || f.kind == frameDoWhile
}

type context struct {
	sub    string
	gen    *step.NameGenerator
	frames []*frame

	// pendingLabel names the next emitted step; pendingLoopLabel registers
	// a user label on the next loop frame. Both come from Labelled.
	pendingLabel     string
	pendingLoopLabel string

	finallyDepth int
}

// stepName returns the next name for a step, honoring a pending user label.
func (c *context) stepName(prefix string) string {
	if c.pendingLabel != "" {
		name := c.pendingLabel
		c.pendingLabel = ""
		return name
	}
	return c.gen.Next(prefix)
}

func (c *context) push(f *frame) { c.frames = append(c.frames, f) }
func (c *context) pop()          { c.frames = c.frames[:len(c.frames)-1] }
func (c *context) takeLoopLabel() string {
	l := c.pendingLoopLabel
	c.pendingLoopLabel = ""
	return l
}

// innermostFinally returns the closest enclosing finally frame, if any.
func (c *context) innermostFinally() *frame {
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].kind == frameFinally {
			return c.frames[i]
		}
	}
	return nil
}

func placeholder(label string) *step.Step {
	return &step.Step{PlaceholderLabel: label}
}

func (c *context) lowerBody(body []stmt.Statement) ([]*step.Step, error) {
	var steps []*step.Step
	for _, s := range body {
		lowered, err := c.lowerStatement(s)
		if err != nil {
			return nil, err
		}
		steps = append(steps, lowered...)
	}
	return steps, nil
}

func (c *context) lowerStatement(s stmt.Statement) ([]*step.Step, error) {
	switch st := s.(type) {
	case *stmt.Assign:
		return c.lowerAssign(st)
	case *stmt.If:
		return c.lowerIf(st)
	case *stmt.Switch:
		return c.lowerSwitch(st)
	case *stmt.For:
		return c.lowerFor(st)
	case *stmt.ForRange:
		return c.lowerForRange(st)
	case *stmt.While:
		return c.lowerWhile(st)
	case *stmt.DoWhile:
		return c.lowerDoWhile(st)
	case *stmt.Break:
		return c.lowerBreak(st)
	case *stmt.Continue:
		return c.lowerContinue(st)
	case *stmt.Return:
		return c.lowerReturn(st)
	case *stmt.Raise:
		raise := &step.Step{Name: c.stepName("raise"), Raise: st.Value}
		return []*step.Step{raise}, nil
	case *stmt.Try:
		return c.lowerTry(st)
	case *stmt.Labelled:
		return c.lowerLabelled(st)
	case *stmt.Parallel:
		return c.lowerParallel(st)
	case *stmt.CallStmt:
		return c.lowerCall(st)
	default:
		return nil, types.NewInternalError("unknown statement kind %T", s)
	}
}

func (c *context) lowerAssign(st *stmt.Assign) ([]*step.Step, error) {
	out := &step.Step{Name: c.stepName("assign")}
	for _, a := range st.Assignments {
		out.Assign = append(out.Assign, step.Assignment{Target: a.Target, Value: a.Value})
	}
	return []*step.Step{out}, nil
}

// CallStepPrefix derives the step name prefix for a call to the given
// function: call steps are named after their callee.
func CallStepPrefix(function string) string {
	return "call_" + strings.ReplaceAll(function, ".", "_") + "_"
}

func (c *context) lowerCall(st *stmt.CallStmt) ([]*step.Step, error) {
	call := &step.Call{Function: st.Function, Result: st.Result}
	for _, a := range st.Args {
		call.Args = append(call.Args, step.NamedArg{Name: a.Name, Value: a.Value})
	}
	out := &step.Step{Name: c.stepName(CallStepPrefix(st.Function)), Call: call}
	return []*step.Step{out}, nil
}

func (c *context) lowerReturn(st *stmt.Return) ([]*step.Step, error) {
	value := st.Value
	if value == nil {
		value = expr.Null
	}

	// Inside a try with a finalizer, a return becomes state capture plus a
	// jump to the finalizer; the trailing dispatch switch re-issues it.
	if fin := c.innermostFinally(); fin != nil {
		capture := &step.Step{
			Name: c.stepName("assign"),
			Assign: []step.Assignment{
				{Target: &expr.Variable{Name: fin.condVar}, Value: expr.Str("return")},
				{Target: &expr.Variable{Name: fin.valueVar}, Value: value},
			},
			Next: fin.finallyLabel,
		}
		return []*step.Step{capture}, nil
	}

	out := &step.Step{Name: c.stepName("return"), Return: value, HasReturn: true}
	return []*step.Step{out}, nil
}

// jumpFrame locates the frame a break or continue targets. Crossing a
// finally frame on the way out is a compiler limitation surfaced as an
// internal error, because the jump target is not representable inside the
// finally state machine.
func (c *context) jumpFrame(label, loc, kw string, loopsOnly bool) (*frame, error) {
	crossedFinally := false
	for i := len(c.frames) - 1; i >= 0; i-- {
		f := c.frames[i]
		if f.kind == frameFinally {
			crossedFinally = true
			continue
		}
		match := false
		if label == "" {
			match = f.isLoop() || (!loopsOnly && f.kind == frameSwitch)
		} else {
			match = f.label == label
		}
		if !match {
			continue
		}
		if crossedFinally {
			return nil, types.NewInternalError("%s out of a try with a finalizer is not supported", kw)
		}
		return f, nil
	}
	if label != "" {
		return nil, types.NewUserError(loc, "%s references unknown label '%s'", kw, label)
	}
	return nil, types.NewUserError(loc, "%s used outside of a loop", kw)
}

func (c *context) lowerBreak(st *stmt.Break) ([]*step.Step, error) {
	f, err := c.jumpFrame(st.Label, st.Loc(), "break", false)
	if err != nil {
		return nil, err
	}

	// Unlabelled break directly inside a for loop uses the runtime's native
	// loop-exit signal; everything else jumps through a placeholder.
	if st.Label == "" && f.kind == frameFor {
		return []*step.Step{{Name: c.stepName("jump"), Next: step.NextBreak}}, nil
	}
	f.breakUsed = true
	return []*step.Step{{Name: c.stepName("jump"), Next: f.breakTarget}}, nil
}

func (c *context) lowerContinue(st *stmt.Continue) ([]*step.Step, error) {
	f, err := c.jumpFrame(st.Label, st.Loc(), "continue", true)
	if err != nil {
		return nil, err
	}

	if st.Label == "" && f.kind == frameFor {
		return []*step.Step{{Name: c.stepName("jump"), Next: step.NextContinue}}, nil
	}
	// Continuing a for loop compiles to the runtime's continue signal, which
	// always binds to the innermost for. From inside another for the signal
	// would re-iterate that inner loop instead of the labelled one.
	if f.kind == frameFor && c.insideNestedFor(f) {
		return nil, types.NewUserError(st.Loc(),
			"continue with label '%s' targets a for loop from inside a nested loop", st.Label)
	}
	f.continueUsed = true
	return []*step.Step{{Name: c.stepName("jump"), Next: f.continueTarget}}, nil
}

// insideNestedFor reports whether a for loop sits between the current
// position and the target frame.
func (c *context) insideNestedFor(target *frame) bool {
	for i := len(c.frames) - 1; i >= 0; i-- {
		f := c.frames[i]
		if f == target {
			return false
		}
		if f.kind == frameFor {
			return true
		}
	}
	return false
}

// isBareNext reports whether a step carries nothing but an explicit jump.
func isBareNext(s *step.Step) bool {
	return s.Next != "" && s.Assign == nil && s.Call == nil && s.Switch == nil &&
		s.For == nil && s.Parallel == nil && s.Try == nil && s.Raise == nil &&
		!s.HasReturn && !s.IsPlaceholder()
}

// canChainNext reports whether an explicit next may be attached to a step.
func canChainNext(s *step.Step) bool {
	return s.Next == "" && !s.HasReturn && s.Raise == nil && !s.IsPlaceholder()
}

func (c *context) lowerIf(st *stmt.If) ([]*step.Step, error) {
	name := c.stepName("switch")
	out := &step.Step{Name: name}

	endLabel := ""
	end := func() string {
		if endLabel == "" {
			endLabel = c.gen.JumpLabel()
		}
		return endLabel
	}

	for _, br := range st.Branches {
		cond := br.Condition
		if cond == nil {
			cond = expr.True
		}
		body, err := c.lowerBody(br.Body)
		if err != nil {
			return nil, err
		}
		branch := step.Branch{Condition: cond}
		switch {
		case len(body) == 0:
			branch.Next = end()
		case len(body) == 1 && isBareNext(body[0]):
			// A branch whose body is a single unconditional jump collapses
			// to a bare next.
			branch.Next = body[0].Next
		default:
			branch.Steps = body
		}
		out.Switch = append(out.Switch, branch)
	}

	steps := []*step.Step{out}
	if endLabel != "" {
		steps = append(steps, placeholder(endLabel))
	}
	return steps, nil
}

func (c *context) lowerSwitch(st *stmt.Switch) ([]*step.Step, error) {
	var pre []*step.Step
	disc := st.Discriminant
	if _, isVar := disc.(*expr.Variable); !isVar && !expr.IsPure(disc) {
		// Evaluate an impure discriminant once.
		tmp := c.gen.Temp()
		pre = append(pre, &step.Step{
			Name:   c.gen.Next("assign"),
			Assign: []step.Assignment{{Target: &expr.Variable{Name: tmp}, Value: disc}},
		})
		disc = &expr.Variable{Name: tmp}
	}

	name := c.stepName("switch")
	endLabel := c.gen.JumpLabel()

	f := &frame{kind: frameSwitch, breakTarget: endLabel}
	c.push(f)
	defer c.pop()

	out := &step.Step{Name: name, Next: endLabel}
	var bodies []*step.Step
	for _, cs := range st.Cases {
		caseLabel := c.gen.JumpLabel()
		cond := expr.Node(expr.True)
		if cs.Test != nil {
			cond = &expr.Binary{Op: "==", Left: disc, Right: cs.Test}
		}
		out.Switch = append(out.Switch, step.Branch{Condition: cond, Next: caseLabel})

		body, err := c.lowerBody(cs.Body)
		if err != nil {
			return nil, err
		}
		// Case bodies are laid out sequentially so that a body without a
		// terminal break falls through into the following case.
		bodies = append(bodies, placeholder(caseLabel))
		bodies = append(bodies, body...)
	}

	steps := append(pre, out)
	steps = append(steps, bodies...)
	steps = append(steps, placeholder(endLabel))
	return steps, nil
}

func (c *context) lowerFor(st *stmt.For) ([]*step.Step, error) {
	name := c.stepName("for")
	f := &frame{
		kind:           frameFor,
		label:          c.takeLoopLabel(),
		breakTarget:    c.gen.JumpLabel(),
		continueTarget: c.gen.JumpLabel(),
	}
	c.push(f)
	body, err := c.lowerBody(st.Body)
	c.pop()
	if err != nil {
		return nil, err
	}
	if f.continueUsed {
		// The placeholder at the end of the body resolves to the loop's
		// native continue position.
		body = append(body, placeholder(f.continueTarget))
	}

	out := &step.Step{Name: name, For: &step.For{Value: st.Value, Index: st.Index, In: st.In, Steps: body}}
	steps := []*step.Step{out}
	if f.breakUsed {
		steps = append(steps, placeholder(f.breakTarget))
	}
	return steps, nil
}

func (c *context) lowerForRange(st *stmt.ForRange) ([]*step.Step, error) {
	name := c.stepName("for")
	f := &frame{
		kind:           frameFor,
		label:          c.takeLoopLabel(),
		breakTarget:    c.gen.JumpLabel(),
		continueTarget: c.gen.JumpLabel(),
	}
	c.push(f)
	body, err := c.lowerBody(st.Body)
	c.pop()
	if err != nil {
		return nil, err
	}
	if f.continueUsed {
		body = append(body, placeholder(f.continueTarget))
	}

	rng := [2]expr.Node{st.Start, st.End}
	out := &step.Step{Name: name, For: &step.For{Value: st.Value, Range: &rng, Steps: body}}
	steps := []*step.Step{out}
	if f.breakUsed {
		steps = append(steps, placeholder(f.breakTarget))
	}
	return steps, nil
}

func (c *context) lowerWhile(st *stmt.While) ([]*step.Step, error) {
	// The switch step is the condition recheck point; its own name is the
	// back-edge target and the continue target.
	name := c.stepName("switch")
	f := &frame{
		kind:           frameWhile,
		label:          c.takeLoopLabel(),
		breakTarget:    c.gen.JumpLabel(),
		continueTarget: name,
	}
	c.push(f)
	body, err := c.lowerBody(st.Body)
	c.pop()
	if err != nil {
		return nil, err
	}

	branch := step.Branch{Condition: st.Condition}
	if len(body) == 0 {
		branch.Next = name
	} else {
		last := body[len(body)-1]
		switch {
		case canChainNext(last):
			last.Next = name
		case last.Next == "" && !last.HasReturn && last.Raise == nil:
			// The last step is a placeholder; the back-edge needs its own step.
			body = append(body, &step.Step{Name: c.gen.Next("jump"), Next: name})
		}
		branch.Steps = body
	}

	out := &step.Step{Name: name, Switch: []step.Branch{branch}}
	steps := []*step.Step{out}
	if f.breakUsed {
		steps = append(steps, placeholder(f.breakTarget))
	}
	return steps, nil
}

func (c *context) lowerDoWhile(st *stmt.DoWhile) ([]*step.Step, error) {
	// The trailing switch name is generated up front because continue
	// inside the body targets it.
	condName := c.gen.Next("switch")
	f := &frame{
		kind:           frameDoWhile,
		label:          c.takeLoopLabel(),
		breakTarget:    c.gen.JumpLabel(),
		continueTarget: condName,
	}
	c.push(f)
	body, err := c.lowerBody(st.Body)
	c.pop()
	if err != nil {
		return nil, err
	}

	first := condName
	if len(body) > 0 {
		if body[0].IsPlaceholder() {
			return nil, types.NewInternalError("do-while body starts with a jump placeholder")
		}
		first = body[0].Name
	}

	cond := &step.Step{Name: condName, Switch: []step.Branch{{Condition: st.Condition, Next: first}}}
	steps := append(body, cond)
	if f.breakUsed {
		steps = append(steps, placeholder(f.breakTarget))
	}
	return steps, nil
}

func (c *context) lowerLabelled(st *stmt.Labelled) ([]*step.Step, error) {
	c.pendingLabel = st.Label
	switch st.Stmt.(type) {
	case *stmt.While, *stmt.DoWhile, *stmt.For, *stmt.ForRange:
		c.pendingLoopLabel = st.Label
	}
	steps, err := c.lowerStatement(st.Stmt)
	c.pendingLabel = ""
	c.pendingLoopLabel = ""
	return steps, err
}

func (c *context) lowerTry(st *stmt.Try) ([]*step.Step, error) {
	if st.HasFinally {
		return c.lowerTryFinally(st)
	}

	name := c.stepName("try")
	body, err := c.lowerBody(st.Body)
	if err != nil {
		return nil, err
	}

	out := &step.Step{Name: name, Try: &step.Try{Try: body, Retry: convertRetry(st.Retry)}}
	if st.HasCatch {
		handler, err := c.lowerBody(st.Catch)
		if err != nil {
			return nil, err
		}
		out.Try.Except = &step.Except{As: st.ErrorVar, Steps: handler}
	}
	return []*step.Step{out}, nil
}

func convertRetry(p *stmt.RetryPolicy) *step.Retry {
	if p == nil {
		return nil
	}
	r := &step.Retry{Policy: p.Policy, Predicate: p.Predicate, MaxRetries: p.MaxRetries}
	if p.Backoff != nil {
		r.Backoff = &step.Backoff{
			InitialDelay: p.Backoff.InitialDelay,
			MaxDelay:     p.Backoff.MaxDelay,
			Multiplier:   p.Backoff.Multiplier,
		}
	}
	return r
}

func (c *context) lowerParallel(st *stmt.Parallel) ([]*step.Step, error) {
	name := c.stepName("parallel")
	out := &step.Parallel{
		Shared:           st.Shared,
		ConcurrencyLimit: st.ConcurrencyLimit,
		ExceptionPolicy:  st.ExceptionPolicy,
	}

	if st.For != nil {
		lowered, err := c.lowerStatement(st.For)
		if err != nil {
			return nil, err
		}
		if len(lowered) != 1 || lowered[0].For == nil {
			return nil, types.NewInternalError("parallel iteration did not lower to a single for step")
		}
		out.For = lowered[0].For
	}

	for _, br := range st.Branches {
		branchName := br.Name
		if branchName == "" {
			branchName = c.gen.Next("branch")
		}
		body, err := c.lowerBody(br.Body)
		if err != nil {
			return nil, err
		}
		out.Branches = append(out.Branches, &step.ParallelBranch{Name: branchName, Steps: body})
	}

	return []*step.Step{{Name: name, Parallel: out}}, nil
}
