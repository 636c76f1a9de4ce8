package transform

import (
	"github.com/aajanki/ts2workflows-sub001/pkg/expr"
	"github.com/aajanki/ts2workflows-sub001/pkg/lower"
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
)

// blockingFunctions maps the runtime's blocking builtins to their positional
// to named argument order. These calls suspend execution and are only valid
// as dedicated call steps, never inside an expression.
var blockingFunctions = map[string][]string{
	"events.await_callback": {"callback", "timeout"},
	"http.delete":           {"url", "timeout", "headers", "query", "auth"},
	"http.get":              {"url", "timeout", "headers", "query", "auth"},
	"http.patch":            {"url", "timeout", "body", "headers", "query", "auth"},
	"http.post":             {"url", "timeout", "body", "headers", "query", "auth"},
	"http.put":              {"url", "timeout", "body", "headers", "query", "auth"},
	"http.request":          {"method", "url", "timeout", "body", "headers", "query", "auth"},
	"sys.log":               {"data", "severity"},
	"sys.sleep":             {"seconds"},
	"sys.sleep_until":       {"time"},
}

// extractBlockingCalls replaces blocking calls embedded in expressions with
// fresh temp variables and inserts a dedicated call step immediately before
// the step that used the value. An assign step whose sole value is a
// blocking call becomes the call step itself, keeping its name and result
// variable. Extraction is leaves-first, so nested blocking calls produce
// their steps in evaluation order.
func extractBlockingCalls(steps []*step.Step, gen *step.NameGenerator) []*step.Step {
	var out []*step.Step
	for _, s := range steps {
		e := &extractor{gen: gen}

		if replaced, ok := e.soleCallAssign(s); ok {
			out = append(out, e.pre...)
			out = append(out, replaced)
			continue
		}

		rewriteStepExprs(s, e.extract)
		out = append(out, e.pre...)
		out = append(out, s)
	}
	return out
}

type extractor struct {
	gen *step.NameGenerator
	pre []*step.Step
}

// soleCallAssign handles `x = http.get(...)`: the assign is replaced by a
// call step carrying the target as its result, avoiding a useless temp.
// Blocking calls nested in the arguments still extract to their own steps.
func (e *extractor) soleCallAssign(s *step.Step) (*step.Step, bool) {
	if len(s.Assign) != 1 {
		return nil, false
	}
	call, ok := s.Assign[0].Value.(*expr.Call)
	if !ok {
		return nil, false
	}
	params, ok := blockingFunctions[call.Function]
	if !ok {
		return nil, false
	}
	target, ok := s.Assign[0].Target.(*expr.Variable)
	if !ok {
		return nil, false
	}

	args := make([]expr.Node, len(call.Args))
	for i, a := range call.Args {
		args[i] = rewriteExpr(a, e.extract)
	}
	return &step.Step{
		Name: s.Name,
		Call: zipCall(call.Function, args, params, target.Name),
		Next: s.Next,
	}, true
}

func (e *extractor) extract(n expr.Node) expr.Node {
	call, ok := n.(*expr.Call)
	if !ok {
		return n
	}
	params, ok := blockingFunctions[call.Function]
	if !ok {
		return n
	}

	tmp := e.gen.Temp()
	e.pre = append(e.pre, &step.Step{
		Name: e.gen.Next(lower.CallStepPrefix(call.Function)),
		Call: zipCall(call.Function, call.Args, params, tmp),
	})
	return &expr.Variable{Name: tmp}
}

// zipCall pairs positional arguments with the table's parameter names. Extra
// positional arguments beyond the table are dropped and null arguments are
// omitted (null stands in for an absent optional argument).
func zipCall(function string, args []expr.Node, params []string, result string) *step.Call {
	call := &step.Call{Function: function, Result: result}
	for i, a := range args {
		if i >= len(params) {
			break
		}
		if lit, ok := a.(*expr.Literal); ok && lit.Value == nil {
			continue
		}
		call.Args = append(call.Args, step.NamedArg{Name: params[i], Value: a})
	}
	return call
}
