package lower

import (
	"strings"
	"testing"

	"github.com/aajanki/ts2workflows-sub001/pkg/expr"
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
	"github.com/aajanki/ts2workflows-sub001/pkg/stmt"
	"github.com/aajanki/ts2workflows-sub001/pkg/types"
)

func pe(t *testing.T, input string) expr.Node {
	t.Helper()
	node, err := expr.Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return node
}

func assign(t *testing.T, target, value string) *stmt.Assign {
	t.Helper()
	return &stmt.Assign{Assignments: []stmt.Assignment{{Target: pe(t, target), Value: pe(t, value)}}}
}

func lowerBody(t *testing.T, body ...stmt.Statement) *step.Subworkflow {
	t.Helper()
	sub := &stmt.Subworkflow{Name: "f", Body: body}
	out, err := Subworkflow(sub, step.NewNameGenerator())
	if err != nil {
		t.Fatalf("lowering failed: %v", err)
	}
	return out
}

func TestWhileLowersToSelfLoopingSwitch(t *testing.T) {
	out := lowerBody(t, &stmt.While{
		Condition: pe(t, "x > 0"),
		Body:      []stmt.Statement{assign(t, "x", "x - 1")},
	})

	if len(out.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(out.Steps))
	}
	sw := out.Steps[0]
	if sw.Name != "switch1" || len(sw.Switch) != 1 {
		t.Fatalf("expected switch1 with one branch, got %+v", sw)
	}
	branch := sw.Switch[0]
	if got := expr.Render(branch.Condition); got != "x > 0" {
		t.Errorf("condition %q", got)
	}
	if len(branch.Steps) != 1 {
		t.Fatalf("expected 1 body step, got %d", len(branch.Steps))
	}
	body := branch.Steps[0]
	if body.Name != "assign1" || body.Next != "switch1" {
		t.Errorf("expected assign1 with back-edge to switch1, got name=%q next=%q", body.Name, body.Next)
	}
}

func TestDoWhileLowersToTrailingSwitch(t *testing.T) {
	out := lowerBody(t, &stmt.DoWhile{
		Condition: pe(t, "x > 0"),
		Body:      []stmt.Statement{assign(t, "x", "x - 1")},
	})

	if len(out.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(out.Steps))
	}
	if out.Steps[0].Name != "assign1" {
		t.Errorf("first step %q", out.Steps[0].Name)
	}
	cond := out.Steps[1]
	if cond.Name != "switch1" || len(cond.Switch) != 1 {
		t.Fatalf("expected trailing switch1, got %+v", cond)
	}
	if cond.Switch[0].Next != "assign1" {
		t.Errorf("back-edge %q, want assign1", cond.Switch[0].Next)
	}
}

func TestForUsesReservedBreakContinue(t *testing.T) {
	out := lowerBody(t, &stmt.For{
		Value: "v",
		In:    pe(t, "items"),
		Body:  []stmt.Statement{&stmt.Break{}, &stmt.Continue{}},
	})

	if len(out.Steps) != 1 || out.Steps[0].For == nil {
		t.Fatalf("expected a single for step, got %+v", out.Steps)
	}
	body := out.Steps[0].For.Steps
	if len(body) != 2 {
		t.Fatalf("expected 2 body steps, got %d", len(body))
	}
	if body[0].Next != step.NextBreak {
		t.Errorf("break lowered to next=%q", body[0].Next)
	}
	if body[1].Next != step.NextContinue {
		t.Errorf("continue lowered to next=%q", body[1].Next)
	}
}

func TestLabelledBreakFromNestedLoop(t *testing.T) {
	out := lowerBody(t, &stmt.Labelled{
		Label: "outer",
		Stmt: &stmt.While{
			Condition: pe(t, "x > 0"),
			Body: []stmt.Statement{
				&stmt.For{
					Value: "v",
					In:    pe(t, "items"),
					Body:  []stmt.Statement{&stmt.Break{Label: "outer"}},
				},
			},
		},
	})

	if len(out.Steps) != 1 {
		t.Fatalf("expected 1 step after placeholder elimination, got %d", len(out.Steps))
	}
	outer := out.Steps[0]
	if outer.Name != "outer" {
		t.Errorf("user label not applied, name %q", outer.Name)
	}
	loop := outer.Switch[0].Steps[0]
	if loop.For == nil {
		t.Fatalf("expected nested for step, got %+v", loop)
	}
	if loop.Next != "outer" {
		t.Errorf("for step back-edge %q, want outer", loop.Next)
	}
	jump := loop.For.Steps[0]
	if jump.Next != step.NextEnd {
		t.Errorf("labelled break resolved to %q, want end", jump.Next)
	}
}

func TestLabelledContinueDirectlyInsideFor(t *testing.T) {
	out := lowerBody(t, &stmt.Labelled{
		Label: "rows",
		Stmt: &stmt.For{
			Value: "row",
			In:    pe(t, "rows"),
			Body:  []stmt.Statement{&stmt.Continue{Label: "rows"}},
		},
	})

	if len(out.Steps) != 1 || out.Steps[0].For == nil {
		t.Fatalf("expected a single for step, got %+v", out.Steps)
	}
	loop := out.Steps[0]
	if loop.Name != "rows" {
		t.Errorf("user label not applied, name %q", loop.Name)
	}
	body := loop.For.Steps
	if len(body) != 1 {
		t.Fatalf("expected 1 body step after placeholder elimination, got %d", len(body))
	}
	if body[0].Next != step.NextContinue {
		t.Errorf("labelled continue resolved to %q, want continue", body[0].Next)
	}
}

func TestLabelledContinueFromNestedWhile(t *testing.T) {
	// The while lowers to a switch, so the continue signal still binds to
	// the labelled for at runtime.
	out := lowerBody(t, &stmt.Labelled{
		Label: "rows",
		Stmt: &stmt.For{
			Value: "row",
			In:    pe(t, "rows"),
			Body: []stmt.Statement{
				&stmt.While{
					Condition: pe(t, "row > 0"),
					Body:      []stmt.Statement{&stmt.Continue{Label: "rows"}},
				},
			},
		},
	})

	loop := out.Steps[0]
	if loop.For == nil {
		t.Fatalf("expected for step, got %+v", loop)
	}
	inner := loop.For.Steps[0]
	if inner.Switch == nil {
		t.Fatalf("expected while switch inside for, got %+v", inner)
	}
	jump := inner.Switch[0].Steps[0]
	if jump.Next != step.NextContinue {
		t.Errorf("labelled continue resolved to %q, want continue", jump.Next)
	}
}

func TestLabelledContinueAcrossNestedForRejected(t *testing.T) {
	sub := &stmt.Subworkflow{Name: "f", Body: []stmt.Statement{
		&stmt.Labelled{
			Label: "rows",
			Stmt: &stmt.For{
				Value: "row",
				In:    pe(t, "rows"),
				Body: []stmt.Statement{
					&stmt.For{
						Value: "cell",
						In:    pe(t, "row"),
						Body:  []stmt.Statement{&stmt.Continue{Label: "rows"}},
					},
				},
			},
		},
	}}

	_, err := Subworkflow(sub, step.NewNameGenerator())
	if !types.IsUserError(err) {
		t.Fatalf("expected user error, got %v", err)
	}
	if !strings.Contains(err.Error(), "nested loop") {
		t.Errorf("error %q", err)
	}
}

func TestIfEmptyElseJumpsPastSwitch(t *testing.T) {
	out := lowerBody(t,
		&stmt.If{Branches: []stmt.IfBranch{
			{Condition: pe(t, "x > 0"), Body: []stmt.Statement{assign(t, "a", "1")}},
			{Body: nil},
		}},
		assign(t, "y", "2"),
	)

	if len(out.Steps) != 2 {
		t.Fatalf("expected switch and trailing assign, got %d steps", len(out.Steps))
	}
	sw := out.Steps[0]
	if len(sw.Switch) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(sw.Switch))
	}
	if got := expr.Render(sw.Switch[1].Condition); got != "true" {
		t.Errorf("else condition %q", got)
	}
	if sw.Switch[1].Next != "assign2" {
		t.Errorf("empty else resolved to %q, want assign2", sw.Switch[1].Next)
	}
	if len(sw.Switch[0].Steps) != 1 || sw.Switch[0].Steps[0].Name != "assign1" {
		t.Errorf("then branch %+v", sw.Switch[0].Steps)
	}
}

func TestSwitchFallThrough(t *testing.T) {
	out := lowerBody(t, &stmt.Switch{
		Discriminant: pe(t, "x"),
		Cases: []stmt.SwitchCase{
			{Test: pe(t, "1"), Body: []stmt.Statement{assign(t, "a", "1")}},
			{Test: pe(t, "2"), Body: []stmt.Statement{assign(t, "b", "2")}},
		},
	})

	if len(out.Steps) != 3 {
		t.Fatalf("expected switch plus 2 case bodies, got %d steps", len(out.Steps))
	}
	sw := out.Steps[0]
	if sw.Switch[0].Next != "assign1" || sw.Switch[1].Next != "assign2" {
		t.Errorf("case targets %q, %q", sw.Switch[0].Next, sw.Switch[1].Next)
	}
	if got := expr.Render(sw.Switch[0].Condition); got != "x == 1" {
		t.Errorf("case condition %q", got)
	}
	if sw.Next != step.NextEnd {
		t.Errorf("no-match next %q, want end", sw.Next)
	}
	// Case bodies are laid out sequentially: assign1 has no next, so it
	// falls through into assign2.
	if out.Steps[1].Name != "assign1" || out.Steps[1].Next != "" {
		t.Errorf("fall-through broken: %+v", out.Steps[1])
	}
	if out.Steps[2].Name != "assign2" {
		t.Errorf("second case body %q", out.Steps[2].Name)
	}
}

func TestSwitchEvaluatesImpureDiscriminantOnce(t *testing.T) {
	out := lowerBody(t, &stmt.Switch{
		Discriminant: pe(t, "pick()"),
		Cases: []stmt.SwitchCase{
			{Test: pe(t, "1"), Body: []stmt.Statement{assign(t, "a", "1")}},
		},
	})

	pre := out.Steps[0]
	if pre.Assign == nil || expr.Render(pre.Assign[0].Target) != "__temp0" {
		t.Fatalf("expected temp assign first, got %+v", pre)
	}
	sw := out.Steps[1]
	if got := expr.Render(sw.Switch[0].Condition); got != "__temp0 == 1" {
		t.Errorf("condition %q", got)
	}
}

func TestTryFinallyEmulation(t *testing.T) {
	out := lowerBody(t, &stmt.Try{
		Body:       []stmt.Statement{&stmt.Return{Value: pe(t, "1")}},
		HasFinally: true,
		Finally:    []stmt.Statement{&stmt.CallStmt{Function: "cleanup"}},
	})

	if len(out.Steps) != 4 {
		t.Fatalf("expected init, try, finalizer, dispatch; got %d steps", len(out.Steps))
	}

	init := out.Steps[0]
	if len(init.Assign) != 2 {
		t.Fatalf("init %+v", init)
	}
	if expr.Render(init.Assign[0].Target) != "__finally_condition1" ||
		expr.Render(init.Assign[1].Target) != "__finally_value1" {
		t.Errorf("synthetic variables %+v", init.Assign)
	}

	outer := out.Steps[1]
	if outer.Try == nil {
		t.Fatalf("expected outer try, got %+v", outer)
	}
	capture := outer.Try.Try[0]
	if expr.Render(capture.Assign[0].Value) != `"return"` ||
		expr.Render(capture.Assign[1].Value) != "1" {
		t.Errorf("rewritten return %+v", capture.Assign)
	}
	if capture.Next != "call_cleanup_1" {
		t.Errorf("rewritten return jumps to %q, want call_cleanup_1", capture.Next)
	}
	except := outer.Try.Except
	if except.As != "__finally_error1" {
		t.Errorf("error binding %q", except.As)
	}
	if expr.Render(except.Steps[0].Assign[0].Value) != `"raise"` {
		t.Errorf("outer except %+v", except.Steps[0].Assign)
	}

	if out.Steps[2].Name != "call_cleanup_1" {
		t.Errorf("finalizer step %q", out.Steps[2].Name)
	}

	dispatch := out.Steps[3]
	if len(dispatch.Switch) != 2 {
		t.Fatalf("dispatch %+v", dispatch)
	}
	if !dispatch.Switch[0].HasReturn || dispatch.Switch[1].Raise == nil {
		t.Errorf("dispatch branches %+v", dispatch.Switch)
	}
	if got := expr.Render(dispatch.Switch[0].Condition); got != `__finally_condition1 == "return"` {
		t.Errorf("dispatch condition %q", got)
	}
}

func TestCallStepNamedAfterCallee(t *testing.T) {
	out := lowerBody(t, &stmt.CallStmt{
		Function: "http.get",
		Args:     []stmt.NamedArg{{Name: "url", Value: pe(t, `"https://example.com"`)}},
		Result:   "resp",
	})

	s := out.Steps[0]
	if s.Name != "call_http_get_1" {
		t.Errorf("step name %q", s.Name)
	}
	if s.Call.Function != "http.get" || s.Call.Result != "resp" {
		t.Errorf("call %+v", s.Call)
	}
}

func TestParallelBranches(t *testing.T) {
	out := lowerBody(t, &stmt.Parallel{
		Shared: []string{"total"},
		Branches: []stmt.ParallelBranch{
			{Name: "first", Body: []stmt.Statement{assign(t, "total", "total + 1")}},
			{Body: []stmt.Statement{assign(t, "total", "total + 2")}},
		},
	})

	p := out.Steps[0].Parallel
	if p == nil {
		t.Fatalf("expected parallel step, got %+v", out.Steps[0])
	}
	if p.Branches[0].Name != "first" || p.Branches[1].Name != "branch1" {
		t.Errorf("branch names %q, %q", p.Branches[0].Name, p.Branches[1].Name)
	}
	if p.Shared[0] != "total" {
		t.Errorf("shared %+v", p.Shared)
	}
}

func TestBreakErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     []stmt.Statement
		internal bool
	}{
		{
			name: "outside loop",
			body: []stmt.Statement{&stmt.Break{}},
		},
		{
			name: "unknown label",
			body: []stmt.Statement{&stmt.While{
				Condition: pe(t, "true"),
				Body:      []stmt.Statement{&stmt.Break{Label: "nope"}},
			}},
		},
		{
			name: "crossing a finalizer",
			body: []stmt.Statement{&stmt.While{
				Condition: pe(t, "true"),
				Body: []stmt.Statement{&stmt.Try{
					Body:       []stmt.Statement{&stmt.Break{}},
					HasFinally: true,
					Finally:    []stmt.Statement{assign(t, "x", "1")},
				}},
			}},
			internal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &stmt.Subworkflow{Name: "f", Body: tt.body}
			_, err := Subworkflow(sub, step.NewNameGenerator())
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.internal && !types.IsInternalError(err) {
				t.Errorf("expected internal error, got %v", err)
			}
			if !tt.internal && !types.IsUserError(err) {
				t.Errorf("expected user error, got %v", err)
			}
		})
	}
}

func TestUserLabelCollisionDetected(t *testing.T) {
	sub := &stmt.Subworkflow{Name: "f", Body: []stmt.Statement{
		assign(t, "x", "1"),
		&stmt.Labelled{Label: "assign1", Stmt: assign(t, "y", "2")},
	}}
	_, err := Subworkflow(sub, step.NewNameGenerator())
	if !types.IsInternalError(err) {
		t.Errorf("expected duplicate name error, got %v", err)
	}
}
