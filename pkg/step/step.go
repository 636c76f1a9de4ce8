// Package step defines the lowered, named step representation: the control
// flow graph the compiler emits. Every step has a unique name within its
// subworkflow and explicit next links; nesting mirrors the target format's
// switch branches, loop bodies and try blocks.
package step

import "github.com/aajanki/ts2workflows-sub001/pkg/expr"

// Reserved next targets understood by the target runtime.
const (
	NextEnd      = "end"
	NextBreak    = "break"
	NextContinue = "continue"
)

// Program is the lowered form of a whole compilation unit.
type Program struct {
	Subworkflows []*Subworkflow
}

// Subworkflow is one lowered unit: a parameter list and a step sequence.
type Subworkflow struct {
	Name   string
	Params []Param
	Steps  []*Step
}

// Param is an output parameter: a bare name or a name with a literal default.
type Param struct {
	Name       string
	Default    expr.Node
	HasDefault bool
}

// Step is a single named step. Exactly one of the tag fields (Assign, Call,
// Switch, For, Parallel, Try, Raise, Return, bare Next) is populated, except
// that Next may accompany any tag as the explicit successor. A step with
// PlaceholderLabel set is a transient jump placeholder: it is never emitted
// and is erased by the placeholder resolution pass.
type Step struct {
	Name string

	// Assign holds assignment operations (non-nil for assign steps).
	Assign []Assignment

	// Call holds a function/subworkflow call (non-nil for call steps).
	Call *Call

	// Switch holds conditional branches (non-nil for switch steps).
	Switch []Branch

	// For holds a loop definition (non-nil for for steps).
	For *For

	// Parallel holds concurrent branches (non-nil for parallel steps).
	Parallel *Parallel

	// Try holds a protected region (non-nil for try steps).
	Try *Try

	// Raise holds the raised error expression (non-nil for raise steps).
	Raise expr.Node

	// Return holds the returned expression. HasReturn distinguishes
	// "return null" from no return.
	Return    expr.Node
	HasReturn bool

	// Next is the explicit successor: a step name or a reserved target.
	Next string

	// PlaceholderLabel marks a transient jump placeholder.
	PlaceholderLabel string
}

// IsPlaceholder reports whether the step is a transient jump placeholder.
func (s *Step) IsPlaceholder() bool { return s.PlaceholderLabel != "" }

// Assignment is one target/value pair of an assign step.
type Assignment struct {
	Target expr.Node
	Value  expr.Node
}

// NamedArg is a named call argument; order is preserved in the output.
type NamedArg struct {
	Name  string
	Value expr.Node
}

// Call is the body of a call step.
type Call struct {
	Function string
	Args     []NamedArg
	Result   string
}

// Branch is one condition branch of a switch step. Either Steps or Next is
// set once lowering completes; Return/Raise allow the compact inline forms.
type Branch struct {
	Condition expr.Node
	Steps     []*Step
	Next      string
	Return    expr.Node
	HasReturn bool
	Raise     expr.Node
}

// For is the body of a for step. Either In or Range is set.
type For struct {
	Value string
	Index string
	In    expr.Node
	Range *[2]expr.Node // inclusive [start, end]
	Steps []*Step
}

// Parallel is the body of a parallel step.
type Parallel struct {
	Shared           []string
	Branches         []*ParallelBranch
	For              *For
	ConcurrencyLimit int
	ExceptionPolicy  string
}

// ParallelBranch is one named branch of a parallel step.
type ParallelBranch struct {
	Name  string
	Steps []*Step
}

// Try is the body of a try step.
type Try struct {
	Try    []*Step
	Except *Except
	Retry  *Retry
}

// Except is the error handler of a try step.
type Except struct {
	As    string
	Steps []*Step
}

// Retry configures automatic retry of a try step. Policy is a fully
// qualified name carrying both predicate and defaults; otherwise the
// structured fields apply.
type Retry struct {
	Policy     expr.Node
	Predicate  expr.Node
	MaxRetries expr.Node
	Backoff    *Backoff
}

// Backoff holds exponential backoff parameters.
type Backoff struct {
	InitialDelay expr.Node
	MaxDelay     expr.Node
	Multiplier   expr.Node
}
