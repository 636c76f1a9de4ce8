// Package stmt defines the structured statement tree the compiler consumes:
// the block-scoped program representation produced by the source-language
// front end, before lowering into named steps.
package stmt

import "github.com/aajanki/ts2workflows-sub001/pkg/expr"

// Program is a set of independently compiled subworkflows, in source order.
type Program struct {
	Subworkflows []*Subworkflow
}

// Subworkflow is one function-like unit with parameters and a statement body.
type Subworkflow struct {
	Name   string
	Params []Param
	Body   []Statement
}

// Param is a subworkflow parameter, optionally carrying a literal default.
type Param struct {
	Name       string
	Default    expr.Node
	HasDefault bool
}

// Statement is the interface for all statement tree nodes. Loc returns a
// human-readable source location used in user-facing errors; SetLoc attaches
// it and is promoted from the embedded location.
type Statement interface {
	stmtType() string
	Loc() string
	SetLoc(loc string)
}

// location is embedded in every statement to carry its source position.
type location struct {
	Location string
}

func (l location) Loc() string { return l.Location }

// SetLoc attaches a source location to a statement. It is promoted to every
// statement type through the embedded location.
func (l *location) SetLoc(loc string) { l.Location = loc }

// Assignment is a single target/value pair inside an Assign group. Target
// must be a variable or a member path rooted at a variable.
type Assignment struct {
	Target expr.Node
	Value  expr.Node
}

// Assign is a group of consecutive assignments.
type Assign struct {
	location
	Assignments []Assignment
}

func (*Assign) stmtType() string { return "assign" }

// IfBranch is one conditional branch. A nil Condition marks the else branch.
type IfBranch struct {
	Condition expr.Node
	Body      []Statement
}

// If is a conditional with ordered branches.
type If struct {
	location
	Branches []IfBranch
}

func (*If) stmtType() string { return "if" }

// SwitchCase is one case of a Switch. A nil Test marks the default case.
// Fall-through applies: a case body that does not end in a break, return or
// raise continues into the following case body.
type SwitchCase struct {
	Test expr.Node
	Body []Statement
}

// Switch is a discriminated multi-way branch with fall-through semantics.
type Switch struct {
	location
	Discriminant expr.Node
	Cases        []SwitchCase
}

func (*Switch) stmtType() string { return "switch" }

// For iterates over the elements of a list-valued expression.
type For struct {
	location
	Value string // loop variable bound to the current element
	Index string // optional loop variable bound to the current index
	In    expr.Node
	Body  []Statement
}

func (*For) stmtType() string { return "for" }

// ForRange iterates over an inclusive numeric range.
type ForRange struct {
	location
	Value string
	Start expr.Node
	End   expr.Node
	Body  []Statement
}

func (*ForRange) stmtType() string { return "for-range" }

// While is a pre-test loop.
type While struct {
	location
	Condition expr.Node
	Body      []Statement
}

func (*While) stmtType() string { return "while" }

// DoWhile is a post-test loop: the body always runs at least once.
type DoWhile struct {
	location
	Condition expr.Node
	Body      []Statement
}

func (*DoWhile) stmtType() string { return "do-while" }

// Break exits the innermost loop or switch, or the construct named by Label.
type Break struct {
	location
	Label string
}

func (*Break) stmtType() string { return "break" }

// Continue jumps to the condition recheck of the innermost loop, or of the
// loop named by Label.
type Continue struct {
	location
	Label string
}

func (*Continue) stmtType() string { return "continue" }

// Return exits the subworkflow, optionally with a value.
type Return struct {
	location
	Value expr.Node // nil when the return carries no value
}

func (*Return) stmtType() string { return "return" }

// Raise raises an error value.
type Raise struct {
	location
	Value expr.Node
}

func (*Raise) stmtType() string { return "raise" }

// Try is a protected region with optional catch handler, retry policy and
// finalizer.
type Try struct {
	location
	Body       []Statement
	Catch      []Statement
	HasCatch   bool
	ErrorVar   string // variable the caught error is bound to
	Retry      *RetryPolicy
	Finally    []Statement
	HasFinally bool
}

func (*Try) stmtType() string { return "try" }

// RetryPolicy configures automatic retry of a try body. Either Policy (a
// fully qualified predicate-and-defaults name) or the structured fields are
// set, never both.
type RetryPolicy struct {
	Policy     expr.Node // fully qualified name, e.g. http.default_retry
	Predicate  expr.Node // fully qualified predicate name
	MaxRetries expr.Node
	Backoff    *Backoff
}

// Backoff holds exponential backoff parameters.
type Backoff struct {
	InitialDelay expr.Node
	MaxDelay     expr.Node
	Multiplier   expr.Node
}

// Labelled attaches a user label to a statement. The label becomes the name
// of the first lowered step, and break/continue may target it.
type Labelled struct {
	location
	Label string
	Stmt  Statement
}

func (*Labelled) stmtType() string { return "labelled" }

// ParallelBranch is one named branch of a Parallel statement.
type ParallelBranch struct {
	Name string // optional; generated when empty
	Body []Statement
}

// Parallel executes branches or loop iterations concurrently.
type Parallel struct {
	location
	Branches         []ParallelBranch
	For              Statement // *For or *ForRange, exclusive with Branches
	Shared           []string
	ConcurrencyLimit int
	ExceptionPolicy  string // "" or "continueAll"
}

func (*Parallel) stmtType() string { return "parallel" }

// NamedArg is a named call argument; order is preserved.
type NamedArg struct {
	Name  string
	Value expr.Node
}

// CallStmt invokes a function or subworkflow as a standalone statement.
type CallStmt struct {
	location
	Function string
	Args     []NamedArg
	Result   string // optional variable for the call result
}

func (*CallStmt) stmtType() string { return "call" }
