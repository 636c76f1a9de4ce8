package expr

// Node is the interface for all expression AST nodes. Expressions are
// immutable once built; transform passes construct new nodes instead of
// mutating existing ones.
type Node interface {
	nodeType() string
}

// Literal represents a primitive literal value. Value is nil, bool, int64,
// float64 or string.
type Literal struct {
	Value interface{}
}

func (n *Literal) nodeType() string { return "Literal" }

// Variable represents a variable reference.
type Variable struct {
	Name string
}

func (n *Variable) nodeType() string { return "Variable" }

// List represents a list literal (e.g. [1, 2, x]).
type List struct {
	Elements []Node
}

func (n *List) nodeType() string { return "List" }

// Map represents a map literal with insertion-ordered string keys.
type Map struct {
	Keys   []string
	Values []Node
}

func (n *Map) nodeType() string { return "Map" }

// Get returns the value for the given key.
func (n *Map) Get(key string) (Node, bool) {
	for i, k := range n.Keys {
		if k == key {
			return n.Values[i], true
		}
	}
	return nil, false
}

// Member represents property or index access. For non-computed access
// (obj.field) Property is a *Literal holding the field name. For computed
// access (obj[expr]) Property is an arbitrary expression.
type Member struct {
	Object   Node
	Property Node
	Computed bool
}

func (n *Member) nodeType() string { return "Member" }

// Binary represents a binary operation. Op is stored in normalized form:
// "==", "!=", "<", ">", "<=", ">=", "in", "+", "-", "*", "/", "//", "%",
// "and", "or".
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

func (n *Binary) nodeType() string { return "Binary" }

// Unary represents a unary operation. Op is "-", "+" or "not".
type Unary struct {
	Op      string
	Operand Node
}

func (n *Unary) nodeType() string { return "Unary" }

// Call represents a function invocation with positional arguments. Function
// is the fully qualified callee name (e.g. "http.get", "len").
type Call struct {
	Function string
	Args     []Node
}

func (n *Call) nodeType() string { return "Call" }

// Null is the null literal, shared because it carries no state.
var Null = &Literal{Value: nil}

// True and False are the boolean literals.
var (
	True  = &Literal{Value: true}
	False = &Literal{Value: false}
)

// Int returns an integer literal node.
func Int(v int64) *Literal { return &Literal{Value: v} }

// Str returns a string literal node.
func Str(v string) *Literal { return &Literal{Value: v} }
