package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator precedence levels. A child expression is parenthesized when its
// precedence is strictly lower than its parent's.
const (
	precOr         = 1
	precAnd        = 2
	precComparison = 3
	precAdditive   = 4
	precMultiplic  = 5
	precUnary      = 6
	precNot        = 7
	precPostfix    = 8
)

// binaryPrecedence returns the precedence level of a normalized binary operator.
func binaryPrecedence(op string) int {
	switch op {
	case "or":
		return precOr
	case "and":
		return precAnd
	case "==", "!=", "<", ">", "<=", ">=", "in":
		return precComparison
	case "+", "-":
		return precAdditive
	case "*", "/", "//", "%":
		return precMultiplic
	default:
		return precPostfix
	}
}

func precedence(n Node) int {
	switch node := n.(type) {
	case *Binary:
		return binaryPrecedence(node.Op)
	case *Unary:
		if node.Op == "not" {
			return precNot
		}
		return precUnary
	default:
		return precPostfix
	}
}

// Render produces the textual form of an expression without the surrounding
// ${} markers, inserting minimal parentheses.
func Render(n Node) string {
	return render(n, 0)
}

// RenderDeferred wraps the rendered expression in the runtime's deferred
// expression markers.
func RenderDeferred(n Node) string {
	return "${" + Render(n) + "}"
}

func render(n Node, parentPrec int) string {
	self := precedence(n)
	s := renderBare(n)
	if self < parentPrec {
		return "(" + s + ")"
	}
	return s
}

func renderBare(n Node) string {
	switch node := n.(type) {
	case *Literal:
		return renderLiteral(node.Value)
	case *Variable:
		return node.Name
	case *List:
		parts := make([]string, len(node.Elements))
		for i, e := range node.Elements {
			parts[i] = render(e, 0)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Map:
		parts := make([]string, len(node.Keys))
		for i, k := range node.Keys {
			parts[i] = strconv.Quote(k) + ": " + render(node.Values[i], 0)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Member:
		obj := render(node.Object, precPostfix)
		if !node.Computed {
			if prop, ok := node.Property.(*Literal); ok {
				if name, ok := prop.Value.(string); ok {
					return obj + "." + name
				}
			}
		}
		return obj + "[" + render(node.Property, 0) + "]"
	case *Binary:
		// The right operand needs parens already at equal precedence so that
		// left-associative chains like 1 - (2 - 3) survive a round trip.
		prec := binaryPrecedence(node.Op)
		return render(node.Left, prec) + " " + node.Op + " " + render(node.Right, prec+1)
	case *Unary:
		if node.Op == "not" {
			return "not " + render(node.Operand, precNot)
		}
		return node.Op + render(node.Operand, precUnary)
	case *Call:
		parts := make([]string, len(node.Args))
		for i, a := range node.Args {
			parts[i] = render(a, 0)
		}
		return node.Function + "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("<%T>", n)
	}
}

func renderLiteral(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return strconv.Quote(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// IsLiteral reports whether an expression is a compile-time literal: it
// contains no variable references, member accesses, operators or calls
// anywhere in the tree.
func IsLiteral(n Node) bool {
	switch node := n.(type) {
	case *Literal:
		return true
	case *List:
		for _, e := range node.Elements {
			if !IsLiteral(e) {
				return false
			}
		}
		return true
	case *Map:
		for _, v := range node.Values {
			if !IsLiteral(v) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsPure reports whether an expression contains no function invocation
// anywhere in the tree. Pure expressions may be duplicated safely.
func IsPure(n Node) bool {
	switch node := n.(type) {
	case *Literal, *Variable:
		return true
	case *List:
		for _, e := range node.Elements {
			if !IsPure(e) {
				return false
			}
		}
		return true
	case *Map:
		for _, v := range node.Values {
			if !IsPure(v) {
				return false
			}
		}
		return true
	case *Member:
		return IsPure(node.Object) && IsPure(node.Property)
	case *Binary:
		return IsPure(node.Left) && IsPure(node.Right)
	case *Unary:
		return IsPure(node.Operand)
	case *Call:
		return false
	default:
		return false
	}
}

// IsFullyQualifiedName reports whether an expression is a fully qualified
// name: a member chain in which every step is a plain identifier or a
// computed access keyed by a primitive literal or another fully qualified
// name. Call targets and retry predicates must satisfy this predicate.
func IsFullyQualifiedName(n Node) bool {
	switch node := n.(type) {
	case *Variable:
		return true
	case *Member:
		if !IsFullyQualifiedName(node.Object) {
			return false
		}
		if node.Computed {
			if _, ok := node.Property.(*Literal); ok {
				return true
			}
			return IsFullyQualifiedName(node.Property)
		}
		prop, ok := node.Property.(*Literal)
		if !ok {
			return false
		}
		_, ok = prop.Value.(string)
		return ok
	default:
		return false
	}
}
