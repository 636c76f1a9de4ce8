package expr

import (
	"strings"
	"testing"
)

func TestParseAndRender(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"42", "42"},
		{"3.5", "3.5"},
		{`"hello"`, `"hello"`},
		{"true", "true"},
		{"null", "null"},
		{"x", "x"},
		{"1 + 2 * 3", "1 + 2 * 3"},
		{"(1 + 2) * 3", "(1 + 2) * 3"},
		{"1 - (2 - 3)", "1 - (2 - 3)"},
		{"7 // 2", "7 // 2"},
		{"10 % 3", "10 % 3"},
		{"-x + 1", "-x + 1"},
		{"a.b.c", "a.b.c"},
		{"a[0].b", "a[0].b"},
		{"a[i + 1]", "a[i + 1]"},
		{`m["key with spaces"]`, `m["key with spaces"]`},
		{"len(x) > 0", "len(x) > 0"},
		{"sys.now()", "sys.now()"},
		{"x > 0 and y < 10", "x > 0 and y < 10"},
		{"a or b and c", "a or b and c"},
		{"(a or b) and c", "(a or b) and c"},
		{"not done", "not done"},
		{`[1, 2, x]`, "[1, 2, x]"},
		{`{a: 1, "b c": 2}`, `{"a": 1, "b c": 2}`},
		{`"k" in m`, `"k" in m`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got := Render(node); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOperatorNormalization(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"x === 5", "x == 5"},
		{"x !== null", "x != null"},
		{"a && b", "a and b"},
		{"a || b", "a or b"},
		{"!ready", "not ready"},
		{"a && b || !c", "a and b or not c"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got := Render(node); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNotIn(t *testing.T) {
	node, err := Parse("x not in y")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	un, ok := node.(*Unary)
	if !ok || un.Op != "not" {
		t.Fatalf("expected not-unary, got %#v", node)
	}
	bin, ok := un.Operand.(*Binary)
	if !ok || bin.Op != "in" {
		t.Fatalf("expected in-binary operand, got %#v", un.Operand)
	}
	if got := Render(node); got != "not (x in y)" {
		t.Errorf("rendered %q", got)
	}
}

func TestNotPrecedence(t *testing.T) {
	// Unary not binds tighter than comparisons and membership, like the
	// other unary operators.
	tests := []struct {
		input string
		want  string
	}{
		{"!x == 1", "not x == 1"},
		{"not x == 1", "not x == 1"},
		{"not x in y", "not x in y"},
		{"not (x == 1)", "not (x == 1)"},
		{"not not x", "not not x"},
		{"not x and y", "not x and y"},
		{"not (x and y)", "not (x and y)"},
		{"!a or !b", "not a or not b"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got := Render(node); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	node, err := Parse("!x == 1")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	bin, ok := node.(*Binary)
	if !ok || bin.Op != "==" {
		t.Fatalf("expected ==-binary, got %#v", node)
	}
	if _, ok := bin.Left.(*Unary); !ok {
		t.Errorf("expected not-unary left operand, got %#v", bin.Left)
	}
}

func TestRenderDeferred(t *testing.T) {
	node, err := Parse("x + 1")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if got := RenderDeferred(node); got != "${x + 1}" {
		t.Errorf("got %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"1 +",
		"f(",
		"a.",
		"[1, 2",
		"{1: 2}",
		"{a 1}",
		"a[",
		"x ===",
		")",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); err == nil {
				t.Errorf("expected parse error for %q", input)
			}
		})
	}
}

func TestMaxExpressionLength(t *testing.T) {
	long := "x + " + strings.Repeat("1 + ", MaxExpressionLength/4) + "1"
	if _, err := Parse(long); err == nil {
		t.Error("expected length error")
	}
}

func TestIsLiteral(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"42", true},
		{`"s"`, true},
		{"null", true},
		{"[1, 2, 3]", true},
		{`{a: 1, b: [2]}`, true},
		{"x", false},
		{"[1, x]", false},
		{`{a: x}`, false},
		{"1 + 2", false},
		{"f()", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got := IsLiteral(node); got != tt.want {
				t.Errorf("IsLiteral(%s) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsPure(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"x + 1", true},
		{"a.b[i]", true},
		{"len(x)", false},
		{"[f()]", false},
		{"not x", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got := IsPure(node); got != tt.want {
				t.Errorf("IsPure(%s) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsFullyQualifiedName(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"x", true},
		{"http.default_retry", true},
		{"a.b.c", true},
		{`a["b"].c`, true},
		{"a[i].b", true},
		{"a[i + 1]", false},
		{"f()", false},
		{"1", false},
		{"a + b", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got := IsFullyQualifiedName(node); got != tt.want {
				t.Errorf("IsFullyQualifiedName(%s) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
