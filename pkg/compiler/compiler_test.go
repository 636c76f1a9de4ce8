package compiler

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/aajanki/ts2workflows-sub001/pkg/types"
)

func compile(t *testing.T, source string) string {
	t.Helper()
	out, err := Compile([]byte(source))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return string(out)
}

// stepNames decodes the output and returns the top-level step names of the
// given workflow in document order.
func stepNames(t *testing.T, out, workflow string) []string {
	t.Helper()
	var doc map[string]struct {
		Steps []map[string]interface{} `yaml:"steps"`
	}
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, out)
	}
	wf, ok := doc[workflow]
	if !ok {
		t.Fatalf("workflow %q missing:\n%s", workflow, out)
	}
	var names []string
	for _, s := range wf.Steps {
		for name := range s {
			names = append(names, name)
		}
	}
	return names
}

func TestCompileMergesAssignsAndReturns(t *testing.T) {
	out := compile(t, `
main:
  - assign:
      - x: 5
  - assign:
      - x: ${x + 1}
  - return: ${x}
`)

	names := stepNames(t, out, "main")
	if len(names) != 2 || names[0] != "assign1" || names[1] != "return1" {
		t.Fatalf("steps %v\n%s", names, out)
	}
	if !strings.Contains(out, "return: ${x}") {
		t.Errorf("missing return:\n%s", out)
	}
}

func TestCompileWhileLoop(t *testing.T) {
	out := compile(t, `
main:
  - assign:
      - x: 0
  - while:
      condition: ${x < 10}
      body:
        - assign:
            - x: ${x + 1}
  - return: ${x}
`)

	names := stepNames(t, out, "main")
	want := []string{"assign1", "switch1", "return1"}
	for i, n := range want {
		if i >= len(names) || names[i] != n {
			t.Fatalf("steps %v, want %v\n%s", names, want, out)
		}
	}
	// The loop body jumps back to the condition recheck.
	if !strings.Contains(out, "next: switch1") {
		t.Errorf("missing back-edge:\n%s", out)
	}
	if !strings.Contains(out, "condition: ${x < 10}") {
		t.Errorf("missing condition:\n%s", out)
	}
}

func TestCompileTryFinally(t *testing.T) {
	out := compile(t, `
main:
  - try:
      body:
        - return: "ok"
      finally:
        - call:
            function: sys.log
            args:
              data: "cleanup"
`)

	for _, want := range []string{
		"__finally_condition1",
		"__finally_value1",
		"__finally_error1",
		`${__finally_condition1 == "return"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}
}

func TestCompileBlockingCallExtraction(t *testing.T) {
	out := compile(t, `
main:
  - return: ${http.get("https://example.com")}
`)

	names := stepNames(t, out, "main")
	if len(names) != 2 || names[0] != "call_http_get_1" {
		t.Fatalf("steps %v\n%s", names, out)
	}
	if !strings.Contains(out, "call: http.get") {
		t.Errorf("missing call:\n%s", out)
	}
	if !strings.Contains(out, "result: __temp0") || !strings.Contains(out, "return: ${__temp0}") {
		t.Errorf("temp plumbing broken:\n%s", out)
	}
}

func TestCompileMapHoisting(t *testing.T) {
	out := compile(t, `
main:
  - return: '${{a: {b: 1}}.a.b}'
`)

	if !strings.Contains(out, "__temp0:") {
		t.Errorf("map literal not hoisted:\n%s", out)
	}
	if !strings.Contains(out, "return: ${__temp0.a.b}") {
		t.Errorf("return should reference the temp:\n%s", out)
	}
}

func TestCompileSubworkflowsAreIndependent(t *testing.T) {
	out := compile(t, `
first:
  - assign:
      - x: 1
second:
  - assign:
      - y: 2
`)

	// Each subworkflow gets a fresh name generator.
	if got := stepNames(t, out, "first"); len(got) != 1 || got[0] != "assign1" {
		t.Errorf("first: %v", got)
	}
	if got := stepNames(t, out, "second"); len(got) != 1 || got[0] != "assign1" {
		t.Errorf("second: %v", got)
	}
}

func TestCompileSubworkflowCallWithParams(t *testing.T) {
	out := compile(t, `
main:
  - call:
      function: greet
      args:
        name: "world"
      result: message
  - return: ${message}
greet:
  params:
    - name
    - greeting: "Hello"
  body:
    - return: ${greeting + ", " + name}
`)

	if !strings.Contains(out, "call: greet") {
		t.Errorf("missing subworkflow call:\n%s", out)
	}
	if !strings.Contains(out, `params: [name, {greeting: Hello}]`) {
		t.Errorf("params misrendered:\n%s", out)
	}
}

func TestCompileDeterminism(t *testing.T) {
	source := []byte(`
main:
  - assign:
      - items: [3, 1, 2]
      - total: 0
  - for:
      value: item
      of: ${items}
      body:
        - assign:
            - total: ${total + item}
  - if:
      - condition: ${total > 5}
        body:
          - return: "big"
      - body:
          - return: "small"
`)

	first, err := Compile(source)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Compile(source)
		if err != nil {
			t.Fatalf("compile failed: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("output differs between runs:\n%s\n---\n%s", first, again)
		}
	}
}

func TestCompileUserErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"invalid yaml", "main: [\n"},
		{"unknown statement", "main:\n  - jump: {}\n"},
		{"break outside loop", "main:\n  - break:\n"},
		{"unknown label", "main:\n  - while:\n      condition: true\n      body:\n        - break: missing\n"},
		{"for in", "main:\n  - for:\n      value: v\n      in: ${items}\n      body: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]byte(tt.source))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !types.IsUserError(err) {
				t.Errorf("expected a user error, got %v", err)
			}
		})
	}
}

func TestCompileInternalErrors(t *testing.T) {
	// A user label that collides with a generated step name violates the
	// unique-name invariant, which is the compiler's fault to prevent.
	source := `
main:
  - assign:
      - x: 1
  - label:
      name: assign1
      body:
        assign:
          - y: 2
`
	_, err := Compile([]byte(source))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !types.IsInternalError(err) {
		t.Errorf("expected an internal error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "internal error:") {
		t.Errorf("internal errors must carry the prefix, got %q", err.Error())
	}
}
