package step

import "testing"

func TestNameGeneratorCounters(t *testing.T) {
	gen := NewNameGenerator()

	if got := gen.Next("assign"); got != "assign1" {
		t.Errorf("got %q, want assign1", got)
	}
	if got := gen.Next("assign"); got != "assign2" {
		t.Errorf("got %q, want assign2", got)
	}
	// Counters are independent per prefix.
	if got := gen.Next("switch"); got != "switch1" {
		t.Errorf("got %q, want switch1", got)
	}
	if got := gen.Next("assign"); got != "assign3" {
		t.Errorf("got %q, want assign3", got)
	}
}

func TestNameGeneratorTemps(t *testing.T) {
	gen := NewNameGenerator()

	if got := gen.Temp(); got != "__temp0" {
		t.Errorf("got %q, want __temp0", got)
	}
	if got := gen.Temp(); got != "__temp1" {
		t.Errorf("got %q, want __temp1", got)
	}
}

func TestNameGeneratorDeterminism(t *testing.T) {
	a := NewNameGenerator()
	b := NewNameGenerator()

	for i := 0; i < 10; i++ {
		if a.Next("call_http_get_") != b.Next("call_http_get_") {
			t.Fatal("generators diverged")
		}
		if a.JumpLabel() != b.JumpLabel() {
			t.Fatal("jump labels diverged")
		}
	}
}
