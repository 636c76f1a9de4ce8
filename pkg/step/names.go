package step

import "strconv"

// NameGenerator produces deterministic step names and temporary variables
// for one subworkflow. Counters are per prefix and monotonic, so lowering
// the same input twice yields byte-identical output.
type NameGenerator struct {
	counters map[string]int
	temps    int
}

// NewNameGenerator creates an empty generator.
func NewNameGenerator() *NameGenerator {
	return &NameGenerator{counters: make(map[string]int)}
}

// Next returns the next name for the given prefix: assign1, assign2, ...
func (g *NameGenerator) Next(prefix string) string {
	g.counters[prefix]++
	return prefix + strconv.Itoa(g.counters[prefix])
}

// Temp returns the next temporary variable name: __temp0, __temp1, ...
func (g *NameGenerator) Temp() string {
	n := g.temps
	g.temps++
	return "__temp" + strconv.Itoa(n)
}

// JumpLabel returns a fresh synthetic label for a jump placeholder. The
// label never appears in output; placeholder resolution replaces every
// reference with the name of the step that follows the placeholder.
func (g *NameGenerator) JumpLabel() string {
	return g.Next("__jump_target")
}
