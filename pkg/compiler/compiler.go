// Package compiler wires the full pipeline together: YAML program in,
// workflow definition YAML out. The CLI, the compile server and the deployer
// all go through Compile.
package compiler

import (
	"github.com/aajanki/ts2workflows-sub001/pkg/emit"
	"github.com/aajanki/ts2workflows-sub001/pkg/lower"
	"github.com/aajanki/ts2workflows-sub001/pkg/parser"
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
	"github.com/aajanki/ts2workflows-sub001/pkg/transform"
)

// Compile parses, lowers, rewrites and serializes a whole program. Output is
// deterministic: identical input yields byte-identical output.
func Compile(source []byte) ([]byte, error) {
	program, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}

	lowered := &step.Program{}
	for _, sub := range program.Subworkflows {
		// The generator is shared between lowering and the rewrite passes so
		// generated names stay unique across both.
		gen := step.NewNameGenerator()
		out, err := lower.Subworkflow(sub, gen)
		if err != nil {
			return nil, err
		}
		if err := transform.Apply(out, gen); err != nil {
			return nil, err
		}
		lowered.Subworkflows = append(lowered.Subworkflows, out)
	}

	return emit.Program(lowered)
}
