// Package transform applies the post-lowering rewrite passes to a named step
// tree: intrinsic substitution, retry-policy folding, blocking-call
// extraction, nested map-literal hoisting and assign merging. Passes run one
// nesting level at a time, in that order, before descending into nested
// bodies, so that temp variable numbering and inserted step names stay
// deterministic.
package transform

import (
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
)

// Apply rewrites the subworkflow in place. The name generator must be the
// same instance used during lowering so that generated names never collide.
func Apply(sub *step.Subworkflow, gen *step.NameGenerator) error {
	refs := make(map[string]bool)
	collectNextRefs(sub.Steps, refs)

	steps, err := applyLevel(sub.Steps, gen, refs)
	if err != nil {
		return err
	}
	sub.Steps = steps
	return nil
}

func applyLevel(steps []*step.Step, gen *step.NameGenerator, refs map[string]bool) ([]*step.Step, error) {
	substituteIntrinsics(steps)

	steps, err := foldRetryPolicies(steps)
	if err != nil {
		return nil, err
	}

	steps = extractBlockingCalls(steps, gen)
	steps = hoistMapLiterals(steps, gen)
	steps = mergeAssigns(steps, refs)

	for _, s := range steps {
		if err := applyNested(s, gen, refs); err != nil {
			return nil, err
		}
	}
	return steps, nil
}

func applyNested(s *step.Step, gen *step.NameGenerator, refs map[string]bool) error {
	var err error
	for i := range s.Switch {
		b := &s.Switch[i]
		if b.Steps, err = applyLevel(b.Steps, gen, refs); err != nil {
			return err
		}
	}
	if s.For != nil {
		if s.For.Steps, err = applyLevel(s.For.Steps, gen, refs); err != nil {
			return err
		}
	}
	if s.Try != nil {
		if s.Try.Try, err = applyLevel(s.Try.Try, gen, refs); err != nil {
			return err
		}
		if s.Try.Except != nil {
			if s.Try.Except.Steps, err = applyLevel(s.Try.Except.Steps, gen, refs); err != nil {
				return err
			}
		}
	}
	if s.Parallel != nil {
		if s.Parallel.For != nil {
			if s.Parallel.For.Steps, err = applyLevel(s.Parallel.For.Steps, gen, refs); err != nil {
				return err
			}
		}
		for _, b := range s.Parallel.Branches {
			if b.Steps, err = applyLevel(b.Steps, gen, refs); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectNextRefs records every step name used as a jump target anywhere in
// the tree. A step whose name is a jump target must keep its identity and is
// never merged away.
func collectNextRefs(steps []*step.Step, refs map[string]bool) {
	for _, s := range steps {
		if s.Next != "" {
			refs[s.Next] = true
		}
		for i := range s.Switch {
			b := &s.Switch[i]
			if b.Next != "" {
				refs[b.Next] = true
			}
			collectNextRefs(b.Steps, refs)
		}
		if s.For != nil {
			collectNextRefs(s.For.Steps, refs)
		}
		if s.Try != nil {
			collectNextRefs(s.Try.Try, refs)
			if s.Try.Except != nil {
				collectNextRefs(s.Try.Except.Steps, refs)
			}
		}
		if s.Parallel != nil {
			if s.Parallel.For != nil {
				collectNextRefs(s.Parallel.For.Steps, refs)
			}
			for _, b := range s.Parallel.Branches {
				collectNextRefs(b.Steps, refs)
			}
		}
	}
}
