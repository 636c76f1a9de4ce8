package lower

import (
	"strings"

	"github.com/aajanki/ts2workflows-sub001/pkg/step"
	"github.com/aajanki/ts2workflows-sub001/pkg/types"
)

// resolvePlaceholders runs after the whole step tree is built. It maps every
// placeholder label to the name of the step physically following the
// placeholder (or to the enclosing scope's implicit successor when the
// placeholder is last), rewrites every reference, and erases the
// placeholders. Correctness depends on all placeholders existing before
// resolution starts, which is why this is a separate pass rather than being
// interleaved with lowering.
func resolvePlaceholders(steps []*step.Step) ([]*step.Step, error) {
	labels := make(map[string]string)
	collectLabels(steps, step.NextEnd, labels)
	if err := rewriteTargets(steps, labels); err != nil {
		return nil, err
	}
	return stripPlaceholders(steps), nil
}

// collectLabels walks a step list backwards so that each placeholder sees
// the name of its physical successor. successor is the implicit target when
// a placeholder is the last step of the list.
func collectLabels(steps []*step.Step, successor string, labels map[string]string) {
	succ := successor
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.IsPlaceholder() {
			labels[s.PlaceholderLabel] = succ
			continue
		}
		// Nested scopes: falling off a switch branch or try block continues
		// after the owning step; falling off a loop body re-iterates; a
		// parallel branch simply ends.
		for _, b := range s.Switch {
			collectLabels(b.Steps, succ, labels)
		}
		if s.For != nil {
			collectLabels(s.For.Steps, step.NextContinue, labels)
		}
		if s.Try != nil {
			collectLabels(s.Try.Try, succ, labels)
			if s.Try.Except != nil {
				collectLabels(s.Try.Except.Steps, succ, labels)
			}
		}
		if s.Parallel != nil {
			if s.Parallel.For != nil {
				collectLabels(s.Parallel.For.Steps, step.NextContinue, labels)
			}
			for _, b := range s.Parallel.Branches {
				collectLabels(b.Steps, step.NextEnd, labels)
			}
		}
		succ = s.Name
	}
}

// rewriteTargets replaces placeholder labels in every next reference.
func rewriteTargets(steps []*step.Step, labels map[string]string) error {
	for _, s := range steps {
		var err error
		if s.Next, err = resolveTarget(s.Next, labels); err != nil {
			return err
		}
		for i := range s.Switch {
			b := &s.Switch[i]
			if b.Next, err = resolveTarget(b.Next, labels); err != nil {
				return err
			}
			if err = rewriteTargets(b.Steps, labels); err != nil {
				return err
			}
		}
		if s.For != nil {
			if err = rewriteTargets(s.For.Steps, labels); err != nil {
				return err
			}
		}
		if s.Try != nil {
			if err = rewriteTargets(s.Try.Try, labels); err != nil {
				return err
			}
			if s.Try.Except != nil {
				if err = rewriteTargets(s.Try.Except.Steps, labels); err != nil {
					return err
				}
			}
		}
		if s.Parallel != nil {
			if s.Parallel.For != nil {
				if err = rewriteTargets(s.Parallel.For.Steps, labels); err != nil {
					return err
				}
			}
			for _, b := range s.Parallel.Branches {
				if err = rewriteTargets(b.Steps, labels); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func resolveTarget(target string, labels map[string]string) (string, error) {
	if target == "" {
		return "", nil
	}
	if resolved, ok := labels[target]; ok {
		return resolved, nil
	}
	if isPlaceholderLabel(target) {
		return "", types.NewInternalError("jump placeholder label %q referenced after resolution", target)
	}
	return target, nil
}

func isPlaceholderLabel(target string) bool {
	return strings.HasPrefix(target, "__jump_target")
}

// stripPlaceholders removes placeholder steps from every nesting level.
func stripPlaceholders(steps []*step.Step) []*step.Step {
	out := steps[:0]
	for _, s := range steps {
		if s.IsPlaceholder() {
			continue
		}
		for i := range s.Switch {
			b := &s.Switch[i]
			b.Steps = stripPlaceholders(b.Steps)
		}
		if s.For != nil {
			s.For.Steps = stripPlaceholders(s.For.Steps)
		}
		if s.Try != nil {
			s.Try.Try = stripPlaceholders(s.Try.Try)
			if s.Try.Except != nil {
				s.Try.Except.Steps = stripPlaceholders(s.Try.Except.Steps)
			}
		}
		if s.Parallel != nil {
			if s.Parallel.For != nil {
				s.Parallel.For.Steps = stripPlaceholders(s.Parallel.For.Steps)
			}
			for _, b := range s.Parallel.Branches {
				b.Steps = stripPlaceholders(b.Steps)
			}
		}
		out = append(out, s)
	}
	return out
}

// validate checks the invariants the lowering passes are supposed to
// maintain: unique names per nesting level, no surviving placeholders, every
// next reference resolving to a known step or reserved target, and every
// switch branch carrying either steps or a next.
func validate(sub *step.Subworkflow) error {
	names := make(map[string]bool)
	gatherNames(sub.Steps, names)
	return validateSteps(sub.Steps, names)
}

func gatherNames(steps []*step.Step, names map[string]bool) {
	for _, s := range steps {
		names[s.Name] = true
		for i := range s.Switch {
			gatherNames(s.Switch[i].Steps, names)
		}
		if s.For != nil {
			gatherNames(s.For.Steps, names)
		}
		if s.Try != nil {
			gatherNames(s.Try.Try, names)
			if s.Try.Except != nil {
				gatherNames(s.Try.Except.Steps, names)
			}
		}
		if s.Parallel != nil {
			if s.Parallel.For != nil {
				gatherNames(s.Parallel.For.Steps, names)
			}
			for _, b := range s.Parallel.Branches {
				gatherNames(b.Steps, names)
			}
		}
	}
}

func validateSteps(steps []*step.Step, names map[string]bool) error {
	siblings := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.IsPlaceholder() {
			return types.NewInternalError("jump placeholder %q survived resolution", s.PlaceholderLabel)
		}
		if siblings[s.Name] {
			return types.NewInternalError("duplicate step name %q", s.Name)
		}
		siblings[s.Name] = true

		if err := validateTarget(s.Next, names); err != nil {
			return err
		}
		for i := range s.Switch {
			b := &s.Switch[i]
			if len(b.Steps) == 0 && b.Next == "" && !b.HasReturn && b.Raise == nil {
				return types.NewInternalError("switch branch in step %q has neither steps nor next", s.Name)
			}
			if err := validateTarget(b.Next, names); err != nil {
				return err
			}
			if err := validateSteps(b.Steps, names); err != nil {
				return err
			}
		}
		if s.For != nil {
			if err := validateSteps(s.For.Steps, names); err != nil {
				return err
			}
		}
		if s.Try != nil {
			if err := validateSteps(s.Try.Try, names); err != nil {
				return err
			}
			if s.Try.Except != nil {
				if err := validateSteps(s.Try.Except.Steps, names); err != nil {
					return err
				}
			}
		}
		if s.Parallel != nil {
			if s.Parallel.For != nil {
				if err := validateSteps(s.Parallel.For.Steps, names); err != nil {
					return err
				}
			}
			for _, b := range s.Parallel.Branches {
				if err := validateSteps(b.Steps, names); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateTarget(target string, names map[string]bool) error {
	switch target {
	case "", step.NextEnd, step.NextBreak, step.NextContinue:
		return nil
	}
	if !names[target] {
		return types.NewInternalError("next target %q does not name a step", target)
	}
	return nil
}
