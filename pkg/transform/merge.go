package transform

import (
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
)

// maxMergedAssignments caps the size of a merged assign step. The target
// runtime rejects assign steps with more entries.
const maxMergedAssignments = 50

// mergeAssigns folds consecutive assign steps into one, concatenating their
// assignment lists in order. The first step's name survives, so a user label
// on the leading step keeps working. A step whose name is a jump target is
// never absorbed, and a step that already jumps elsewhere never absorbs a
// successor.
func mergeAssigns(steps []*step.Step, referenced map[string]bool) []*step.Step {
	var out []*step.Step
	for _, s := range steps {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if canMerge(prev, s, referenced) {
				prev.Assign = append(prev.Assign, s.Assign...)
				prev.Next = s.Next
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func canMerge(prev, s *step.Step, referenced map[string]bool) bool {
	return isAssignOnly(prev) && isAssignOnly(s) &&
		prev.Next == "" &&
		!referenced[s.Name] &&
		len(prev.Assign)+len(s.Assign) <= maxMergedAssignments
}

func isAssignOnly(s *step.Step) bool {
	return s.Assign != nil && s.Call == nil && s.Switch == nil && s.For == nil &&
		s.Parallel == nil && s.Try == nil && s.Raise == nil && !s.HasReturn
}
