package transform

import (
	"github.com/aajanki/ts2workflows-sub001/pkg/expr"
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
	"github.com/aajanki/ts2workflows-sub001/pkg/types"
)

// RetryPolicyFunction is the reserved configuration function. A call to it as
// the first statement of a try body attaches a retry policy to that try.
const RetryPolicyFunction = "retry_policy"

// foldRetryPolicies moves retry_policy configuration calls onto their
// enclosing try steps. Only a call that is the lexically first statement
// inside a try body is folded; a call anywhere else is silently dropped.
func foldRetryPolicies(steps []*step.Step) ([]*step.Step, error) {
	out := steps[:0]
	for _, s := range steps {
		if s.Try != nil {
			if err := foldIntoTry(s); err != nil {
				return nil, err
			}
		}
		if isRetryPolicyCall(s) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func isRetryPolicyCall(s *step.Step) bool {
	return s.Call != nil && s.Call.Function == RetryPolicyFunction
}

func foldIntoTry(s *step.Step) error {
	t := s.Try
	if len(t.Try) == 0 || !isRetryPolicyCall(t.Try[0]) {
		return nil
	}
	first := t.Try[0]
	if len(first.Call.Args) != 1 {
		return types.NewUserError("", "%s expects exactly one argument", RetryPolicyFunction)
	}
	retry, err := parseRetryArg(first.Call.Args[0].Value)
	if err != nil {
		return err
	}
	if t.Retry != nil {
		return types.NewInternalError("try step %q already has a retry policy", s.Name)
	}
	t.Retry = retry
	t.Try = t.Try[1:]
	return nil
}

// parseRetryArg validates the argument of a retry_policy call: either a
// fully qualified policy name or a literal map of retry parameters.
func parseRetryArg(arg expr.Node) (*step.Retry, error) {
	if expr.IsFullyQualifiedName(arg) {
		return &step.Retry{Policy: arg}, nil
	}

	m, ok := arg.(*expr.Map)
	if !ok {
		return nil, types.NewUserError("", "retry policy must be a qualified function name or a literal map")
	}

	retry := &step.Retry{}
	if pred, ok := m.Get("predicate"); ok {
		if !expr.IsFullyQualifiedName(pred) {
			return nil, types.NewUserError("", "retry predicate must be a qualified function name")
		}
		retry.Predicate = pred
	}
	var err error
	if retry.MaxRetries, err = numericRetryField(m, "max_retries"); err != nil {
		return nil, err
	}

	backoff := &step.Backoff{}
	if backoff.InitialDelay, err = numericRetryField(m, "initial_delay"); err != nil {
		return nil, err
	}
	if backoff.MaxDelay, err = numericRetryField(m, "max_delay"); err != nil {
		return nil, err
	}
	if backoff.Multiplier, err = numericRetryField(m, "multiplier"); err != nil {
		return nil, err
	}
	if backoff.InitialDelay != nil || backoff.MaxDelay != nil || backoff.Multiplier != nil {
		retry.Backoff = backoff
	}
	return retry, nil
}

func numericRetryField(m *expr.Map, key string) (expr.Node, error) {
	v, ok := m.Get(key)
	if !ok {
		return nil, nil
	}
	if lit, ok := v.(*expr.Literal); ok {
		switch lit.Value.(type) {
		case int64, float64:
			return v, nil
		}
	}
	return nil, types.NewUserError("", "retry policy field '%s' must be a number", key)
}
