package transform

import (
	"github.com/aajanki/ts2workflows-sub001/pkg/expr"
	"github.com/aajanki/ts2workflows-sub001/pkg/step"
)

// intrinsicTypeChecks maps compiler-known type-test pseudo-functions to the
// type name the runtime's get_type builtin reports.
var intrinsicTypeChecks = map[string]string{
	"is_bool":   "boolean",
	"is_double": "double",
	"is_int":    "integer",
	"is_list":   "list",
	"is_map":    "map",
	"is_string": "string",
}

// substituteIntrinsics rewrites pseudo-function calls into their primitive
// expression form: is_list(x) becomes get_type(x) == "list", and so on for
// the other type tests.
func substituteIntrinsics(steps []*step.Step) {
	for _, s := range steps {
		rewriteStepExprs(s, substituteIntrinsic)
	}
}

func substituteIntrinsic(n expr.Node) expr.Node {
	call, ok := n.(*expr.Call)
	if !ok || len(call.Args) != 1 {
		return n
	}
	typeName, ok := intrinsicTypeChecks[call.Function]
	if !ok {
		return n
	}
	return &expr.Binary{
		Op:    "==",
		Left:  &expr.Call{Function: "get_type", Args: call.Args},
		Right: expr.Str(typeName),
	}
}
