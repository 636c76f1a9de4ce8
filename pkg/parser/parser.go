// Package parser converts the YAML intermediate representation produced by
// the source-language front end into the structured statement tree. Each
// top-level key is one subworkflow; statement bodies are sequences of
// single-key mappings; expression positions hold either plain YAML scalars
// or deferred expression strings of the form "${...}".
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aajanki/ts2workflows-sub001/pkg/expr"
	"github.com/aajanki/ts2workflows-sub001/pkg/stmt"
	"github.com/aajanki/ts2workflows-sub001/pkg/types"
)

// MaxSourceSize is the maximum program source size in bytes (128 KB).
const MaxSourceSize = 128 * 1024

// Parse parses a YAML program definition into a statement tree.
func Parse(source []byte) (*stmt.Program, error) {
	if len(source) > MaxSourceSize {
		return nil, types.NewUserError("", "program source size %d exceeds maximum %d bytes", len(source), MaxSourceSize)
	}

	var raw yaml.Node
	if err := yaml.Unmarshal(source, &raw); err != nil {
		return nil, types.NewUserError("", "invalid YAML: %v", err)
	}
	if raw.Kind != yaml.DocumentNode || len(raw.Content) == 0 {
		return nil, types.NewUserError("", "empty program definition")
	}

	root := raw.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, types.NewUserError("", "program definition must be a mapping")
	}

	program := &stmt.Program{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		sub, err := parseSubworkflow(name, root.Content[i+1])
		if err != nil {
			return nil, err
		}
		program.Subworkflows = append(program.Subworkflows, sub)
	}
	if len(program.Subworkflows) == 0 {
		return nil, types.NewUserError("", "program defines no subworkflows")
	}
	return program, nil
}

// parser carries the enclosing subworkflow name for error locations.
type parser struct {
	workflow string
}

func (p *parser) loc(node *yaml.Node) string {
	return fmt.Sprintf("line %d in workflow '%s'", node.Line, p.workflow)
}

func parseSubworkflow(name string, node *yaml.Node) (*stmt.Subworkflow, error) {
	p := &parser{workflow: name}
	sub := &stmt.Subworkflow{Name: name}

	// A bare sequence is shorthand for a body without params.
	if node.Kind == yaml.SequenceNode {
		body, err := p.parseBody(node)
		if err != nil {
			return nil, err
		}
		sub.Body = body
		return sub, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, types.NewUserError(p.loc(node), "subworkflow body must be a mapping or sequence")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "params":
			params, err := p.parseParams(val)
			if err != nil {
				return nil, err
			}
			sub.Params = params
		case "body":
			body, err := p.parseBody(val)
			if err != nil {
				return nil, err
			}
			sub.Body = body
		default:
			return nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in subworkflow definition", key)
		}
	}
	if sub.Body == nil {
		return nil, types.NewUserError(p.loc(node), "subworkflow must have a 'body'")
	}
	return sub, nil
}

func (p *parser) parseParams(node *yaml.Node) ([]stmt.Param, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, types.NewUserError(p.loc(node), "params must be a sequence")
	}

	var params []stmt.Param
	for _, item := range node.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			params = append(params, stmt.Param{Name: item.Value})
		case yaml.MappingNode:
			if len(item.Content) != 2 {
				return nil, types.NewUserError(p.loc(item), "parameter with default must be a single key-value pair")
			}
			def, err := p.parseValue(item.Content[1])
			if err != nil {
				return nil, err
			}
			if !expr.IsLiteral(def) {
				return nil, types.NewUserError(p.loc(item), "parameter default must be a literal")
			}
			params = append(params, stmt.Param{Name: item.Content[0].Value, Default: def, HasDefault: true})
		default:
			return nil, types.NewUserError(p.loc(item), "invalid parameter definition")
		}
	}
	return params, nil
}

func (p *parser) parseBody(node *yaml.Node) ([]stmt.Statement, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, types.NewUserError(p.loc(node), "statement body must be a sequence")
	}

	var body []stmt.Statement
	for _, item := range node.Content {
		s, err := p.parseStatement(item)
		if err != nil {
			return nil, err
		}
		body = append(body, s)
	}
	return body, nil
}

func (p *parser) parseStatement(node *yaml.Node) (stmt.Statement, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, types.NewUserError(p.loc(node), "each statement must be a single-key mapping")
	}

	kind := node.Content[0].Value
	val := node.Content[1]
	loc := p.loc(node.Content[0])

	s, err := p.parseStatementKind(kind, val, loc)
	if err != nil {
		return nil, err
	}
	s.SetLoc(loc)
	return s, nil
}

func (p *parser) parseStatementKind(kind string, val *yaml.Node, loc string) (stmt.Statement, error) {
	switch kind {
	case "assign":
		return p.parseAssign(val, loc)
	case "call":
		return p.parseCall(val, loc)
	case "if":
		return p.parseIf(val, loc)
	case "switch":
		return p.parseSwitch(val, loc)
	case "for":
		return p.parseFor(val, loc)
	case "for_range":
		return p.parseForRange(val, loc)
	case "while":
		return p.parseWhile(val, loc)
	case "do_while":
		return p.parseDoWhile(val, loc)
	case "break":
		return &stmt.Break{Label: optionalLabel(val)}, nil
	case "continue":
		return &stmt.Continue{Label: optionalLabel(val)}, nil
	case "return":
		return p.parseReturn(val, loc)
	case "raise":
		value, err := p.parseValue(val)
		if err != nil {
			return nil, err
		}
		return &stmt.Raise{Value: value}, nil
	case "try":
		return p.parseTry(val, loc)
	case "label":
		return p.parseLabelled(val, loc)
	case "parallel":
		return p.parseParallel(val, loc)
	default:
		return nil, types.NewUserError(loc, "unknown statement kind '%s'", kind)
	}
}

func optionalLabel(node *yaml.Node) string {
	if node.Kind == yaml.ScalarNode && node.Tag != "!!null" {
		return node.Value
	}
	return ""
}

func (p *parser) parseAssign(node *yaml.Node, loc string) (stmt.Statement, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, types.NewUserError(loc, "assign must be a sequence of target-value pairs")
	}

	out := &stmt.Assign{}
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nil, types.NewUserError(p.loc(item), "each assignment must be a single target-value pair")
		}
		target, err := p.parseAssignTarget(item.Content[0])
		if err != nil {
			return nil, err
		}
		value, err := p.parseValue(item.Content[1])
		if err != nil {
			return nil, err
		}
		out.Assignments = append(out.Assignments, stmt.Assignment{Target: target, Value: value})
	}
	if len(out.Assignments) == 0 {
		return nil, types.NewUserError(loc, "assign must contain at least one assignment")
	}
	return out, nil
}

// parseAssignTarget parses and validates an assignment target: a variable or
// a member path rooted at a variable.
func (p *parser) parseAssignTarget(node *yaml.Node) (expr.Node, error) {
	target, err := expr.Parse(node.Value)
	if err != nil {
		return nil, types.NewUserError(p.loc(node), "invalid assignment target '%s': %v", node.Value, err)
	}
	if !isAssignTarget(target) {
		return nil, types.NewUserError(p.loc(node), "assignment target must be a variable or member path, got '%s'", node.Value)
	}
	return target, nil
}

func isAssignTarget(n expr.Node) bool {
	switch node := n.(type) {
	case *expr.Variable:
		return true
	case *expr.Member:
		return isAssignTarget(node.Object) && expr.IsPure(node.Property)
	default:
		return false
	}
}

func (p *parser) parseCall(node *yaml.Node, loc string) (stmt.Statement, error) {
	if node.Kind != yaml.MappingNode {
		return nil, types.NewUserError(loc, "call must be a mapping")
	}

	out := &stmt.CallStmt{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "function":
			out.Function = val.Value
		case "args":
			if val.Kind != yaml.MappingNode {
				return nil, types.NewUserError(p.loc(val), "call args must be a mapping")
			}
			for j := 0; j+1 < len(val.Content); j += 2 {
				value, err := p.parseValue(val.Content[j+1])
				if err != nil {
					return nil, err
				}
				out.Args = append(out.Args, stmt.NamedArg{Name: val.Content[j].Value, Value: value})
			}
		case "result":
			out.Result = val.Value
		default:
			return nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in call", key)
		}
	}
	if out.Function == "" {
		return nil, types.NewUserError(loc, "call must name a function")
	}
	return out, nil
}

func (p *parser) parseIf(node *yaml.Node, loc string) (stmt.Statement, error) {
	if node.Kind != yaml.SequenceNode || len(node.Content) == 0 {
		return nil, types.NewUserError(loc, "if must be a non-empty sequence of branches")
	}

	out := &stmt.If{}
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return nil, types.NewUserError(p.loc(item), "if branch must be a mapping")
		}
		branch := stmt.IfBranch{}
		for i := 0; i+1 < len(item.Content); i += 2 {
			key := item.Content[i].Value
			val := item.Content[i+1]
			switch key {
			case "condition":
				cond, err := p.parseValue(val)
				if err != nil {
					return nil, err
				}
				branch.Condition = cond
			case "body":
				body, err := p.parseBody(val)
				if err != nil {
					return nil, err
				}
				branch.Body = body
			default:
				return nil, types.NewUserError(p.loc(item.Content[i]), "unknown key '%s' in if branch", key)
			}
		}
		out.Branches = append(out.Branches, branch)
	}
	return out, nil
}

func (p *parser) parseSwitch(node *yaml.Node, loc string) (stmt.Statement, error) {
	if node.Kind != yaml.MappingNode {
		return nil, types.NewUserError(loc, "switch must be a mapping")
	}

	out := &stmt.Switch{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "value":
			disc, err := p.parseValue(val)
			if err != nil {
				return nil, err
			}
			out.Discriminant = disc
		case "cases":
			if val.Kind != yaml.SequenceNode {
				return nil, types.NewUserError(p.loc(val), "switch cases must be a sequence")
			}
			for _, item := range val.Content {
				c, err := p.parseSwitchCase(item)
				if err != nil {
					return nil, err
				}
				out.Cases = append(out.Cases, c)
			}
		default:
			return nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in switch", key)
		}
	}
	if out.Discriminant == nil {
		return nil, types.NewUserError(loc, "switch must have a 'value'")
	}
	return out, nil
}

func (p *parser) parseSwitchCase(node *yaml.Node) (stmt.SwitchCase, error) {
	c := stmt.SwitchCase{}
	if node.Kind != yaml.MappingNode {
		return c, types.NewUserError(p.loc(node), "switch case must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "case":
			test, err := p.parseValue(val)
			if err != nil {
				return c, err
			}
			c.Test = test
		case "default":
			// marker key; a case without 'case' is the default
		case "body":
			body, err := p.parseBody(val)
			if err != nil {
				return c, err
			}
			c.Body = body
		default:
			return c, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in switch case", key)
		}
	}
	return c, nil
}

func (p *parser) parseFor(node *yaml.Node, loc string) (stmt.Statement, error) {
	if node.Kind != yaml.MappingNode {
		return nil, types.NewUserError(loc, "for must be a mapping")
	}

	out := &stmt.For{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "value":
			out.Value = val.Value
		case "index":
			out.Index = val.Value
		case "of":
			in, err := p.parseValue(val)
			if err != nil {
				return nil, err
			}
			out.In = in
		case "in":
			return nil, types.NewUserError(p.loc(node.Content[i]), "for...in is not supported, use 'of' to iterate list elements")
		case "body":
			body, err := p.parseBody(val)
			if err != nil {
				return nil, err
			}
			out.Body = body
		default:
			return nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in for", key)
		}
	}
	if out.Value == "" || out.In == nil {
		return nil, types.NewUserError(loc, "for must have 'value' and 'of'")
	}
	return out, nil
}

func (p *parser) parseForRange(node *yaml.Node, loc string) (stmt.Statement, error) {
	if node.Kind != yaml.MappingNode {
		return nil, types.NewUserError(loc, "for_range must be a mapping")
	}

	out := &stmt.ForRange{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "value":
			out.Value = val.Value
		case "start":
			start, err := p.parseValue(val)
			if err != nil {
				return nil, err
			}
			out.Start = start
		case "end":
			end, err := p.parseValue(val)
			if err != nil {
				return nil, err
			}
			out.End = end
		case "body":
			body, err := p.parseBody(val)
			if err != nil {
				return nil, err
			}
			out.Body = body
		default:
			return nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in for_range", key)
		}
	}
	if out.Value == "" || out.Start == nil || out.End == nil {
		return nil, types.NewUserError(loc, "for_range must have 'value', 'start' and 'end'")
	}
	return out, nil
}

func (p *parser) parseWhile(node *yaml.Node, loc string) (stmt.Statement, error) {
	cond, body, err := p.parseConditionBody(node, loc, "while")
	if err != nil {
		return nil, err
	}
	return &stmt.While{Condition: cond, Body: body}, nil
}

func (p *parser) parseDoWhile(node *yaml.Node, loc string) (stmt.Statement, error) {
	cond, body, err := p.parseConditionBody(node, loc, "do_while")
	if err != nil {
		return nil, err
	}
	return &stmt.DoWhile{Condition: cond, Body: body}, nil
}

func (p *parser) parseConditionBody(node *yaml.Node, loc, kind string) (expr.Node, []stmt.Statement, error) {
	if node.Kind != yaml.MappingNode {
		return nil, nil, types.NewUserError(loc, "%s must be a mapping", kind)
	}

	var cond expr.Node
	var body []stmt.Statement
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "condition":
			c, err := p.parseValue(val)
			if err != nil {
				return nil, nil, err
			}
			cond = c
		case "body":
			b, err := p.parseBody(val)
			if err != nil {
				return nil, nil, err
			}
			body = b
		default:
			return nil, nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in %s", key, kind)
		}
	}
	if cond == nil {
		return nil, nil, types.NewUserError(loc, "%s must have a 'condition'", kind)
	}
	return cond, body, nil
}

func (p *parser) parseReturn(node *yaml.Node, loc string) (stmt.Statement, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return &stmt.Return{}, nil
	}
	value, err := p.parseValue(node)
	if err != nil {
		return nil, err
	}
	return &stmt.Return{Value: value}, nil
}

func (p *parser) parseTry(node *yaml.Node, loc string) (stmt.Statement, error) {
	if node.Kind != yaml.MappingNode {
		return nil, types.NewUserError(loc, "try must be a mapping")
	}

	out := &stmt.Try{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "body":
			body, err := p.parseBody(val)
			if err != nil {
				return nil, err
			}
			out.Body = body
		case "catch":
			handler, err := p.parseBody(val)
			if err != nil {
				return nil, err
			}
			out.Catch = handler
			out.HasCatch = true
		case "as":
			out.ErrorVar = val.Value
		case "retry":
			retry, err := p.parseRetry(val)
			if err != nil {
				return nil, err
			}
			out.Retry = retry
		case "finally":
			fin, err := p.parseBody(val)
			if err != nil {
				return nil, err
			}
			out.Finally = fin
			out.HasFinally = true
		default:
			return nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in try", key)
		}
	}
	if out.Body == nil {
		return nil, types.NewUserError(loc, "try must have a 'body'")
	}
	if out.HasCatch && out.ErrorVar == "" {
		out.ErrorVar = "e"
	}
	return out, nil
}

func (p *parser) parseRetry(node *yaml.Node) (*stmt.RetryPolicy, error) {
	if node.Kind != yaml.MappingNode {
		return nil, types.NewUserError(p.loc(node), "retry must be a mapping")
	}

	retry := &stmt.RetryPolicy{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "policy":
			policy, err := p.parseQualifiedName(val)
			if err != nil {
				return nil, err
			}
			retry.Policy = policy
		case "predicate":
			pred, err := p.parseQualifiedName(val)
			if err != nil {
				return nil, err
			}
			retry.Predicate = pred
		case "max_retries":
			n, err := p.parseNumber(val, key)
			if err != nil {
				return nil, err
			}
			retry.MaxRetries = n
		case "backoff":
			backoff, err := p.parseBackoff(val)
			if err != nil {
				return nil, err
			}
			retry.Backoff = backoff
		default:
			return nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in retry", key)
		}
	}
	if retry.Policy != nil && (retry.Predicate != nil || retry.MaxRetries != nil || retry.Backoff != nil) {
		return nil, types.NewUserError(p.loc(node), "retry 'policy' excludes the structured retry fields")
	}
	return retry, nil
}

func (p *parser) parseBackoff(node *yaml.Node) (*stmt.Backoff, error) {
	if node.Kind != yaml.MappingNode {
		return nil, types.NewUserError(p.loc(node), "backoff must be a mapping")
	}

	backoff := &stmt.Backoff{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		n, err := p.parseNumber(val, key)
		if err != nil {
			return nil, err
		}
		switch key {
		case "initial_delay":
			backoff.InitialDelay = n
		case "max_delay":
			backoff.MaxDelay = n
		case "multiplier":
			backoff.Multiplier = n
		default:
			return nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in backoff", key)
		}
	}
	return backoff, nil
}

func (p *parser) parseQualifiedName(node *yaml.Node) (expr.Node, error) {
	value, err := p.parseValue(node)
	if err != nil {
		return nil, err
	}
	if lit, ok := value.(*expr.Literal); ok {
		if name, ok := lit.Value.(string); ok {
			parsed, err := expr.Parse(name)
			if err == nil && expr.IsFullyQualifiedName(parsed) {
				return parsed, nil
			}
		}
	}
	if expr.IsFullyQualifiedName(value) {
		return value, nil
	}
	return nil, types.NewUserError(p.loc(node), "expected a qualified function name, got '%s'", node.Value)
}

func (p *parser) parseNumber(node *yaml.Node, key string) (expr.Node, error) {
	value, err := p.parseValue(node)
	if err != nil {
		return nil, err
	}
	if lit, ok := value.(*expr.Literal); ok {
		switch lit.Value.(type) {
		case int64, float64:
			return value, nil
		}
	}
	return nil, types.NewUserError(p.loc(node), "retry field '%s' must be a number", key)
}

func (p *parser) parseLabelled(node *yaml.Node, loc string) (stmt.Statement, error) {
	if node.Kind != yaml.MappingNode {
		return nil, types.NewUserError(loc, "label must be a mapping")
	}

	out := &stmt.Labelled{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "name":
			out.Label = val.Value
		case "body":
			inner, err := p.parseStatement(val)
			if err != nil {
				return nil, err
			}
			out.Stmt = inner
		default:
			return nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in label", key)
		}
	}
	if out.Label == "" || out.Stmt == nil {
		return nil, types.NewUserError(loc, "label must have 'name' and 'body'")
	}
	return out, nil
}

func (p *parser) parseParallel(node *yaml.Node, loc string) (stmt.Statement, error) {
	if node.Kind != yaml.MappingNode {
		return nil, types.NewUserError(loc, "parallel must be a mapping")
	}

	out := &stmt.Parallel{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "shared":
			if val.Kind != yaml.SequenceNode {
				return nil, types.NewUserError(p.loc(val), "shared must be a sequence of variable names")
			}
			for _, item := range val.Content {
				out.Shared = append(out.Shared, item.Value)
			}
		case "concurrency_limit":
			limit, err := strconv.Atoi(val.Value)
			if err != nil || limit < 1 {
				return nil, types.NewUserError(p.loc(val), "concurrency_limit must be a positive integer")
			}
			out.ConcurrencyLimit = limit
		case "exception_policy":
			if val.Value != "continueAll" {
				return nil, types.NewUserError(p.loc(val), "unknown exception_policy '%s'", val.Value)
			}
			out.ExceptionPolicy = val.Value
		case "branches":
			branches, err := p.parseParallelBranches(val)
			if err != nil {
				return nil, err
			}
			out.Branches = branches
		case "for":
			inner, err := p.parseFor(val, p.loc(val))
			if err != nil {
				return nil, err
			}
			out.For = inner
		case "for_range":
			inner, err := p.parseForRange(val, p.loc(val))
			if err != nil {
				return nil, err
			}
			out.For = inner
		default:
			return nil, types.NewUserError(p.loc(node.Content[i]), "unknown key '%s' in parallel", key)
		}
	}
	if (out.For == nil) == (out.Branches == nil) {
		return nil, types.NewUserError(loc, "parallel must have either 'branches' or a loop, not both")
	}
	return out, nil
}

func (p *parser) parseParallelBranches(node *yaml.Node) ([]stmt.ParallelBranch, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, types.NewUserError(p.loc(node), "branches must be a sequence")
	}

	var branches []stmt.ParallelBranch
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nil, types.NewUserError(p.loc(item), "each branch must be a single name-body pair")
		}
		body, err := p.parseBody(item.Content[1])
		if err != nil {
			return nil, err
		}
		branches = append(branches, stmt.ParallelBranch{Name: item.Content[0].Value, Body: body})
	}
	return branches, nil
}

// parseValue converts a YAML value node to an expression: scalars become
// literals, sequences and mappings become list and map literals, and strings
// of the form "${...}" are parsed as expressions.
func (p *parser) parseValue(node *yaml.Node) (expr.Node, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return p.parseScalar(node)
	case yaml.SequenceNode:
		list := &expr.List{}
		for _, item := range node.Content {
			e, err := p.parseValue(item)
			if err != nil {
				return nil, err
			}
			list.Elements = append(list.Elements, e)
		}
		return list, nil
	case yaml.MappingNode:
		m := &expr.Map{}
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := p.parseValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Keys = append(m.Keys, node.Content[i].Value)
			m.Values = append(m.Values, v)
		}
		return m, nil
	case yaml.AliasNode:
		return p.parseValue(node.Alias)
	default:
		return nil, types.NewUserError(p.loc(node), "unsupported value")
	}
}

func (p *parser) parseScalar(node *yaml.Node) (expr.Node, error) {
	switch node.Tag {
	case "!!null":
		return expr.Null, nil
	case "!!bool":
		if node.Value == "true" {
			return expr.True, nil
		}
		return expr.False, nil
	case "!!int":
		v, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return nil, types.NewUserError(p.loc(node), "invalid integer '%s'", node.Value)
		}
		return expr.Int(v), nil
	case "!!float":
		v, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, types.NewUserError(p.loc(node), "invalid number '%s'", node.Value)
		}
		return &expr.Literal{Value: v}, nil
	default:
		if strings.HasPrefix(node.Value, "${") && strings.HasSuffix(node.Value, "}") {
			inner := node.Value[2 : len(node.Value)-1]
			parsed, err := expr.Parse(inner)
			if err != nil {
				return nil, types.NewUserError(p.loc(node), "invalid expression '%s': %v", inner, err)
			}
			return parsed, nil
		}
		return expr.Str(node.Value), nil
	}
}
