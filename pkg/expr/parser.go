package expr

import (
	"fmt"
)

// MaxExpressionLength is the maximum allowed length for a single expression.
const MaxExpressionLength = 400

// Parser is a recursive descent parser for expression strings.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse parses a complete expression string into an expression tree.
func Parse(input string) (Node, error) {
	if len(input) > MaxExpressionLength {
		return nil, fmt.Errorf("expression exceeds maximum length of %d characters", MaxExpressionLength)
	}

	lexer := NewLexer(input)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, fmt.Errorf("lexer error: %w", err)
	}

	p := &Parser{tokens: tokens}
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.current().Type != TokenEOF {
		return nil, fmt.Errorf("unexpected token %s at position %d", p.current().Type, p.current().Pos)
	}

	return node, nil
}

// opString maps an operator token to its normalized textual form.
func opString(tt TokenType) string {
	switch tt {
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenSlash:
		return "/"
	case TokenIntDiv:
		return "//"
	case TokenPercent:
		return "%"
	case TokenEq:
		return "=="
	case TokenNeq:
		return "!="
	case TokenLt:
		return "<"
	case TokenGt:
		return ">"
	case TokenLte:
		return "<="
	case TokenGte:
		return ">="
	case TokenAnd:
		return "and"
	case TokenOr:
		return "or"
	case TokenNot:
		return "not"
	case TokenIn:
		return "in"
	default:
		return "?"
	}
}

// current returns the current token.
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// peek returns the next token without consuming it.
func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

// advance consumes the current token and returns it.
func (p *Parser) advance() Token {
	tok := p.current()
	p.pos++
	return tok
}

// expect consumes a token of the expected type or returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.current()
	if tok.Type != tt {
		return tok, fmt.Errorf("expected %s, got %s at position %d", tt, tok.Type, tok.Pos)
	}
	p.advance()
	return tok, nil
}

// parseExpression is the entry point: handles the lowest precedence operators.
// Precedence (low to high):
//
//	or
//	and
//	in, not in
//	==, !=, <, >, <=, >=
//	+, -
//	*, /, %, //
//	unary -, unary +, not
//	property access, index, function call
func (p *Parser) parseExpression() (Node, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenAnd {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	switch p.current().Type {
	case TokenEq, TokenNeq, TokenLt, TokenGt, TokenLte, TokenGte:
		op := p.advance().Type
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: opString(op), Left: left, Right: right}, nil
	case TokenIn:
		p.advance()
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: "in", Left: left, Right: right}, nil
	case TokenNot:
		if p.peek().Type == TokenIn {
			p.advance() // consume 'not'
			p.advance() // consume 'in'
			right, err := p.parseAddition()
			if err != nil {
				return nil, err
			}
			return &Unary{Op: "not", Operand: &Binary{Op: "in", Left: left, Right: right}}, nil
		}
	}

	return left, nil
}

func (p *Parser) parseAddition() (Node, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenPlus || p.current().Type == TokenMinus {
		op := p.advance().Type
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: opString(op), Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplication() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenStar || p.current().Type == TokenSlash ||
		p.current().Type == TokenPercent || p.current().Type == TokenIntDiv {
		op := p.advance().Type
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: opString(op), Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Node, error) {
	if p.current().Type == TokenMinus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", Operand: operand}, nil
	}
	if p.current().Type == TokenPlus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "+", Operand: operand}, nil
	}
	if p.current().Type == TokenNot {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "not", Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.current().Type {
		case TokenDot:
			p.advance()
			name, err := p.expect(TokenIdent)
			if err != nil {
				return nil, fmt.Errorf("expected property name after '.': %w", err)
			}
			node = &Member{Object: node, Property: Str(name.Value)}
			if p.current().Type == TokenLParen {
				call, err := p.finishCall(node)
				if err != nil {
					return nil, err
				}
				node = call
			}
		case TokenLBracket:
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenRBracket); err != nil {
				return nil, fmt.Errorf("expected ']': %w", err)
			}
			node = &Member{Object: node, Property: index, Computed: true}
		case TokenLParen:
			call, err := p.finishCall(node)
			if err != nil {
				return nil, err
			}
			node = call
		default:
			return node, nil
		}
	}
}

// finishCall parses an argument list and builds a Call node. The callee must
// be a fully qualified name (identifier or dotted identifier chain).
func (p *Parser) finishCall(callee Node) (Node, error) {
	name, ok := qualifiedName(callee)
	if !ok {
		return nil, fmt.Errorf("call target at position %d is not a function name", p.current().Pos)
	}
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	return &Call{Function: name, Args: args}, nil
}

// qualifiedName flattens an identifier or dotted member chain into its
// textual form. Computed access disqualifies the chain.
func qualifiedName(n Node) (string, bool) {
	switch node := n.(type) {
	case *Variable:
		return node.Name, true
	case *Member:
		if node.Computed {
			return "", false
		}
		base, ok := qualifiedName(node.Object)
		if !ok {
			return "", false
		}
		prop, ok := node.Property.(*Literal)
		if !ok {
			return "", false
		}
		name, ok := prop.Value.(string)
		if !ok {
			return "", false
		}
		return base + "." + name, true
	default:
		return "", false
	}
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.current()

	switch tok.Type {
	case TokenInt:
		p.advance()
		return Int(tok.IntVal), nil
	case TokenFloat:
		p.advance()
		return &Literal{Value: tok.FloatVal}, nil
	case TokenString:
		p.advance()
		return Str(tok.StrVal), nil
	case TokenTrue:
		p.advance()
		return True, nil
	case TokenFalse:
		p.advance()
		return False, nil
	case TokenNull:
		p.advance()
		return Null, nil
	case TokenIdent:
		p.advance()
		return &Variable{Name: tok.Value}, nil
	case TokenLParen:
		p.advance()
		node, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, fmt.Errorf("expected ')': %w", err)
		}
		return node, nil
	case TokenLBracket:
		return p.parseListLiteral()
	case TokenLBrace:
		return p.parseMapLiteral()
	default:
		return nil, fmt.Errorf("unexpected token %s (%q) at position %d", tok.Type, tok.Value, tok.Pos)
	}
}

// parseListLiteral parses [expr, expr, ...].
func (p *Parser) parseListLiteral() (Node, error) {
	p.advance() // consume [

	var elements []Node
	for p.current().Type != TokenRBracket {
		if len(elements) > 0 {
			if _, err := p.expect(TokenComma); err != nil {
				return nil, fmt.Errorf("expected ',' in list: %w", err)
			}
		}
		elem, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elements = append(elements, elem)
	}

	if _, err := p.expect(TokenRBracket); err != nil {
		return nil, fmt.Errorf("expected ']': %w", err)
	}

	return &List{Elements: elements}, nil
}

// parseMapLiteral parses { key: value, key: value, ... }. Keys must be
// identifiers or string literals.
func (p *Parser) parseMapLiteral() (Node, error) {
	p.advance() // consume {

	m := &Map{}
	for p.current().Type != TokenRBrace {
		if len(m.Keys) > 0 {
			if _, err := p.expect(TokenComma); err != nil {
				return nil, fmt.Errorf("expected ',' in map literal: %w", err)
			}
		}

		var key string
		switch p.current().Type {
		case TokenString:
			key = p.advance().StrVal
		case TokenIdent:
			key = p.advance().Value
		default:
			return nil, fmt.Errorf("map literal key must be a string or identifier at position %d", p.current().Pos)
		}
		if _, err := p.expect(TokenColon); err != nil {
			return nil, fmt.Errorf("expected ':' in map literal: %w", err)
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, key)
		m.Values = append(m.Values, value)
	}

	if _, err := p.expect(TokenRBrace); err != nil {
		return nil, fmt.Errorf("expected '}': %w", err)
	}

	return m, nil
}

// parseArgList parses (expr, expr, ...).
func (p *Parser) parseArgList() ([]Node, error) {
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, fmt.Errorf("expected '(': %w", err)
	}

	var args []Node
	for p.current().Type != TokenRParen {
		if len(args) > 0 {
			if _, err := p.expect(TokenComma); err != nil {
				return nil, fmt.Errorf("expected ',' in arguments: %w", err)
			}
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	if _, err := p.expect(TokenRParen); err != nil {
		return nil, fmt.Errorf("expected ')': %w", err)
	}

	return args, nil
}
