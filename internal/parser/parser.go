// Package parser implements the recursive-descent, precedence-climbing
// parser for the arithmetic grammar of spec §4.4, grounded on
// internal/parser/parser.go's match/check/consume/advance combinator
// style (teacher), generalized from a general-purpose-language parser
// down to the one arithmetic grammar this engine needs.
package parser

import (
	"strconv"

	"iarray/internal/exprtree"
	"iarray/internal/ierrors"
	"iarray/internal/lexer"
)

type Parser struct {
	source string
	tokens []lexer.Token
	current int
}

// New tokenizes source and returns a Parser ready to parse it.
func New(source string) (*Parser, error) {
	toks, err := lexer.NewScanner(source).ScanTokens()
	if err != nil {
		offset := 1
		if le, ok := err.(*lexer.LexError); ok {
			offset = le.Offset
		}
		return nil, ierrors.NewParseError(offset, source, "%v", err)
	}
	return &Parser{source: source, tokens: toks}, nil
}

// Parse parses a single top-level expression (list's one-element case,
// the form every evaluator entry point actually consumes).
func (p *Parser) Parse() (exprtree.Expr, error) {
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !p.isAtEnd() {
		return nil, p.errorfAt(p.peek(), "unexpected trailing input %q", p.peek().Lexeme)
	}
	return e, nil
}

// ParseList parses the top-level `list` production: expr ("," expr)*.
func (p *Parser) ParseList() ([]exprtree.Expr, error) {
	var exprs []exprtree.Expr
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	exprs = append(exprs, e)
	for p.match(lexer.TokenComma) {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	if !p.isAtEnd() {
		return nil, p.errorfAt(p.peek(), "unexpected trailing input %q", p.peek().Lexeme)
	}
	return exprs, nil
}

// expr = term ( ("+"|"-") term )*
func (p *Parser) expr() (exprtree.Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) {
		op := p.advance()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		kind := exprtree.KindAdd
		if op.Type == lexer.TokenMinus {
			kind = exprtree.KindSub
		}
		left = exprtree.NewFunc(kind, left, right)
	}
	return left, nil
}

// term = factor ( ("*"|"/"|"%") factor )*
func (p *Parser) term() (exprtree.Expr, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenStar) || p.check(lexer.TokenSlash) || p.check(lexer.TokenPercent) {
		op := p.advance()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		var kind exprtree.Kind
		switch op.Type {
		case lexer.TokenStar:
			kind = exprtree.KindMul
		case lexer.TokenSlash:
			kind = exprtree.KindDiv
		default:
			kind = exprtree.KindMod
		}
		left = exprtree.NewFunc(kind, left, right)
	}
	return left, nil
}

// factor = power ( "^" power )*, left-associative per spec §4.4.
func (p *Parser) factor() (exprtree.Expr, error) {
	left, err := p.power()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenCaret) {
		p.advance()
		right, err := p.power()
		if err != nil {
			return nil, err
		}
		left = exprtree.NewFunc(exprtree.KindPow, left, right)
	}
	return left, nil
}

// power = ("+"|"-")* base
func (p *Parser) power() (exprtree.Expr, error) {
	if p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) {
		op := p.advance()
		operand, err := p.power()
		if err != nil {
			return nil, err
		}
		if op.Type == lexer.TokenMinus {
			return exprtree.NewFunc(exprtree.KindNeg, operand), nil
		}
		return exprtree.NewFunc(exprtree.KindPos, operand), nil
	}
	return p.base()
}

// startsPower reports whether the current token can open a `power`
// production when used as a no-paren call's sole argument. Leading "+"/
// "-" are deliberately excluded here even though power's own grammar
// allows them: including them makes `f x - y` ambiguous between
// `f(x) - y` and `f(x - (-y))`. Callers needing a signed no-paren
// argument must parenthesize it (`f(-x)`) — see DESIGN.md.
func (p *Parser) startsPower() bool {
	switch p.peek().Type {
	case lexer.TokenNumber, lexer.TokenIdent, lexer.TokenLParen:
		return true
	default:
		return false
	}
}

// base = NUMBER | IDENT | IDENT "(" ")" | IDENT power
//      | IDENT "(" expr ("," expr){0,6} ")" | "(" list ")"
func (p *Parser) base() (exprtree.Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenNumber:
		p.advance()
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, p.errorfAt(tok, "invalid number %q", tok.Lexeme)
		}
		return &exprtree.Const{Value: v}, nil

	case lexer.TokenIdent:
		p.advance()
		name := tok.Lexeme
		if p.match(lexer.TokenLParen) {
			return p.finishParenCall(name, tok.Start)
		}
		if p.startsPower() {
			operand, err := p.power()
			if err != nil {
				return nil, err
			}
			return &exprtree.Ident{Name: name, Args: []exprtree.Expr{operand}, Offset: tok.Start}, nil
		}
		return &exprtree.Ident{Name: name, Offset: tok.Start}, nil

	case lexer.TokenLParen:
		p.advance()
		exprs, err := p.parenList()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRParen, "expected ')'"); err != nil {
			return nil, err
		}
		if len(exprs) != 1 {
			return nil, p.errorfAt(tok, "a parenthesized group must contain exactly one expression")
		}
		return exprs[0], nil

	default:
		return nil, p.errorfAt(tok, "unexpected token %q", tok.Lexeme)
	}
}

// finishParenCall parses the ")"-terminated tail of "IDENT (" — either
// the empty 0-arity form or a 1..7-arity comma list.
func (p *Parser) finishParenCall(name string, offset int) (exprtree.Expr, error) {
	if p.match(lexer.TokenRParen) {
		return &exprtree.Ident{Name: name, Args: []exprtree.Expr{}, ExplicitCall: true, Offset: offset}, nil
	}
	var args []exprtree.Expr
	first, err := p.expr()
	if err != nil {
		return nil, err
	}
	args = append(args, first)
	for p.match(lexer.TokenComma) {
		if len(args) >= exprtree.MaxArity {
			return nil, p.errorfAt(p.peek(), "too many arguments to %q (max %d)", name, exprtree.MaxArity)
		}
		a, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	if _, err := p.consume(lexer.TokenRParen, "expected ')' after arguments"); err != nil {
		return nil, err
	}
	return &exprtree.Ident{Name: name, Args: args, Offset: offset}, nil
}

func (p *Parser) parenList() ([]exprtree.Expr, error) {
	var exprs []exprtree.Expr
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	exprs = append(exprs, e)
	for p.match(lexer.TokenComma) {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) (lexer.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return lexer.Token{}, p.errorfAt(p.peek(), "%s (got %q)", msg, p.peek().Lexeme)
}

func (p *Parser) check(t lexer.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.tokens[p.current-1]
}

func (p *Parser) peek() lexer.Token { return p.tokens[p.current] }

func (p *Parser) isAtEnd() bool { return p.peek().Type == lexer.TokenEOF }

func (p *Parser) errorfAt(tok lexer.Token, format string, args ...interface{}) error {
	return ierrors.NewParseError(tok.Start, p.source, format, args...)
}
