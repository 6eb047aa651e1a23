// Package parser converts type expression tokens into expression trees.
package parser

import (
	"fmt"
	"strings"

	"github.com/chazu/capsulegen/pkg/lexer"
)

// Expr is a parsed type expression.
type Expr interface {
	exprNode()
	String() string
}

// Name refers to a builtin, a class or an enum: Bool, llvm::Module,
// Linker.LinkerMode.
type Name struct {
	Path   []string // namespace-qualified parts
	Member string   // nested member after '.', empty when absent
}

func (Name) exprNode() {}

// Qualified returns the path joined with "::".
func (n Name) Qualified() string {
	return strings.Join(n.Path, "::")
}

// Simple reports whether the name is a single unqualified identifier.
func (n Name) Simple() bool {
	return len(n.Path) == 1 && n.Member == ""
}

func (n Name) String() string {
	if n.Member != "" {
		return n.Qualified() + "." + n.Member
	}
	return n.Qualified()
}

// Call applies a type constructor to arguments: ptr(Module),
// cast(str, ConstStdString).
type Call struct {
	Func string
	Args []Expr
}

func (Call) exprNode() {}

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Func + "(" + strings.Join(args, ", ") + ")"
}

// Parser parses a token stream into a single expression.
type Parser struct {
	tokens []lexer.Token
	pos    int
}

// New creates a parser over tokens. The stream must end with EOF.
func New(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse tokenizes and parses input.
func Parse(input string) (Expr, error) {
	tokens, err := lexer.New(input).Tokenize()
	if err != nil {
		return nil, fmt.Errorf("%q: %w", input, err)
	}
	expr, err := New(tokens).ParseExpr()
	if err != nil {
		return nil, fmt.Errorf("%q: %w", input, err)
	}
	return expr, nil
}

// ParseExpr parses one expression and requires the input to end after it.
func (p *Parser) ParseExpr() (Expr, error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.check(lexer.EOF) {
		return nil, p.errorf("unexpected %s after expression", p.current())
	}
	return expr, nil
}

func (p *Parser) parseExpr() (Expr, error) {
	first, err := p.expect(lexer.IDENTIFIER)
	if err != nil {
		return nil, err
	}

	if p.match(lexer.LPAREN) {
		call := Call{Func: first.Value}
		if p.match(lexer.RPAREN) {
			return call, nil
		}
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.match(lexer.COMMA) {
				continue
			}
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return nil, err
			}
			return call, nil
		}
	}

	name := Name{Path: []string{first.Value}}
	for p.match(lexer.NAMESPACE_SEP) {
		part, err := p.expect(lexer.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		name.Path = append(name.Path, part.Value)
	}
	if p.match(lexer.DOT) {
		member, err := p.expect(lexer.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		name.Member = member.Value
	}
	return name, nil
}

// Helper methods

func (p *Parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) check(typ lexer.TokenType) bool {
	return p.current().Type == typ
}

func (p *Parser) match(typ lexer.TokenType) bool {
	if p.check(typ) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) expect(typ lexer.TokenType) (lexer.Token, error) {
	tok := p.current()
	if tok.Type != typ {
		return tok, p.errorf("expected %s, got %s", typ, tok)
	}
	p.pos++
	return tok, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return fmt.Errorf("column %d: %s", p.current().Column, fmt.Sprintf(format, args...))
}
