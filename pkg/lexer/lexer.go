// Package lexer provides tokenization for type expressions in declaration files.
//
// A type expression names the type of an argument or return value:
//
//	Bool
//	ownedptr(Module)
//	const(ref(llvm::Module))
//	cast(str, ConstStdString)
//	Linker.LinkerMode
//
// Hook conditions reuse the same tokens, e.g. isinstance(0, Module).
package lexer

import "fmt"

// Lexer tokenizes a single type expression.
type Lexer struct {
	input  string // The expression being tokenized
	pos    int    // Current position in input
	tokens []Token
}

// New creates a new Lexer for the given input.
func New(input string) *Lexer {
	return &Lexer{
		input:  input,
		tokens: make([]Token, 0),
	}
}

// Tokenize processes the entire input and returns all tokens, terminated by
// an EOF token.
func (l *Lexer) Tokenize() ([]Token, error) {
	for !l.isAtEnd() {
		if err := l.scanToken(); err != nil {
			return nil, err
		}
	}
	l.tokens = append(l.tokens, Token{Type: EOF, Column: l.pos})
	return l.tokens, nil
}

func (l *Lexer) scanToken() error {
	start := l.pos
	ch := l.advance()

	switch {
	case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		return nil
	case ch == '(':
		l.addToken(LPAREN, "(", start)
	case ch == ')':
		l.addToken(RPAREN, ")", start)
	case ch == ',':
		l.addToken(COMMA, ",", start)
	case ch == '.':
		l.addToken(DOT, ".", start)
	case ch == ':':
		if l.peek() != ':' {
			return fmt.Errorf("unexpected ':' at column %d, expected '::'", start)
		}
		l.advance()
		l.addToken(NAMESPACE_SEP, "::", start)
	case isIdentChar(ch):
		for !l.isAtEnd() && isIdentChar(l.peek()) {
			l.advance()
		}
		l.addToken(IDENTIFIER, l.input[start:l.pos], start)
	default:
		return fmt.Errorf("unexpected character %q at column %d", ch, start)
	}
	return nil
}

func (l *Lexer) addToken(typ TokenType, value string, col int) {
	l.tokens = append(l.tokens, Token{Type: typ, Value: value, Column: col})
}

// Helper methods

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) advance() byte {
	ch := l.input[l.pos]
	l.pos++
	return ch
}

func isIdentChar(ch byte) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}
