// Package lexer provides tokenization for type expressions in declaration files.
package lexer

// TokenType represents the type of a token.
type TokenType string

const (
	IDENTIFIER    TokenType = "IDENTIFIER"    // Names and indices (e.g., Module, ownedptr, 0)
	LPAREN        TokenType = "LPAREN"        // (
	RPAREN        TokenType = "RPAREN"        // )
	COMMA         TokenType = "COMMA"         // ,
	DOT           TokenType = "DOT"           // . (nested enum access)
	NAMESPACE_SEP TokenType = "NAMESPACE_SEP" // ::
	EOF           TokenType = "EOF"
)

// Token is a single lexical unit.
type Token struct {
	Type   TokenType `json:"type"`
	Value  string    `json:"value"`
	Column int       `json:"col"`
}

// String returns a readable form of the token for error messages.
func (t Token) String() string {
	if t.Type == EOF {
		return "end of input"
	}
	return string(t.Type) + " " + `"` + t.Value + `"`
}
