package brutaltpl

import "fmt"

// ----------------------------- Tokens ---------------------------------------

// TokenKind is the lexical class of a Token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenText
	TokenNumber
	TokenString
	TokenIdent
	TokenKeyword // true, false, null, undefined
	TokenOperator
	TokenControl
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenText:
		return "Text"
	case TokenNumber:
		return "Number"
	case TokenString:
		return "String"
	case TokenIdent:
		return "Identifier"
	case TokenKeyword:
		return "Keyword"
	case TokenOperator:
		return "Operator"
	case TokenControl:
		return "Control"
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Control identifies the marker found right after an opening delimiter.
type Control int

const (
	CtrlNone Control = iota
	CtrlExpr         // bare {{ expression }}
	CtrlIf
	CtrlElseIf
	CtrlElse
	CtrlEndIf
	CtrlFor
	CtrlEndFor
	CtrlEach
	CtrlEndEach
)

var controlMarkers = []struct {
	marker string
	ctrl   Control
}{
	// #elseif must be tried before #else
	{"#elseif", CtrlElseIf},
	{"#else", CtrlElse},
	{"#if", CtrlIf},
	{"/if", CtrlEndIf},
	{"#for", CtrlFor},
	{"/for", CtrlEndFor},
	{"#each", CtrlEach},
	{"/each", CtrlEndEach},
}

func (c Control) String() string {
	if c == CtrlExpr {
		return "expr"
	}
	for _, m := range controlMarkers {
		if m.ctrl == c {
			return m.marker
		}
	}
	return "none"
}

// Token is a single lexical unit. Value holds the source text: for strings it is
// the unescaped content, for control tokens it is the trimmed text following the
// marker, for operators the operator itself.
type Token struct {
	Kind  TokenKind
	Value string
	Ctrl  Control
	Pos   int
}

func (t Token) String() string {
	switch t.Kind {
	case TokenEOF:
		return "end of input"
	case TokenControl:
		return fmt.Sprintf("%s %q", t.Ctrl, t.Value)
	case TokenString:
		return fmt.Sprintf("%q", t.Value)
	}
	return t.Value
}

func (t Token) isOp(op string) bool {
	return t.Kind == TokenOperator && t.Value == op
}
