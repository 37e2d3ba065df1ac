package brutaltpl

import (
	"errors"
	"testing"
)

func kindsAndValues(toks []Token) ([]TokenKind, []string) {
	kinds := make([]TokenKind, len(toks))
	values := make([]string, len(toks))
	for i, t := range toks {
		kinds[i] = t.Kind
		values[i] = t.Value
	}
	return kinds, values
}

func TestTokenizeExpression(t *testing.T) {
	tests := []struct {
		in     string
		kinds  []TokenKind
		values []string
	}{
		{
			in:     `a.b + 12.5 >= 'x\'y'`,
			kinds:  []TokenKind{TokenIdent, TokenOperator, TokenIdent, TokenOperator, TokenNumber, TokenOperator, TokenString, TokenEOF},
			values: []string{"a", ".", "b", "+", "12.5", ">=", "x'y", ""},
		},
		{
			in:     `1.foo`,
			kinds:  []TokenKind{TokenNumber, TokenOperator, TokenIdent, TokenEOF},
			values: []string{"1", ".", "foo", ""},
		},
		{
			in:     `1. + 2.5.x`,
			kinds:  []TokenKind{TokenNumber, TokenOperator, TokenNumber, TokenOperator, TokenIdent, TokenEOF},
			values: []string{"1.", "+", "2.5", ".", "x", ""},
		},
		{
			in:     `1..x`,
			kinds:  []TokenKind{TokenNumber, TokenOperator, TokenOperator, TokenIdent, TokenEOF},
			values: []string{"1", ".", ".", "x", ""},
		},
		{
			in:     `a===b!==c!d`,
			kinds:  []TokenKind{TokenIdent, TokenOperator, TokenIdent, TokenOperator, TokenIdent, TokenOperator, TokenIdent, TokenEOF},
			values: []string{"a", "===", "b", "!==", "c", "!", "d", ""},
		},
		{
			in:     `x||y|z`,
			kinds:  []TokenKind{TokenIdent, TokenOperator, TokenIdent, TokenOperator, TokenIdent, TokenEOF},
			values: []string{"x", "||", "y", "|", "z", ""},
		},
		{
			in:     `true false null undefined $x _y1`,
			kinds:  []TokenKind{TokenKeyword, TokenKeyword, TokenKeyword, TokenKeyword, TokenIdent, TokenIdent, TokenEOF},
			values: []string{"true", "false", "null", "undefined", "$x", "_y1", ""},
		},
		{
			in:     `"a\nb"`,
			kinds:  []TokenKind{TokenString, TokenEOF},
			values: []string{"a\nb", ""},
		},
		{
			in:     ``,
			kinds:  []TokenKind{TokenEOF},
			values: []string{""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			toks, err := TokenizeExpression(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			kinds, values := kindsAndValues(toks)
			if len(kinds) != len(tt.kinds) {
				t.Fatalf("expected %d tokens, got %d: %v", len(tt.kinds), len(kinds), toks)
			}
			for i := range kinds {
				if kinds[i] != tt.kinds[i] || values[i] != tt.values[i] {
					t.Errorf("token %d: expected %s %q, got %s %q", i, tt.kinds[i], tt.values[i], kinds[i], values[i])
				}
			}
		})
	}
}

func TestTokenizeExpressionErrors(t *testing.T) {
	tests := []struct {
		in   string
		kind error
		pos  int
	}{
		{`"abc`, ErrUnterminatedString, 0},
		{`a + 'b`, ErrUnterminatedString, 4},
		{`a # b`, ErrUnexpectedCharacter, 2},
		{`a & b`, ErrUnexpectedCharacter, 2},
		{`a = b`, ErrUnexpectedCharacter, 2},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := TokenizeExpression(tt.in)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SyntaxError, got %T", err)
			}
			if se.Pos != tt.pos {
				t.Errorf("expected position %d, got %d", tt.pos, se.Pos)
			}
		})
	}
}

func TestTokenizeTemplate(t *testing.T) {
	toks, err := TokenizeTemplate("Hi {{ name }}!{{#if a > b}}x{{#elseif c}}y{{#else}}z{{/if}}{{#iffy}}")
	if err != nil {
		t.Fatal(err)
	}
	want := []Token{
		{Kind: TokenText, Value: "Hi "},
		{Kind: TokenControl, Ctrl: CtrlExpr, Value: "name"},
		{Kind: TokenText, Value: "!"},
		{Kind: TokenControl, Ctrl: CtrlIf, Value: "a > b"},
		{Kind: TokenText, Value: "x"},
		{Kind: TokenControl, Ctrl: CtrlElseIf, Value: "c"},
		{Kind: TokenText, Value: "y"},
		{Kind: TokenControl, Ctrl: CtrlElse, Value: ""},
		{Kind: TokenText, Value: "z"},
		{Kind: TokenControl, Ctrl: CtrlEndIf, Value: ""},
		{Kind: TokenControl, Ctrl: CtrlExpr, Value: "#iffy"},
		{Kind: TokenEOF},
	}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(toks), toks)
	}
	for i, w := range want {
		g := toks[i]
		if g.Kind != w.Kind || g.Ctrl != w.Ctrl || g.Value != w.Value {
			t.Errorf("token %d: expected %s, got %s", i, w, g)
		}
	}
}

func TestTokenizeTemplateLoops(t *testing.T) {
	toks, err := TokenizeTemplate("{{#for x in xs}}{{/for}}{{#each v, k in m}}{{/each}}")
	if err != nil {
		t.Fatal(err)
	}
	ctrls := []Control{CtrlFor, CtrlEndFor, CtrlEach, CtrlEndEach}
	for i, c := range ctrls {
		if toks[i].Ctrl != c {
			t.Errorf("token %d: expected %s, got %s", i, c, toks[i].Ctrl)
		}
	}
	if toks[2].Value != "v, k in m" {
		t.Errorf("expected each header %q, got %q", "v, k in m", toks[2].Value)
	}
}

func TestTokenizeTemplateQuotedDelimiter(t *testing.T) {
	toks, err := TokenizeTemplate(`a{{ "}}" + '{{' }}b`)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 4 {
		t.Fatalf("expected 4 tokens, got %v", toks)
	}
	if toks[1].Value != `"}}" + '{{'` {
		t.Errorf("unexpected tag value %q", toks[1].Value)
	}
	if toks[2].Value != "b" {
		t.Errorf("unexpected trailing text %q", toks[2].Value)
	}
}

func TestTokenizeTemplateUnclosedTag(t *testing.T) {
	_, err := TokenizeTemplate("hello {{ name")
	if !errors.Is(err, ErrUnexpectedToken) {
		t.Fatalf("expected ErrUnexpectedToken, got %v", err)
	}
	var se *SyntaxError
	if errors.As(err, &se) && se.Pos != 6 {
		t.Errorf("expected position 6, got %d", se.Pos)
	}

	_, err = TokenizeTemplate(`{{ "abc }}`)
	if !errors.Is(err, ErrUnterminatedString) {
		t.Fatalf("expected ErrUnterminatedString, got %v", err)
	}
}

func TestTokenizeTemplateCustomDelims(t *testing.T) {
	toks, err := tokenizeTemplate("<% a %>{{ b }}", "<%", "%>")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Ctrl != CtrlExpr || toks[0].Value != "a" {
		t.Errorf("unexpected first token %s", toks[0])
	}
	if toks[1].Kind != TokenText || toks[1].Value != "{{ b }}" {
		t.Errorf("unexpected second token %s", toks[1])
	}
}
