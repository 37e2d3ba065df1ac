package brutaltpl

import "strings"

// ----------------------------- Tokenizer ------------------------------------

const (
	defaultLeftDelim  = "{{"
	defaultRightDelim = "}}"
)

var (
	threeCharOps = []string{"===", "!=="}
	twoCharOps   = []string{"==", "!=", "<=", ">=", "&&", "||"}
	oneCharOps   = ".()[],+-*/%<>!?:|"
)

// lexer scans a single expression. It is built per call and discarded.
type lexer struct {
	src  string
	pos  int
	toks []Token
}

// TokenizeExpression splits an expression into tokens. The returned slice always
// ends with a TokenEOF token.
func TokenizeExpression(input string) ([]Token, error) {
	lx := &lexer{src: input, toks: make([]Token, 0, len(input)/3+2)}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.toks, nil
}

func (lx *lexer) emit(kind TokenKind, value string, pos int) {
	lx.toks = append(lx.toks, Token{Kind: kind, Value: value, Pos: pos})
}

func (lx *lexer) run() error {
	src := lx.src
	for lx.pos < len(src) {
		c := src[lx.pos]
		switch {
		case isSpace(c):
			lx.pos++
		case isDigit(c):
			lx.number()
		case c == '"' || c == '\'':
			if err := lx.str(); err != nil {
				return err
			}
		case isIdentStart(c):
			lx.ident()
		default:
			if !lx.operator() {
				return syntaxErr(ErrUnexpectedCharacter, src, lx.pos, "%q", c)
			}
		}
	}
	lx.emit(TokenEOF, "", len(src))
	return nil
}

func (lx *lexer) number() {
	start := lx.pos
	seenDot := false
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if isDigit(c) {
			lx.pos++
			continue
		}
		// a dot followed by a name or another dot is member access, as in 1.foo
		if c == '.' && !seenDot {
			if lx.pos+1 < len(lx.src) {
				if next := lx.src[lx.pos+1]; next == '.' || isIdentStart(next) {
					break
				}
			}
			seenDot = true
			lx.pos++
			continue
		}
		break
	}
	lx.emit(TokenNumber, lx.src[start:lx.pos], start)
}

func (lx *lexer) str() error {
	start := lx.pos
	quote := lx.src[lx.pos]
	lx.pos++
	var sb strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\\' && lx.pos+1 < len(lx.src):
			sb.WriteByte(unescapeByte(lx.src[lx.pos+1]))
			lx.pos += 2
		case c == quote:
			lx.pos++
			lx.emit(TokenString, sb.String(), start)
			return nil
		default:
			sb.WriteByte(c)
			lx.pos++
		}
	}
	return syntaxErr(ErrUnterminatedString, lx.src, start, "missing closing %c", quote)
}

func unescapeByte(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	}
	return c
}

func (lx *lexer) ident() {
	start := lx.pos
	for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
		lx.pos++
	}
	word := lx.src[start:lx.pos]
	switch word {
	case "true", "false", "null", "undefined":
		lx.emit(TokenKeyword, word, start)
	default:
		lx.emit(TokenIdent, word, start)
	}
}

func (lx *lexer) operator() bool {
	rest := lx.src[lx.pos:]
	for _, group := range [][]string{threeCharOps, twoCharOps} {
		for _, op := range group {
			if strings.HasPrefix(rest, op) {
				lx.emit(TokenOperator, op, lx.pos)
				lx.pos += len(op)
				return true
			}
		}
	}
	if strings.IndexByte(oneCharOps, rest[0]) >= 0 {
		lx.emit(TokenOperator, rest[:1], lx.pos)
		lx.pos++
		return true
	}
	return false
}

// TokenizeTemplate splits a template body into Text and Control tokens using
// the default {{ }} delimiters.
func TokenizeTemplate(input string) ([]Token, error) {
	return tokenizeTemplate(input, defaultLeftDelim, defaultRightDelim)
}

func tokenizeTemplate(src, left, right string) ([]Token, error) {
	toks := make([]Token, 0, 16)
	i := 0
	for i < len(src) {
		start := strings.Index(src[i:], left)
		if start == -1 {
			toks = append(toks, Token{Kind: TokenText, Value: src[i:], Pos: i})
			break
		}
		if start > 0 {
			toks = append(toks, Token{Kind: TokenText, Value: src[i : i+start], Pos: i})
		}
		open := i + start
		body := open + len(left)
		end, err := findClose(src, open, body, right)
		if err != nil {
			return nil, err
		}
		toks = append(toks, controlToken(fastTrim(src[body:end]), open))
		i = end + len(right)
	}
	toks = append(toks, Token{Kind: TokenEOF, Pos: len(src)})
	return toks, nil
}

// findClose returns the index of the closing delimiter, skipping over quoted
// strings so a delimiter inside a literal does not end the tag.
func findClose(src string, open, from int, right string) (int, error) {
	for j := from; j < len(src); j++ {
		c := src[j]
		if c == '"' || c == '\'' {
			k := j + 1
			for k < len(src) && src[k] != c {
				if src[k] == '\\' {
					k++
				}
				k++
			}
			if k >= len(src) {
				return 0, syntaxErr(ErrUnterminatedString, src, j, "missing closing %c", c)
			}
			j = k
			continue
		}
		if strings.HasPrefix(src[j:], right) {
			return j, nil
		}
	}
	return 0, syntaxErr(ErrUnexpectedToken, src, open, "unclosed tag, missing %q", right)
}

func controlToken(tag string, pos int) Token {
	for _, m := range controlMarkers {
		if !strings.HasPrefix(tag, m.marker) {
			continue
		}
		rest := tag[len(m.marker):]
		if rest != "" && isIdentPart(rest[0]) {
			continue
		}
		return Token{Kind: TokenControl, Ctrl: m.ctrl, Value: fastTrim(rest), Pos: pos}
	}
	return Token{Kind: TokenControl, Ctrl: CtrlExpr, Value: tag, Pos: pos}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}
