package brutaltpl

import (
	"strings"
)

// ----------------------------- Parser ---------------------------------------

// parser turns the flat token stream of a template into a node tree. Block
// nesting is tracked by recursion.
type parser struct {
	src  string
	toks []Token
	pos  int
}

func parseTemplate(src, left, right string) (node, error) {
	toks, err := tokenizeTemplate(src, left, right)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	nodes, stop, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if stop.Kind != TokenEOF {
		return nil, p.errorf(stop, "unexpected %s outside of a block", stop.Ctrl)
	}
	return sequence(nodes), nil
}

func (p *parser) errorf(t Token, format string, args ...any) error {
	return syntaxErr(ErrUnexpectedToken, p.src, t.Pos, format, args...)
}

// parseBody collects nodes until the end of input or a token that continues
// or closes an enclosing block. That token is consumed and returned.
func (p *parser) parseBody() ([]node, Token, error) {
	nodes := make([]node, 0, 8)
	for {
		t := p.toks[p.pos]
		if t.Kind == TokenEOF {
			return nodes, t, nil
		}
		p.pos++
		if t.Kind == TokenText {
			nodes = append(nodes, textNode{text: t.Value})
			continue
		}
		var (
			n   node
			err error
		)
		switch t.Ctrl {
		case CtrlExpr:
			n = exprNode{src: t.Value}
		case CtrlIf:
			n, err = p.parseIf(t)
		case CtrlFor:
			n, err = p.parseFor(t)
		case CtrlEach:
			n, err = p.parseEach(t)
		default:
			return nodes, t, nil
		}
		if err != nil {
			return nil, t, err
		}
		nodes = append(nodes, n)
	}
}

// parseIf parses the rest of an #if (or #elseif) block. Each #elseif becomes
// a nested ifNode in the else branch; all of them share one /if.
func (p *parser) parseIf(open Token) (node, error) {
	if open.Value == "" {
		return nil, p.errorf(open, "%s without a condition", open.Ctrl)
	}
	body, stop, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	n := ifNode{cond: open.Value, then: sequence(body)}

	switch {
	case stop.Kind == TokenEOF:
		return nil, p.errorf(open, "unterminated %s, missing /if", open.Ctrl)
	case stop.Ctrl == CtrlEndIf:
		return n, nil
	case stop.Ctrl == CtrlElseIf:
		if n.els, err = p.parseIf(stop); err != nil {
			return nil, err
		}
		return n, nil
	case stop.Ctrl == CtrlElse:
		if stop.Value != "" {
			return nil, p.errorf(stop, "unexpected %q after #else", stop.Value)
		}
		body, end, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		if end.Kind == TokenEOF {
			return nil, p.errorf(open, "unterminated %s, missing /if", open.Ctrl)
		}
		if end.Ctrl != CtrlEndIf {
			return nil, p.errorf(end, "unexpected %s, expected /if", end.Ctrl)
		}
		n.els = sequence(body)
		return n, nil
	}
	return nil, p.errorf(stop, "unexpected %s inside #if", stop.Ctrl)
}

func (p *parser) parseFor(open Token) (node, error) {
	name, iter, ok := splitLoopHeader(open.Value)
	if !ok || !isBindableName(name) {
		return nil, syntaxErr(ErrInvalidForSyntax, p.src, open.Pos,
			"expected {{#for name in iterable}}, found %q", open.Value)
	}
	body, err := p.parseLoopBody(open, CtrlEndFor)
	if err != nil {
		return nil, err
	}
	return forNode{name: name, iter: iter, body: body}, nil
}

func (p *parser) parseEach(open Token) (node, error) {
	names, iter, ok := splitLoopHeader(open.Value)
	value, key, hasKey := strings.Cut(names, ",")
	value, key = fastTrim(value), fastTrim(key)
	if !hasKey {
		key = "index"
	}
	if !ok || !isBindableName(value) || !isBindableName(key) {
		return nil, syntaxErr(ErrInvalidEachSyntax, p.src, open.Pos,
			"expected {{#each value[, key] in iterable}}, found %q", open.Value)
	}
	body, err := p.parseLoopBody(open, CtrlEndEach)
	if err != nil {
		return nil, err
	}
	return eachNode{value: value, key: key, iter: iter, body: body}, nil
}

func (p *parser) parseLoopBody(open Token, closer Control) (node, error) {
	body, stop, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if stop.Kind == TokenEOF {
		return nil, p.errorf(open, "unterminated %s, missing %s", open.Ctrl, closer)
	}
	if stop.Ctrl != closer {
		return nil, p.errorf(stop, "unexpected %s, expected %s", stop.Ctrl, closer)
	}
	return sequence(body), nil
}

// splitLoopHeader splits "names in iterable" at the first standalone "in".
func splitLoopHeader(s string) (names, iter string, ok bool) {
	for i := 1; i+2 < len(s); i++ {
		if s[i] == 'i' && s[i+1] == 'n' && isSpace(s[i-1]) && isSpace(s[i+2]) {
			names, iter = fastTrim(s[:i]), fastTrim(s[i+2:])
			return names, iter, names != "" && iter != ""
		}
	}
	return "", "", false
}

func isBindableName(s string) bool {
	switch s {
	case "true", "false", "null", "undefined", "in":
		return false
	}
	return isIdentifier(s)
}
