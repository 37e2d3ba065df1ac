package brutaltpl

import "strconv"

// ----------------------------- Expression parser ----------------------------

// exprParser is a recursive-descent parser over a token slice that ends with
// TokenEOF. A fresh value is used for every parse.
type exprParser struct {
	src  string
	toks []Token
	pos  int
}

// ParseExpression parses a complete expression. Filter pipes are not part of
// the expression grammar; see parsePipeline.
func ParseExpression(src string) (Expr, error) {
	toks, err := TokenizeExpression(src)
	if err != nil {
		return nil, err
	}
	return parseTokens(src, toks)
}

func parseTokens(src string, toks []Token) (Expr, error) {
	p := &exprParser{src: src, toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Kind != TokenEOF {
		return nil, p.unexpected(t, "end of expression")
	}
	return e, nil
}

func (p *exprParser) peek() Token { return p.toks[p.pos] }

func (p *exprParser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != TokenEOF {
		p.pos++
	}
	return t
}

func (p *exprParser) accept(op string) bool {
	if p.peek().isOp(op) {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) expect(op string) error {
	if t := p.peek(); !t.isOp(op) {
		return p.unexpected(t, strconv.Quote(op))
	}
	p.pos++
	return nil
}

func (p *exprParser) unexpected(t Token, want string) error {
	return syntaxErr(ErrUnexpectedToken, p.src, t.Pos, "expected %s, found %s", want, t)
}

func (p *exprParser) parseExpr() (Expr, error) { return p.parseConditional() }

func (p *exprParser) parseConditional() (Expr, error) {
	test, err := p.parseOr()
	if err != nil || !p.accept("?") {
		return test, err
	}
	cons, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	alt, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Conditional{Test: test, Consequent: cons, Alternate: alt}, nil
}

// binary parses one left-associative precedence level.
func (p *exprParser) binary(ops []string, operand func() (Expr, error)) (Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.Kind != TokenOperator || !containsOp(ops, t.Value) {
			return left, nil
		}
		p.pos++
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.Value, Left: left, Right: right}
	}
}

func containsOp(ops []string, op string) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

var (
	orOps             = []string{"||"}
	andOps            = []string{"&&"}
	equalityOps       = []string{"==", "!=", "===", "!=="}
	relationalOps     = []string{"<", ">", "<=", ">="}
	additiveOps       = []string{"+", "-"}
	multiplicativeOps = []string{"*", "/", "%"}
)

func (p *exprParser) parseOr() (Expr, error) { return p.binary(orOps, p.parseAnd) }

func (p *exprParser) parseAnd() (Expr, error) { return p.binary(andOps, p.parseEquality) }

func (p *exprParser) parseEquality() (Expr, error) {
	return p.binary(equalityOps, p.parseRelational)
}

func (p *exprParser) parseRelational() (Expr, error) {
	return p.binary(relationalOps, p.parseAdditive)
}

func (p *exprParser) parseAdditive() (Expr, error) {
	return p.binary(additiveOps, p.parseMultiplicative)
}

func (p *exprParser) parseMultiplicative() (Expr, error) {
	return p.binary(multiplicativeOps, p.parseUnary)
}

func (p *exprParser) parseUnary() (Expr, error) {
	if t := p.peek(); t.isOp("!") || t.isOp("-") {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: t.Value, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *exprParser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("."):
			t := p.next()
			if t.Kind != TokenIdent && t.Kind != TokenKeyword {
				return nil, p.unexpected(t, "property name")
			}
			e = &Member{Object: e, Property: &Literal{Value: t.Value}}
		case p.accept("["):
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			e = &Member{Object: e, Property: key, Computed: true}
		case p.accept("("):
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			e = &Call{Callee: e, Args: args}
		default:
			return e, nil
		}
	}
}

// parseArgs parses a comma separated list after an opening parenthesis,
// consuming the closing one.
func (p *exprParser) parseArgs() ([]Expr, error) {
	var args []Expr
	if p.accept(")") {
		return args, nil
	}
	for {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.accept(")") {
			return args, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *exprParser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.Kind {
	case TokenNumber:
		f, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return nil, syntaxErr(ErrUnexpectedToken, p.src, t.Pos, "bad number %q", t.Value)
		}
		return &Literal{Value: f}, nil
	case TokenString:
		return &Literal{Value: t.Value}, nil
	case TokenKeyword:
		return &Literal{Value: keywordValue(t.Value)}, nil
	case TokenIdent:
		return &Identifier{Name: t.Value}, nil
	case TokenOperator:
		if t.Value == "(" {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, p.unexpected(t, "expression")
}

func keywordValue(word string) any {
	switch word {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	return Undefined
}

// ----------------------------- Filter pipelines -----------------------------

// pipeline is an expression followed by zero or more filter stages.
type pipeline struct {
	src     string
	base    Expr
	filters []filterCall
}

type filterCall struct {
	name string
	args []Expr
}

// parsePipeline tokenizes src once and splits it at "|" tokens that are not
// nested inside parentheses or brackets. String literals are single tokens and
// "||" is its own operator, so neither can be mistaken for a separator.
func parsePipeline(src string) (*pipeline, error) {
	toks, err := TokenizeExpression(src)
	if err != nil {
		return nil, err
	}
	stages := splitStages(toks)
	base, err := parseTokens(src, stages[0])
	if err != nil {
		return nil, err
	}
	pl := &pipeline{src: src, base: base}
	for _, st := range stages[1:] {
		fc, err := parseFilterStage(src, st)
		if err != nil {
			return nil, err
		}
		pl.filters = append(pl.filters, fc)
	}
	return pl, nil
}

func splitStages(toks []Token) [][]Token {
	var stages [][]Token
	depth, start := 0, 0
	for i, t := range toks {
		if t.Kind != TokenOperator {
			continue
		}
		switch t.Value {
		case "(", "[":
			depth++
		case ")", "]":
			if depth > 0 {
				depth--
			}
		case "|":
			if depth == 0 {
				stage := append(toks[start:i:i], Token{Kind: TokenEOF, Pos: t.Pos})
				stages = append(stages, stage)
				start = i + 1
			}
		}
	}
	return append(stages, toks[start:])
}

func parseFilterStage(src string, toks []Token) (filterCall, error) {
	p := &exprParser{src: src, toks: toks}
	t := p.next()
	if t.Kind != TokenIdent {
		return filterCall{}, p.unexpected(t, "filter name")
	}
	fc := filterCall{name: t.Value}
	if p.accept("(") {
		args, err := p.parseArgs()
		if err != nil {
			return filterCall{}, err
		}
		fc.args = args
	}
	if t := p.peek(); t.Kind != TokenEOF {
		return filterCall{}, p.unexpected(t, "\"|\" or end of expression")
	}
	return fc, nil
}
