package brutaltpl

import (
	"io"
)

// ----------------------------- AST & runtime --------------------------------

// node is a parsed template element. The set is closed: textNode, exprNode,
// ifNode, forNode, eachNode and seqNode.
type node interface {
	render(*renderCtx, io.Writer) error
}

// renderCtx is the per-call state of a render. It comes from renderCtxPool
// and is never shared between goroutines.
type renderCtx struct {
	eval   *Evaluator
	frames *frameStack
	escape bool
}

func (ctx *renderCtx) reset(t *Template, data any) {
	ctx.eval = t.eval
	ctx.escape = t.escape
	ctx.frames.reset(data)
}

// release drops references to the template and the data so pooled contexts
// do not keep them alive.
func (ctx *renderCtx) release() {
	ctx.eval = nil
	ctx.frames.reset(nil)
}

func (ctx *renderCtx) evaluate(src string) (any, error) {
	return ctx.eval.Eval(src, ctx.frames.top())
}

type textNode struct{ text string }

func (n textNode) render(_ *renderCtx, w io.Writer) error {
	_, err := io.WriteString(w, n.text)
	return err
}

// exprNode holds the raw text of a {{ expression }}; it is parsed on first
// evaluation.
type exprNode struct{ src string }

func (n exprNode) render(ctx *renderCtx, w io.Writer) error {
	v, err := ctx.evaluate(n.src)
	if err != nil {
		return err
	}
	if safe, ok := v.(SafeHTML); ok || !ctx.escape {
		if ok {
			_, err = io.WriteString(w, string(safe))
		} else {
			_, err = io.WriteString(w, toString(v))
		}
		return err
	}
	_, err = io.WriteString(w, htmlEscapeFast(toString(v)))
	return err
}

// ifNode renders then when cond is truthy, else els. An elseif chain is an
// ifNode stored in els.
type ifNode struct {
	cond string
	then node
	els  node
}

func (n ifNode) render(ctx *renderCtx, w io.Writer) error {
	v, err := ctx.evaluate(n.cond)
	if err != nil {
		return err
	}
	if truthy(v) {
		return n.then.render(ctx, w)
	}
	if n.els != nil {
		return n.els.render(ctx, w)
	}
	return nil
}

type forNode struct {
	name string
	iter string
	body node
}

func (n forNode) render(ctx *renderCtx, w io.Writer) error {
	v, err := ctx.evaluate(n.iter)
	if err != nil {
		return err
	}
	// not iterable renders nothing
	_, err = iterate(v, false, func(_, item any) error {
		ctx.frames.push(map[string]any{n.name: item})
		defer ctx.frames.pop()
		return n.body.render(ctx, w)
	})
	return err
}

type eachNode struct {
	value string
	key   string
	iter  string
	body  node
}

func (n eachNode) render(ctx *renderCtx, w io.Writer) error {
	v, err := ctx.evaluate(n.iter)
	if err != nil {
		return err
	}
	_, err = iterate(v, true, func(key, item any) error {
		ctx.frames.push(map[string]any{n.key: key, n.value: item})
		defer ctx.frames.pop()
		return n.body.render(ctx, w)
	})
	return err
}

type seqNode []node

func (s seqNode) render(ctx *renderCtx, w io.Writer) error {
	for _, n := range s {
		if err := n.render(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func sequence(nodes []node) node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return seqNode(nodes)
}

// countNodes reports the size of a tree, for logging.
func countNodes(n node) int {
	switch x := n.(type) {
	case seqNode:
		total := 0
		for _, c := range x {
			total += countNodes(c)
		}
		return total
	case ifNode:
		total := 1 + countNodes(x.then)
		if x.els != nil {
			total += countNodes(x.els)
		}
		return total
	case forNode:
		return 1 + countNodes(x.body)
	case eachNode:
		return 1 + countNodes(x.body)
	case nil:
		return 0
	}
	return 1
}
