package brutaltpl

import (
	"fmt"
	"strconv"
	"strings"
)

// ----------------------------- Expression AST -------------------------------

// Expr is a node of a parsed expression. The set of implementations is closed:
// *Literal, *Identifier, *Member, *Call, *Binary, *Unary and *Conditional.
type Expr interface {
	fmt.Stringer
	exprNode()
}

// Literal is a constant: float64, string, bool, nil or Undefined.
type Literal struct{ Value any }

// Identifier is a name resolved against the current frame.
type Identifier struct{ Name string }

// Member is obj.name (Computed false, Property is a *Literal string) or
// obj[expr] (Computed true).
type Member struct {
	Object   Expr
	Property Expr
	Computed bool
}

// Call invokes Callee with Args.
type Call struct {
	Callee Expr
	Args   []Expr
}

// Binary is Left Op Right.
type Binary struct {
	Op          string
	Left, Right Expr
}

// Unary is Op Operand, where Op is "!" or "-".
type Unary struct {
	Op      string
	Operand Expr
}

// Conditional is Test ? Consequent : Alternate.
type Conditional struct {
	Test, Consequent, Alternate Expr
}

func (*Literal) exprNode()     {}
func (*Identifier) exprNode()  {}
func (*Member) exprNode()      {}
func (*Call) exprNode()        {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Conditional) exprNode() {}

func (e *Literal) String() string {
	switch v := e.Value.(type) {
	case string:
		return strconv.Quote(v)
	case float64:
		return formatNumber(v)
	case nil:
		return "null"
	}
	return fmt.Sprint(e.Value)
}

func (e *Identifier) String() string { return e.Name }

func (e *Member) String() string {
	if !e.Computed {
		if lit, ok := e.Property.(*Literal); ok {
			return fmt.Sprintf("%s.%v", e.Object, lit.Value)
		}
	}
	return fmt.Sprintf("%s[%s]", e.Object, e.Property)
}

func (e *Call) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Callee, strings.Join(args, ", "))
}

func (e *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

func (e *Unary) String() string { return fmt.Sprintf("(%s%s)", e.Op, e.Operand) }

func (e *Conditional) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", e.Test, e.Consequent, e.Alternate)
}
