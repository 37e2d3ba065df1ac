package brutaltpl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Error kinds. Every error returned by Compile, Render and Eval wraps exactly one
// of these, so callers can branch with errors.Is.
var (
	ErrUnterminatedString  = errors.New("unterminated string")
	ErrUnexpectedCharacter = errors.New("unexpected character")
	ErrUnexpectedToken     = errors.New("unexpected token")
	ErrInvalidForSyntax    = errors.New("invalid #for syntax")
	ErrInvalidEachSyntax   = errors.New("invalid #each syntax")
	ErrUnknownOperator     = errors.New("unknown operator")
	ErrNotAFunction        = errors.New("not a function")
	ErrUnknownFilter       = errors.New("unknown filter")
)

// SyntaxError reports malformed template or expression text.
type SyntaxError struct {
	Kind   error
	Msg    string
	Source string
	Pos    int
}

func (e *SyntaxError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%v at position %d in %q", e.Kind, e.Pos, e.Source)
	}
	return fmt.Sprintf("%v at position %d in %q: %s", e.Kind, e.Pos, e.Source, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return e.Kind }

func syntaxErr(kind error, src string, pos int, format string, args ...any) error {
	return &SyntaxError{
		Kind:   kind,
		Msg:    fmt.Sprintf(format, args...),
		Source: src,
		Pos:    pos,
	}
}

// EvalError wraps a failure raised while rendering a single expression.
type EvalError struct {
	Expr  string
	Cause error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating %q: %v", e.Expr, e.Cause)
}

func (e *EvalError) Unwrap() error { return e.Cause }

func wrapEval(expr string, err error) error {
	if err == nil {
		return nil
	}
	var ee *EvalError
	if errors.As(err, &ee) {
		return err
	}
	return &EvalError{Expr: expr, Cause: err}
}

func unknownFilterError(name string, known []string) error {
	if s := closestName(name, known); s != "" {
		return fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownFilter, name, s)
	}
	return fmt.Errorf("%w %q", ErrUnknownFilter, name)
}

// closestName picks the best fuzzy match for target, falling back to a small
// edit distance when target is not a subsequence of any candidate.
func closestName(target string, candidates []string) string {
	if len(candidates) == 0 || target == "" {
		return ""
	}
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		sort.Stable(ranks)
		return ranks[0].Target
	}
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(target, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
