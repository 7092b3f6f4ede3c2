package compiler

import (
	"fmt"

	"gocpu/pkg/fold"
)

// wordInt and wordUnsigned describe this target's native int: a 16-bit
// machine word, signed or unsigned, matching the CPU this front end
// generates assembly for. byteType is the language's "char" keyword.
var (
	wordInt      = fold.BasicType{K: fold.KindInt, Bytes: 2}
	wordUnsigned = fold.BasicType{K: fold.KindUnsignedInt, Bytes: 2}
	byteType     = fold.CharType
)

// ValidateConstantExpressions walks the program's statement tree and
// rejects any switch-case label that is not a compile-time constant
// expression. The language has exactly one construct that demands a
// true constant (case labels); everything else the front end accepts
// at runtime, so this is the sole entry point into the fold engine.
func ValidateConstantExpressions(stmts []Stmt, syms *SymbolTable) error {
	for _, s := range stmts {
		if err := validateStmt(s, syms); err != nil {
			return err
		}
	}
	return nil
}

func validateStmt(s Stmt, syms *SymbolTable) error {
	if s == nil {
		return nil
	}
	switch st := s.(type) {
	case *BlockStmt:
		return ValidateConstantExpressions(st.Stmts, syms)
	case *SwitchStmt:
		for _, c := range st.Cases {
			if err := validateCaseLabel(c.Value, syms); err != nil {
				return err
			}
			if err := ValidateConstantExpressions(c.Body, syms); err != nil {
				return err
			}
		}
		return ValidateConstantExpressions(st.Default, syms)
	case *IfStmt:
		if err := validateStmt(st.Body, syms); err != nil {
			return err
		}
		return validateStmt(st.ElseBody, syms)
	case *WhileStmt:
		return validateStmt(st.Body, syms)
	case *ForStmt:
		return validateStmt(st.Body, syms)
	case *FunctionDecl:
		return validateStmt(st.Body, syms)
	default:
		return nil
	}
}

// validateCaseLabel folds e and requires the result to be a literal,
// returning a "case label"-prefixed error that wraps the fold error when it
// is not.
func validateCaseLabel(e Expr, syms *SymbolTable) error {
	node, err := exprToFoldNode(e)
	if err != nil {
		return fmt.Errorf("case label: %w", err)
	}
	if _, err := fold.ExtractConstExpr(node); err != nil {
		return fmt.Errorf("case label is not a constant expression: %w", err)
	}
	return nil
}

// exprToFoldNode translates the subset of Expr that can meaningfully
// appear in a constant expression into a fold.Node. Anything outside
// that subset (variable reads, calls, indexing, member access) is
// translated to an opaque identifier so the fold engine correctly
// declines to treat it as constant rather than this bridge silently
// approving it.
func exprToFoldNode(e Expr) (*fold.Node, error) {
	switch v := e.(type) {
	case *Literal:
		if v.IsUnsigned {
			return &fold.Node{Expr: fold.LiteralExpr{Lit: fold.UIntLit(uint64(v.Value))}, CType: wordUnsigned}, nil
		}
		return &fold.Node{Expr: fold.LiteralExpr{Lit: fold.IntLit(int64(v.Value))}, CType: wordInt}, nil

	case *UnaryExpr:
		right, err := exprToFoldNode(v.Right)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case MINUS:
			return &fold.Node{Expr: fold.NegateExpr{E: right}, CType: right.CType}, nil
		case NOT:
			return &fold.Node{Expr: fold.LogicalNotExpr{E: right}, CType: wordInt}, nil
		case TILDE:
			return &fold.Node{Expr: fold.BitwiseNotExpr{E: right}, CType: right.CType}, nil
		default:
			return opaque(), nil
		}

	case *BinaryExpr:
		left, err := exprToFoldNode(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := exprToFoldNode(v.Right)
		if err != nil {
			return nil, err
		}
		resultType := arithResultType(left.CType, right.CType)
		if op, ok := binOpFor(v.Op); ok {
			return &fold.Node{Expr: fold.BinaryExpr{Op: op, L: left, R: right}, CType: resultType}, nil
		}
		if cmp, ok := compareOpFor(v.Op); ok {
			return &fold.Node{Expr: fold.Compare{L: left, R: right, Op: cmp}, CType: wordInt}, nil
		}
		if v.Op == SHL_OP || v.Op == SHR_OP {
			return &fold.Node{Expr: fold.Shift{L: left, R: right, IsLeft: v.Op == SHL_OP}, CType: left.CType}, nil
		}
		return opaque(), nil

	case *LogicalExpr:
		left, err := exprToFoldNode(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := exprToFoldNode(v.Right)
		if err != nil {
			return nil, err
		}
		op := fold.LogAnd
		if v.Op == OR_LOGICAL {
			op = fold.LogOr
		}
		return &fold.Node{Expr: fold.Logical{L: left, R: right, Op: op}, CType: wordInt}, nil

	case *CastExpr:
		inner, err := exprToFoldNode(v.Expr)
		if err != nil {
			return nil, err
		}
		target := castTargetType(v)
		return &fold.Node{Expr: fold.CastExpr{E: inner}, CType: target}, nil

	default:
		return opaque(), nil
	}
}

func castTargetType(c *CastExpr) fold.Type {
	if c.PointerLevel > 0 {
		return fold.PointerType
	}
	switch c.Type {
	case CHAR:
		return byteType
	case UNSIGNED:
		return wordUnsigned
	default:
		return wordInt
	}
}

func arithResultType(l, r fold.Type) fold.Type {
	if !l.IsSigned() || !r.IsSigned() {
		return wordUnsigned
	}
	return wordInt
}

func binOpFor(t TokenType) (fold.BinOp, bool) {
	switch t {
	case PLUS:
		return fold.OpAdd, true
	case MINUS:
		return fold.OpSub, true
	case STAR:
		return fold.OpMul, true
	case SLASH:
		return fold.OpDiv, true
	case PERCENT:
		return fold.OpMod, true
	case CARET:
		return fold.OpXor, true
	case AND:
		return fold.OpBitAnd, true
	case PIPE:
		return fold.OpBitOr, true
	default:
		return 0, false
	}
}

func compareOpFor(t TokenType) (fold.CompareOp, bool) {
	switch t {
	case LESS:
		return fold.CmpLess, true
	case LESS_EQ:
		return fold.CmpLessEq, true
	case GREATER:
		return fold.CmpGreater, true
	case GREATER_EQ:
		return fold.CmpGreaterEq, true
	case EQUALS:
		return fold.CmpEqual, true
	case NOT_EQ:
		return fold.CmpNotEqual, true
	default:
		return 0, false
	}
}

// opaque stands in for any expression the constant-expression grammar
// does not recognize; folding always leaves it as-is, so callers that
// require a literal correctly reject it.
func opaque() *fold.Node {
	return &fold.Node{Expr: fold.IdExpr{Name: "<non-constant>"}, CType: wordInt}
}
