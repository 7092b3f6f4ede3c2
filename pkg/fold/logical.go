package fold

// foldLogical implements the short-circuit engine (§4.5). Per this
// module's contract both operands are folded by the caller before this
// runs — constant folding never skips folding the right side even when
// the left side alone would determine the result, since a skipped side
// may still need to be re-emitted for its own diagnostics.
func foldLogical(loc Location, left, right *Node, op LogicalOp) *Node {
	leftLit, leftIsLit := left.Expr.(LiteralExpr)
	rightLit, rightIsLit := right.Expr.(LiteralExpr)
	if rightIsLit && rightLit.Lit.Kind == LitInt {
		rightTrue := rightLit.Lit.I != 0
		if op == LogAnd && !rightTrue {
			return literalNode(IntLit(0), IntType, loc)
		}
		if op == LogOr && rightTrue {
			return literalNode(IntLit(1), IntType, loc)
		}
	}
	if !leftIsLit || leftLit.Lit.Kind != LitInt {
		return rebuildLogical(left, right, op)
	}

	leftTrue := leftLit.Lit.I != 0
	if op == LogAnd && !leftTrue {
		return literalNode(IntLit(0), IntType, loc)
	}
	if op == LogOr && leftTrue {
		return literalNode(IntLit(1), IntType, loc)
	}

	if !rightIsLit || rightLit.Lit.Kind != LitInt {
		return rebuildLogical(left, right, op)
	}
	rightTrue := rightLit.Lit.I != 0
	if rightTrue {
		return literalNode(IntLit(1), IntType, loc)
	}
	return literalNode(IntLit(0), IntType, loc)
}

func rebuildLogical(left, right *Node, op LogicalOp) *Node {
	return &Node{Expr: Logical{L: left, R: right, Op: op}, CType: IntType, Loc: left.Loc}
}
