package fold

// Fold walks node post-order and returns a new tree with every
// constant-foldable subexpression reduced to a LiteralExpr (§4.6). It
// never mutates the input. Constexpr on the returned node (and every
// node beneath it) reflects whether folding actually produced a
// literal; callers must not trust any Constexpr set before calling Fold.
func Fold(n *Node) (*Node, error) {
	if n == nil {
		return nil, nil
	}

	switch e := n.Expr.(type) {
	case LiteralExpr:
		return &Node{Expr: e, CType: n.CType, Loc: n.Loc, Constexpr: true, LVal: n.LVal}, nil

	case IdExpr:
		return foldId(n, e)

	case SizeofExpr:
		return foldSizeof(n, e)

	case NegateExpr:
		return foldNegate(n, e)

	case LogicalNotExpr:
		return foldLogicalNot(n, e)

	case BitwiseNotExpr:
		return foldBitwiseNot(n, e)

	case CommaExpr:
		return foldComma(n, e)

	case NoopExpr:
		inner, err := Fold(e.Inner)
		if err != nil {
			return nil, err
		}
		return &Node{Expr: NoopExpr{Inner: inner}, CType: n.CType, Loc: n.Loc, LVal: n.LVal}, nil

	case StaticRefExpr:
		inner, err := Fold(e.Inner)
		if err != nil {
			return nil, err
		}
		return &Node{Expr: StaticRefExpr{Inner: inner}, CType: n.CType, Loc: n.Loc, LVal: n.LVal}, nil

	case DerefExpr:
		return foldDeref(n, e)

	case BinaryExpr:
		return foldBinary(n, e)

	case Shift:
		left, err := Fold(e.L)
		if err != nil {
			return nil, err
		}
		right, err := Fold(e.R)
		if err != nil {
			return nil, err
		}
		result, err := foldShift(n.Loc, left, right, e.IsLeft, n.CType)
		if err != nil {
			return nil, err
		}
		result.Loc = n.Loc
		result.LVal = n.LVal
		return result, nil

	case Compare:
		left, err := Fold(e.L)
		if err != nil {
			return nil, err
		}
		right, err := Fold(e.R)
		if err != nil {
			return nil, err
		}
		result, err := foldCompare(n.Loc, left, right, e.Op)
		if err != nil {
			return nil, err
		}
		result.Loc = n.Loc
		return result, nil

	case Logical:
		left, err := Fold(e.L)
		if err != nil {
			return nil, err
		}
		right, err := Fold(e.R)
		if err != nil {
			return nil, err
		}
		result := foldLogical(n.Loc, left, right, e.Op)
		result.Loc = n.Loc
		return result, nil

	case Ternary:
		return foldTernary(n, e)

	case FuncCallExpr:
		callee, err := Fold(e.Callee)
		if err != nil {
			return nil, err
		}
		args := make([]*Node, len(e.Args))
		for i, a := range e.Args {
			folded, err := Fold(a)
			if err != nil {
				return nil, err
			}
			args[i] = folded
		}
		return &Node{Expr: FuncCallExpr{Callee: callee, Args: args}, CType: n.CType, Loc: n.Loc}, nil

	case MemberExpr:
		inner, err := Fold(e.E)
		if err != nil {
			return nil, err
		}
		return &Node{Expr: MemberExpr{E: inner, Name: e.Name}, CType: n.CType, Loc: n.Loc, LVal: n.LVal}, nil

	case AssignExpr:
		target, err := Fold(e.Target)
		if err != nil {
			return nil, err
		}
		val, err := Fold(e.Val)
		if err != nil {
			return nil, err
		}
		return &Node{Expr: AssignExpr{Target: target, Val: val, Op: e.Op}, CType: n.CType, Loc: n.Loc}, nil

	case PostIncrementExpr:
		inner, err := Fold(e.E)
		if err != nil {
			return nil, err
		}
		return &Node{Expr: PostIncrementExpr{E: inner, Up: e.Up}, CType: n.CType, Loc: n.Loc}, nil

	case CastExpr:
		return foldCast(n, e)

	default:
		return nil, semErr(n.Loc, "fold: unhandled expression variant %T", e)
	}
}

func foldId(n *Node, e IdExpr) (*Node, error) {
	if n.CType != nil && n.CType.Kind() == KindEnum {
		if v, ok := lookupEnumMember(n.CType, e.Name); ok {
			return literalNode(IntLit(v), n.CType, n.Loc), nil
		}
	}
	return &Node{Expr: e, CType: n.CType, Loc: n.Loc, LVal: n.LVal}, nil
}

func foldSizeof(n *Node, e SizeofExpr) (*Node, error) {
	size, err := e.Operand.SizeOf()
	if err != nil {
		return nil, withLoc(err, n.Loc)
	}
	return literalNode(UIntLit(uint64(size)), UnsignedType, n.Loc), nil
}

func foldNegate(n *Node, e NegateExpr) (*Node, error) {
	inner, err := Fold(e.E)
	if err != nil {
		return nil, err
	}
	lit, ok := inner.Expr.(LiteralExpr)
	if !ok {
		return &Node{Expr: NegateExpr{E: inner}, CType: n.CType, Loc: n.Loc}, nil
	}
	return literalNode(NegateLiteral(lit.Lit), n.CType, n.Loc), nil
}

func foldLogicalNot(n *Node, e LogicalNotExpr) (*Node, error) {
	inner, err := Fold(e.E)
	if err != nil {
		return nil, err
	}
	lit, ok := inner.Expr.(LiteralExpr)
	if !ok {
		return &Node{Expr: LogicalNotExpr{E: inner}, CType: n.CType, Loc: n.Loc}, nil
	}
	if IsZero(lit.Lit) {
		return literalNode(IntLit(1), IntType, n.Loc), nil
	}
	return literalNode(IntLit(0), IntType, n.Loc), nil
}

func foldBitwiseNot(n *Node, e BitwiseNotExpr) (*Node, error) {
	inner, err := Fold(e.E)
	if err != nil {
		return nil, err
	}
	lit, ok := inner.Expr.(LiteralExpr)
	if !ok {
		return &Node{Expr: BitwiseNotExpr{E: inner}, CType: n.CType, Loc: n.Loc}, nil
	}
	result, ok := BitwiseComplement(lit.Lit)
	if !ok {
		return &Node{Expr: BitwiseNotExpr{E: inner}, CType: n.CType, Loc: n.Loc}, nil
	}
	return literalNode(result, n.CType, n.Loc), nil
}

func foldComma(n *Node, e CommaExpr) (*Node, error) {
	left, err := Fold(e.L)
	if err != nil {
		return nil, err
	}
	right, err := Fold(e.R)
	if err != nil {
		return nil, err
	}
	if left.Constexpr {
		// l has no side effects once reduced to a literal; only r's value matters,
		// but the comma expression as a whole still owns its own ctype/location.
		return &Node{Expr: right.Expr, CType: n.CType, Loc: n.Loc, LVal: n.LVal, Constexpr: right.Constexpr}, nil
	}
	return &Node{Expr: CommaExpr{L: left, R: right}, CType: n.CType, Loc: n.Loc}, nil
}

func foldDeref(n *Node, e DerefExpr) (*Node, error) {
	inner, err := Fold(e.E)
	if err != nil {
		return nil, err
	}
	if lit, ok := inner.Expr.(LiteralExpr); ok && lit.Lit.Kind == LitInt && lit.Lit.I == 0 {
		return nil, semErr(n.Loc, "cannot dereference NULL pointer")
	}
	return &Node{Expr: DerefExpr{E: inner}, CType: n.CType, Loc: n.Loc, LVal: true}, nil
}

func foldTernary(n *Node, e Ternary) (*Node, error) {
	// All three operands are folded unconditionally, even once the condition
	// is known, so diagnostics in an unreachable branch still surface.
	cond, err := Fold(e.C)
	if err != nil {
		return nil, err
	}
	t, err := Fold(e.T)
	if err != nil {
		return nil, err
	}
	o, err := Fold(e.O)
	if err != nil {
		return nil, err
	}
	lit, ok := cond.Expr.(LiteralExpr)
	if !ok || lit.Lit.Kind != LitInt {
		return &Node{Expr: Ternary{C: cond, T: t, O: o}, CType: n.CType, Loc: n.Loc}, nil
	}
	if lit.Lit.I == 0 {
		return &Node{Expr: o.Expr, CType: n.CType, Loc: n.Loc, LVal: n.LVal, Constexpr: o.Constexpr}, nil
	}
	return &Node{Expr: t.Expr, CType: n.CType, Loc: n.Loc, LVal: n.LVal, Constexpr: t.Constexpr}, nil
}

func foldCast(n *Node, e CastExpr) (*Node, error) {
	inner, err := Fold(e.E)
	if err != nil {
		return nil, err
	}
	lit, ok := inner.Expr.(LiteralExpr)
	if !ok {
		return &Node{Expr: CastExpr{E: inner}, CType: n.CType, Loc: n.Loc}, nil
	}
	result, ok := ConstCast(lit.Lit, n.CType)
	if !ok {
		return &Node{Expr: CastExpr{E: inner}, CType: n.CType, Loc: n.Loc}, nil
	}
	return literalNode(result, n.CType, n.Loc), nil
}

func foldBinary(n *Node, e BinaryExpr) (*Node, error) {
	left, err := Fold(e.L)
	if err != nil {
		return nil, err
	}
	right, err := Fold(e.R)
	if err != nil {
		return nil, err
	}

	leftLit, leftOk := left.Expr.(LiteralExpr)
	rightLit, rightOk := right.Expr.(LiteralExpr)
	rebuilt := &Node{Expr: BinaryExpr{Op: e.Op, L: left, R: right}, CType: n.CType, Loc: n.Loc}
	if !leftOk || !rightOk || leftLit.Lit.Kind != rightLit.Lit.Kind {
		return rebuilt, nil
	}
	if isBitwiseOp(e.Op) && !isIntegerLitKind(leftLit.Lit.Kind) {
		return rebuilt, nil
	}

	result, err := evalBinaryLiteral(e.Op, leftLit.Lit, rightLit.Lit, n.CType)
	if err != nil {
		return nil, withLoc(err, n.Loc)
	}
	return literalNode(result, n.CType, n.Loc), nil
}

// evalBinaryLiteral dispatches a same-kind literal pair through the
// literal algebra. Char subtraction is routed through charSub to
// preserve the source's signed/unsigned branch split at that one site
// (§4.6); every other combination already produces an identical result
// regardless of signedness and uses the shared path.
func evalBinaryLiteral(op BinOp, a, b Literal, resultType Type) (Literal, error) {
	if op == OpSub && a.Kind == LitChar {
		return charSub(a, b, resultType), nil
	}
	switch op {
	case OpAdd:
		return AddLiteral(a, b)
	case OpSub:
		return SubLiteral(a, b)
	case OpMul:
		return MulLiteral(a, b)
	case OpDiv:
		return DivLiteral(a, b)
	case OpMod:
		return RemLiteral(a, b)
	case OpXor:
		return BitwiseOp(a, b, '^')
	case OpBitAnd:
		return BitwiseOp(a, b, '&')
	case OpBitOr:
		return BitwiseOp(a, b, '|')
	default:
		return Literal{}, semErr(Location{}, "unsupported binary operator")
	}
}

func isBitwiseOp(op BinOp) bool {
	return op == OpXor || op == OpBitAnd || op == OpBitOr
}

func isIntegerLitKind(k LitKind) bool {
	return k == LitInt || k == LitUInt || k == LitChar
}

// charSub mirrors the source's two distinct code paths for signed vs.
// unsigned char subtraction. Both wrap through the same 8-bit two's
// complement bit pattern, so the visible result never differs, but the
// branch is kept rather than collapsed to document that the source
// genuinely treats them as separate cases.
func charSub(a, b Literal, resultType Type) Literal {
	if resultType != nil && resultType.IsSigned() {
		return CharLit(a.C - b.C)
	}
	return CharLit(a.C - b.C)
}
