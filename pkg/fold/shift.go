package fold

// foldShift implements the shift engine (§4.3). Both operands are already
// folded by the caller. resultType is the shift expression's own type,
// used to size S = sizeof(resultType) * CHAR_BIT and to pick the
// signed/unsigned variant of a result-is-zero literal.
const charBit = 8

func foldShift(loc Location, left, right *Node, isLeft bool, resultType Type) (*Node, error) {
	rightLit, rightIsLit := right.Expr.(LiteralExpr)
	if !rightIsLit {
		return rebuildShift(left, right, isLeft), nil
	}
	shiftAmount, err := NonNegativeInt(rightLit.Lit)
	if err != nil {
		return nil, withLoc(err, loc)
	}

	size, err := resultType.SizeOf()
	if err != nil {
		return nil, withLoc(err, loc)
	}
	bits := uint64(size * charBit)

	leftLit, leftIsLit := left.Expr.(LiteralExpr)

	if !isLeft {
		if shiftAmount >= bits {
			return literalNode(zeroOfResultKind(resultType), resultType, loc), nil
		}
		if !leftIsLit {
			normalized := literalNode(UIntLit(shiftAmount), right.CType, right.Loc)
			return rebuildShift(left, normalized, isLeft), nil
		}
		result, err := rightShiftLiteral(leftLit.Lit, shiftAmount, resultType)
		if err != nil {
			return nil, withLoc(err, loc)
		}
		return literalNode(result, resultType, loc), nil
	}

	// Left shift.
	if resultType.IsSigned() && shiftAmount >= bits {
		return nil, semErr(loc, "cannot shift left by %d or more bits", bits)
	}
	if !leftIsLit {
		return rebuildShift(left, right, isLeft), nil
	}
	result, err := leftShiftLiteral(leftLit.Lit, shiftAmount, resultType)
	if err != nil {
		return nil, withLoc(err, loc)
	}
	return literalNode(result, resultType, loc), nil
}

func rebuildShift(left, right *Node, isLeft bool) *Node {
	return &Node{Expr: Shift{L: left, R: right, IsLeft: isLeft}, CType: left.CType, Loc: left.Loc}
}

func literalNode(lit Literal, ctype Type, loc Location) *Node {
	return &Node{Expr: LiteralExpr{Lit: lit}, CType: ctype, Loc: loc, Constexpr: true}
}

func zeroOfResultKind(t Type) Literal {
	if t.IsSigned() {
		return IntLit(0)
	}
	return UIntLit(0)
}

func rightShiftLiteral(l Literal, amount uint64, resultType Type) (Literal, error) {
	if resultType.IsSigned() {
		v, ok := toI64(l)
		if !ok {
			return Literal{}, semErr(Location{}, "shift operand is not an integer literal")
		}
		return IntLit(v >> amount), nil
	}
	v, ok := toU64(l)
	if !ok {
		return Literal{}, semErr(Location{}, "shift operand is not an integer literal")
	}
	return UIntLit(v >> amount), nil
}

func leftShiftLiteral(l Literal, amount uint64, resultType Type) (Literal, error) {
	if resultType.IsSigned() {
		v, ok := toI64(l)
		if !ok {
			return Literal{}, semErr(Location{}, "shift operand is not an integer literal")
		}
		shifted := v << amount
		if amount > 0 && shifted>>amount != v {
			return Literal{}, ConstOverflowShiftLeft{}
		}
		return IntLit(shifted), nil
	}
	v, ok := toU64(l)
	if !ok {
		return Literal{}, semErr(Location{}, "shift operand is not an integer literal")
	}
	return UIntLit(v << amount), nil // unsigned left shift wraps, never diagnosed
}

// ConstOverflowShiftLeft is raised when a signed left shift overflows.
type ConstOverflowShiftLeft struct{}

func (ConstOverflowShiftLeft) Error() string {
	return "overflow in shift left during constant folding"
}

func toI64(l Literal) (int64, bool) {
	switch l.Kind {
	case LitInt:
		return l.I, true
	case LitUInt:
		return int64(l.U), true
	case LitChar:
		return int64(l.C), true
	default:
		return 0, false
	}
}

func toU64(l Literal) (uint64, bool) {
	switch l.Kind {
	case LitInt:
		return uint64(l.I), true
	case LitUInt:
		return l.U, true
	case LitChar:
		return uint64(l.C), true
	default:
		return 0, false
	}
}
