package fold

// ConstCast implements the cast-normalization table (§4.2): given a literal
// and a target type, it returns a literal representable in that type, or
// ok=false when the folder should decline and leave a Cast node for the
// backend to lower at runtime.
//
// Rows are tried in the order the table lists them; the first match wins.
func ConstCast(lit Literal, target Type) (Literal, bool) {
	numeric := func(l Literal) (float64, bool) {
		switch l.Kind {
		case LitInt:
			return float64(l.I), true
		case LitUInt:
			return float64(l.U), true
		case LitFloat:
			return l.F, true
		case LitChar:
			return float64(l.C), true
		default:
			return 0, false
		}
	}

	asI64 := func(l Literal) (int64, bool) {
		switch l.Kind {
		case LitInt:
			return l.I, true
		case LitUInt:
			return int64(l.U), true
		case LitFloat:
			return int64(l.F), true
		case LitChar:
			return int64(l.C), true
		default:
			return 0, false
		}
	}

	asU64 := func(l Literal) (uint64, bool) {
		switch l.Kind {
		case LitInt:
			return uint64(l.I), true
		case LitUInt:
			return l.U, true
		case LitFloat:
			return uint64(l.F), true
		case LitChar:
			return uint64(l.C), true
		default:
			return 0, false
		}
	}

	if _, isNum := numeric(lit); !isNum {
		// String literals never participate in const_cast.
		return Literal{}, false
	}

	if target.Kind() == KindBool {
		nz := !IsZero(lit)
		if nz {
			return IntLit(1), true
		}
		return IntLit(0), true
	}

	if target.Kind() == KindFloat || target.Kind() == KindDouble {
		f, _ := numeric(lit)
		return FloatLit(f), true
	}

	if target.IsIntegral() {
		if target.IsSigned() {
			v, _ := asI64(lit)
			return IntLit(v), true
		}
		v, _ := asU64(lit)
		return UIntLit(v), true
	}

	if target.IsPointer() {
		switch lit.Kind {
		case LitInt:
			if lit.I >= 0 {
				return UIntLit(uint64(lit.I)), true
			}
			return Literal{}, false
		case LitUInt:
			return UIntLit(lit.U), true
		case LitChar:
			return UIntLit(uint64(lit.C)), true
		default:
			return Literal{}, false
		}
	}

	return Literal{}, false
}
