package fold

import (
	"math"
	"testing"
)

func TestFoldCompare(t *testing.T) {
	tests := []struct {
		name string
		l, r Literal
		op   CompareOp
		want int64
	}{
		{"3 < 4", IntLit(3), IntLit(4), CmpLess, 1},
		{"4 < 3", IntLit(4), IntLit(3), CmpLess, 0},
		{"3 == 3", IntLit(3), IntLit(3), CmpEqual, 1},
		{"unsigned 5 >= 5", UIntLit(5), UIntLit(5), CmpGreaterEq, 1},
		{"char a < char b", CharLit('a'), CharLit('b'), CmpLess, 1},
		{"float 1.5 != 1.5", FloatLit(1.5), FloatLit(1.5), CmpNotEqual, 0},
	}
	for _, tt := range tests {
		n := Node{Expr: Compare{L: litNode(tt.l, IntType), R: litNode(tt.r, IntType), Op: tt.op}, CType: IntType}
		result, err := Fold(&n)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		lit, ok := result.Expr.(LiteralExpr)
		if !ok {
			t.Fatalf("%s: expected literal result, got %T", tt.name, result.Expr)
		}
		if lit.Lit.I != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, lit.Lit.I, tt.want)
		}
	}
}

func TestFoldCompareNaNAlwaysFalseExceptNotEqual(t *testing.T) {
	nan := FloatLit(math.NaN())
	one := FloatLit(1)

	n := Node{Expr: Compare{L: litNode(nan, DoubleType), R: litNode(one, DoubleType), Op: CmpEqual}, CType: IntType}
	result, err := Fold(&n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Expr.(LiteralExpr).Lit.I != 0 {
		t.Error("NaN == 1.0 should be false")
	}

	n2 := Node{Expr: Compare{L: litNode(nan, DoubleType), R: litNode(nan, DoubleType), Op: CmpNotEqual}, CType: IntType}
	result2, err := Fold(&n2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result2.Expr.(LiteralExpr).Lit.I != 1 {
		t.Error("NaN != NaN should be true")
	}
}
