package fold_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gocpu/pkg/fold"
)

func lit(l fold.Literal, t fold.Type) *fold.Node {
	return &fold.Node{Expr: fold.LiteralExpr{Lit: l}, CType: t, Constexpr: true}
}

func add(l, r *fold.Node, t fold.Type, loc fold.Location) *fold.Node {
	return &fold.Node{Expr: fold.BinaryExpr{Op: fold.OpAdd, L: l, R: r}, CType: t, Loc: loc}
}

var _ = Describe("Fold", func() {
	It("preserves CType and Location on every result", func() {
		loc := fold.Location{Start: 1, End: 5, File: "p.c"}
		n := add(lit(fold.IntLit(3), fold.IntType), lit(fold.IntLit(4), fold.IntType), fold.IntType, loc)

		result, err := fold.Fold(n)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.CType).To(Equal(fold.IntType))
		Expect(result.Loc).To(Equal(loc))
	})

	It("is idempotent", func() {
		n := add(lit(fold.IntLit(5), fold.IntType), lit(fold.IntLit(6), fold.IntType), fold.IntType, fold.Location{})

		once, err := fold.Fold(n)
		Expect(err).NotTo(HaveOccurred())
		twice, err := fold.Fold(once)
		Expect(err).NotTo(HaveOccurred())

		Expect(once.Expr).To(Equal(twice.Expr))
	})

	It("sets Constexpr true exactly when the result is a literal", func() {
		constant := add(lit(fold.IntLit(1), fold.IntType), lit(fold.IntLit(2), fold.IntType), fold.IntType, fold.Location{})
		result, err := fold.Fold(constant)
		Expect(err).NotTo(HaveOccurred())
		_, isLit := result.Expr.(fold.LiteralExpr)
		Expect(result.Constexpr).To(Equal(isLit))
		Expect(isLit).To(BeTrue())

		nonConstant := add(&fold.Node{Expr: fold.IdExpr{Name: "x"}, CType: fold.IntType}, lit(fold.IntLit(2), fold.IntType), fold.IntType, fold.Location{})
		result, err = fold.Fold(nonConstant)
		Expect(err).NotTo(HaveOccurred())
		_, isLit = result.Expr.(fold.LiteralExpr)
		Expect(result.Constexpr).To(Equal(isLit))
		Expect(isLit).To(BeFalse())
	})

	DescribeTable("signed addition matches checked native arithmetic",
		func(a, b int64, wantOverflow bool) {
			n := add(lit(fold.IntLit(a), fold.IntType), lit(fold.IntLit(b), fold.IntType), fold.IntType, fold.Location{})
			result, err := fold.Fold(n)
			if wantOverflow {
				Expect(err).To(HaveOccurred())
				var overflow fold.ConstOverflow
				Expect(errors.As(err, &overflow)).To(BeTrue())
			} else {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Expr.(fold.LiteralExpr).Lit.I).To(Equal(a + b))
			}
		},
		Entry("small positives", int64(3), int64(4), false),
		Entry("MAX + 1 overflows", int64(9223372036854775807), int64(1), true),
		Entry("MIN + -1 overflows", int64(-9223372036854775808), int64(-1), true),
		Entry("MAX + MIN cancels", int64(9223372036854775807), int64(-9223372036854775808), false),
	)

	DescribeTable("unsigned arithmetic wraps at 2^64 with no error",
		func(a, b uint64) {
			n := add(lit(fold.UIntLit(a), fold.UnsignedType), lit(fold.UIntLit(b), fold.UnsignedType), fold.UnsignedType, fold.Location{})
			result, err := fold.Fold(n)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Expr.(fold.LiteralExpr).Lit.U).To(Equal(a + b))
		},
		Entry("no wrap", uint64(1), uint64(2)),
		Entry("wraps past max", uint64(18446744073709551615), uint64(5)),
	)

	It("rejects division by a folded-to-zero right operand", func() {
		zero := add(lit(fold.IntLit(1), fold.IntType), lit(fold.IntLit(-1), fold.IntType), fold.IntType, fold.Location{})
		divNode := &fold.Node{Expr: fold.BinaryExpr{Op: fold.OpDiv, L: lit(fold.IntLit(9), fold.IntType), R: zero}, CType: fold.IntType}

		_, err := fold.Fold(divNode)

		Expect(err).To(HaveOccurred())
		var dz fold.DivideByZero
		Expect(errors.As(err, &dz)).To(BeTrue())
	})

	DescribeTable("same-variant comparisons match primitive comparison",
		func(a, b int64, op fold.CompareOp, want int64) {
			n := &fold.Node{Expr: fold.Compare{L: lit(fold.IntLit(a), fold.IntType), R: lit(fold.IntLit(b), fold.IntType), Op: op}, CType: fold.IntType}
			result, err := fold.Fold(n)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Expr.(fold.LiteralExpr).Lit.I).To(Equal(want))
		},
		Entry("1 < 2", int64(1), int64(2), fold.CmpLess, int64(1)),
		Entry("2 < 1", int64(2), int64(1), fold.CmpLess, int64(0)),
		Entry("3 == 3", int64(3), int64(3), fold.CmpEqual, int64(1)),
		Entry("3 != 3", int64(3), int64(3), fold.CmpNotEqual, int64(0)),
	)

	It("round-trips const_cast idempotently", func() {
		once, ok := fold.ConstCast(fold.IntLit(-5), fold.UnsignedType)
		Expect(ok).To(BeTrue())
		twice, ok := fold.ConstCast(once, fold.UnsignedType)
		Expect(ok).To(BeTrue())
		Expect(once).To(Equal(twice))
	})
})
