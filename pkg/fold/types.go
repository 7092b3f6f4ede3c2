package fold

import "fmt"

// EnumMember is one (name, integer-value) pair of an enumeration's member
// list, in declaration order.
type EnumMember struct {
	Name  string
	Value int64
}

// TypeKind distinguishes the handful of type shapes the folder must reason
// about. It deliberately does not model the full C type lattice (arrays,
// function signatures, qualifiers beyond what folding cares about) because
// type-checking is an external collaborator of this engine (§1).
type TypeKind uint8

const (
	KindInt TypeKind = iota
	KindUnsignedInt
	KindChar
	KindBool
	KindFloat
	KindDouble
	KindEnum
	KindPointer
	KindFunc
	KindOther
)

// Type is the interface the folder consumes. A prior type-checking pass is
// responsible for producing one of these per expression node; the folder
// never constructs a Type on its own except for the int/unsigned-int types
// of its own literal results.
type Type interface {
	IsIntegral() bool
	IsSigned() bool
	IsPointer() bool
	SizeOf() (int, error)
	Kind() TypeKind
	// EnumMembers returns the ordered member list when Kind() == KindEnum,
	// or nil otherwise.
	EnumMembers() []EnumMember
}

// BasicType is the concrete Type implementation used throughout this
// package and its tests. Real front ends are expected to adapt their own
// type representation to the Type interface rather than use this one, but
// BasicType is a complete, ready-to-use implementation.
type BasicType struct {
	K        TypeKind
	Bytes    int
	Members  []EnumMember // only meaningful when K == KindEnum
	Incomplete bool        // sizeof() fails for incomplete aggregate/enum types
}

func (t BasicType) IsIntegral() bool {
	switch t.K {
	case KindInt, KindUnsignedInt, KindChar, KindBool, KindEnum:
		return true
	default:
		return false
	}
}

func (t BasicType) IsSigned() bool {
	switch t.K {
	case KindUnsignedInt, KindBool:
		return false
	default:
		return true
	}
}

func (t BasicType) IsPointer() bool { return t.K == KindPointer }

func (t BasicType) SizeOf() (int, error) {
	if t.Incomplete {
		return 0, fmt.Errorf("sizeof applied to incomplete type")
	}
	return t.Bytes, nil
}

func (t BasicType) Kind() TypeKind { return t.K }

func (t BasicType) EnumMembers() []EnumMember {
	if t.K != KindEnum {
		return nil
	}
	return t.Members
}

// Convenience constructors for the built-in scalar types, sized the way an
// LP32-ish target (matching the rest of this module's toolchain) lays them
// out: 4-byte int, 1-byte char/bool, 4-byte float, 8-byte double, 2-byte
// pointer (the backend's machine word).
var (
	IntType      = BasicType{K: KindInt, Bytes: 4}
	UnsignedType = BasicType{K: KindUnsignedInt, Bytes: 4}
	CharType     = BasicType{K: KindChar, Bytes: 1}
	BoolType     = BasicType{K: KindBool, Bytes: 1}
	FloatType    = BasicType{K: KindFloat, Bytes: 4}
	DoubleType   = BasicType{K: KindDouble, Bytes: 8}
	PointerType  = BasicType{K: KindPointer, Bytes: 2}
)

// EnumType builds an enum BasicType from its ordered member list.
func EnumType(members []EnumMember) BasicType {
	return BasicType{K: KindEnum, Bytes: 4, Members: members}
}

// lookupEnumMember returns the integer value of name within t's member
// list, and whether it was found.
func lookupEnumMember(t Type, name string) (int64, bool) {
	for _, m := range t.EnumMembers() {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}
