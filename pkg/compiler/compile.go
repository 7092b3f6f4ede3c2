package compiler

import (
	"fmt"
	"os"
)

// Compile runs the full front-end pipeline over a C source file: preprocess,
// lex, parse, validate the constant expressions the language requires
// (switch-case labels), and generate GoCPU assembly text.
//
// Producing and running machine code is the job of the assembler/VM backend,
// which is an external collaborator of this front-end and lives outside this
// module.
func Compile(src string, baseDir string) (*string, error) {

	// Preprocess
	var err error
	src, err = Preprocess(src, baseDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "preprocess error:", err)
		return nil, err
	}

	tokens, err := Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		return nil, err
	}

	stmts, err := Parse(tokens, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		return nil, err
	}

	syms := NewSymbolTable()

	if err := ValidateConstantExpressions(stmts, syms); err != nil {
		fmt.Fprintln(os.Stderr, "constant expression error:", err)
		return nil, err
	}

	assembly, err := Generate(stmts, syms)
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		return &assembly, err
	}

	return &assembly, nil
}
