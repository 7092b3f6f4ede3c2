package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gocpu/pkg/compiler"
)

// logger emits structured, leveled diagnostics for the pipeline stages.
// The teacher's own CLI entry points (cmd/console, cmd/desktop) log with the
// stdlib "log" package; slog is its structured, leveled successor and needs
// no third-party dependency, which matters here since no logging library
// appears anywhere in the retrieved example repos.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

const testSource = `int x = 10;
int y = 20;
return x;
`

func readSource(args []string) (src, baseDir string, err error) {
	if len(args) == 0 {
		return testSource, ".", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("read error: %w", err)
	}
	return string(data), filepath.Dir(args[0]), nil
}

func pipeline(args []string) ([]compiler.Stmt, *compiler.SymbolTable, string, error) {
	src, baseDir, err := readSource(args)
	if err != nil {
		return nil, nil, "", err
	}
	src, err = compiler.Preprocess(src, baseDir)
	if err != nil {
		return nil, nil, "", fmt.Errorf("preprocess error: %w", err)
	}
	tokens, err := compiler.Lex(src)
	if err != nil {
		return nil, nil, "", fmt.Errorf("lex error: %w", err)
	}
	stmts, err := compiler.Parse(tokens, src)
	if err != nil {
		return nil, nil, "", fmt.Errorf("parse error: %w", err)
	}
	return stmts, compiler.NewSymbolTable(), src, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ccompiler",
		Short: "C-subset front end: preprocess, lex, parse, validate, and generate GoCPU assembly",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "tokens [file]",
		Short: "Print the token stream for a source file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, baseDir, err := readSource(args)
			if err != nil {
				return err
			}
			src, err = compiler.Preprocess(src, baseDir)
			if err != nil {
				return fmt.Errorf("preprocess error: %w", err)
			}
			tokens, err := compiler.Lex(src)
			if err != nil {
				return fmt.Errorf("lex error: %w", err)
			}
			for _, tok := range tokens {
				fmt.Println(tok)
			}
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "ast [file]",
		Short: "Print the parsed statement tree for a source file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmts, _, _, err := pipeline(args)
			if err != nil {
				return err
			}
			for _, s := range stmts {
				fmt.Println(s)
			}
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "Validate that every switch-case label is a compile-time constant expression",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmts, syms, _, err := pipeline(args)
			if err != nil {
				logger.Error("pipeline failed", "stage", "check", "err", err)
				return err
			}
			if err := compiler.ValidateConstantExpressions(stmts, syms); err != nil {
				logger.Error("constant expression validation failed", "stage", "check", "err", err)
				return fmt.Errorf("constant expression error: %w", err)
			}
			logger.Info("all case labels are constant expressions", "stage", "check")
			fmt.Println("ok: all case labels are constant expressions")
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "build [file]",
		Short: "Run the full pipeline and print the generated assembly",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmts, syms, _, err := pipeline(args)
			if err != nil {
				logger.Error("pipeline failed", "stage", "build", "err", err)
				return err
			}
			if err := compiler.ValidateConstantExpressions(stmts, syms); err != nil {
				logger.Error("constant expression validation failed", "stage", "build", "err", err)
				return fmt.Errorf("constant expression error: %w", err)
			}
			asm, err := compiler.Generate(stmts, syms)
			if err != nil {
				logger.Error("codegen failed", "stage", "build", "err", err)
				return fmt.Errorf("codegen error: %w", err)
			}
			logger.Info("build succeeded", "stage", "build")
			fmt.Print(asm)
			fmt.Println()
			fmt.Print(syms)
			return nil
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
