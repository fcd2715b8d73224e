// Package cmd is the compiler's command-line front end: a single
// cobra.Command exposing the configuration surface plus the
// --emit switch that reaches the llvmgen backend.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"riscc/src/ast"
)

// NewRootCommand builds the "riscc" command. root is the already-built
// AST to compile: lexing, parsing, and name resolution happen upstream,
// so the command takes the tree rather than a source-file parser.
func NewRootCommand(root *ast.DeclarationList) *cobra.Command {
	opts := Options{OptLevel: 1, Emit: EmitAsm}

	cmd := &cobra.Command{
		Use:           "riscc",
		Short:         "Compile a linearized mid-end program to RISC-V assembly or LLVM IR",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			if opts.Emit != EmitAsm && opts.Emit != EmitLLVM {
				return fmt.Errorf("invalid --emit value %q: must be %q or %q", opts.Emit, EmitAsm, EmitLLVM)
			}
			return Run(root, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.OptLevel, "opt-level", "O", opts.OptLevel, "optimization level")
	flags.StringVarP(&opts.Out, "out", "o", "", "output path (default stdout)")
	flags.StringVar(&opts.Emit, "emit", opts.Emit, `output format: "asm" or "llvm"`)
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log pass timings and instruction counts")

	return cmd
}
