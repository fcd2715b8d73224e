package cmd

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"riscc/src/ast"
	"riscc/src/codegen"
	"riscc/src/lir"
	"riscc/src/lirgen"
	"riscc/src/llvmgen"
	"riscc/src/optimize"
)

// Run executes the full pipeline — linearize, optimize, generate — and
// writes the result to opts.Out (stdout if empty), logging pass timings
// as structured fields instead of a verbose tree dump.
func Run(root *ast.DeclarationList, opts Options) error {
	log, err := newLogger(opts.Verbose)
	if err != nil {
		return errors.Wrap(err, "cmd: failed to build logger")
	}
	defer func() { _ = log.Sync() }()

	start := time.Now()
	prog, err := lirgen.LinearizeAST(root, opts.OptLevel)
	if err != nil {
		return errors.Wrap(err, "lirgen")
	}
	log.Debug("linearized AST", zap.Int("functions", len(prog.Functions)), zap.Duration("lirgen", time.Since(start)))

	if opts.OptLevel > 0 {
		optStart := time.Now()
		prog = optimize.Optimize(prog)
		log.Debug("optimized program", zap.Int("instrs", countInstrs(prog)), zap.Duration("optimize", time.Since(optStart)))
	}

	genStart := time.Now()
	var buf bytes.Buffer
	switch opts.Emit {
	case EmitLLVM:
		out, err := llvmgen.Emit(prog, llvmgen.Options{ModuleName: "riscc"})
		if err != nil {
			return errors.Wrap(err, "llvmgen")
		}
		buf.WriteString(out)
	default:
		if err := codegen.Generate(prog, &buf); err != nil {
			return errors.Wrap(err, "codegen")
		}
	}
	log.Debug("generated output", zap.String("emit", opts.Emit), zap.Duration("codegen", time.Since(genStart)))

	return writeOutput(opts.Out, &buf)
}

func countInstrs(p *lir.Program) int {
	n := 0
	for _, fn := range p.Functions {
		n += len(fn.Body)
	}
	return n
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// writeOutput writes buf to path, or to stdout if path is empty, as a
// plain io.Writer instead of a channel-fed listener.
func writeOutput(path string, buf *bytes.Buffer) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "opening output file %q", path)
		}
		defer f.Close()
		w = f
	}
	_, err := w.Write(buf.Bytes())
	return err
}
