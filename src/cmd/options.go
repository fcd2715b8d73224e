package cmd

// Options carries the CLI's single configuration surface: the
// optimization level knob plus the output-format switch needed to
// reach the llvmgen backend.
type Options struct {
	OptLevel int    // Optimization level passed through to lirgen/optimize.
	Out      string // Output path; empty means stdout.
	Emit     string // "asm" (default) or "llvm".
	Verbose  bool   // Enables zap debug-level logging of pass timings and instruction counts.
}

const (
	EmitAsm  = "asm"
	EmitLLVM = "llvm"
)
