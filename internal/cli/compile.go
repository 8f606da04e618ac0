package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kobra-dev/kobra/internal/compiler"
)

// ValidationResult is the output of the validate command.
type ValidationResult struct {
	Valid     bool `json:"valid"`
	Instances int  `json:"instances"`
}

func (r ValidationResult) String() string {
	return fmt.Sprintf("✓ graph is valid (%d blocks)", r.Instances)
}

// CompileResult is the output of the compile command.
type CompileResult struct {
	Hash       string               `json:"hash"`
	Statements []compiler.Statement `json:"statements"`
	Output     string               `json:"output,omitempty"` // file the program was written to
}

func (r CompileResult) String() string {
	var b strings.Builder
	for _, st := range r.Statements {
		b.WriteString(st.Text)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "# %d statements, hash %s", len(r.Statements), r.Hash)
	if r.Output != "" {
		fmt.Fprintf(&b, "\n# written to %s", r.Output)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <graph.yaml>",
		Short: "Check a graph's wiring without compiling it",
		Long: `Check a graph document for structural defects, cycles, type mismatches
between connected ports and unbound inputs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			reg, g, err := loadInput(rootOpts, args[0], f)
			if err != nil {
				return err
			}
			if err := compiler.Validate(reg, g); err != nil {
				return f.Fail(ExitFailure, "graph is invalid", err, errorDetails(err))
			}
			return f.Success(ValidationResult{Valid: true, Instances: len(g.Instances)})
		},
	}
}

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <graph.yaml>",
		Short: "Compile a graph to an ordered program",
		Long: `Compile a graph document to its program: one statement per block, in an
order where every block runs after the blocks it depends on.

Example:
  kobra compile pipeline.yaml
  kobra compile pipeline.yaml -o pipeline.py`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the program source to this file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	reg, g, err := loadInput(opts.RootOptions, path, f)
	if err != nil {
		return err
	}

	prog, err := compiler.Compile(reg, g)
	if err != nil {
		return f.Fail(ExitFailure, "compilation failed", err, errorDetails(err))
	}
	f.VerboseLog("Compiled %d statements from %s", len(prog.Statements), path)

	res := CompileResult{Hash: prog.Hash, Statements: prog.Statements}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(prog.Source()), 0o644); err != nil {
			return f.Fail(ExitCommandError, "failed to write program", err, nil)
		}
		res.Output = opts.Output
	}
	return f.Success(res)
}

// errorDetails extracts structured context from a compile error.
func errorDetails(err error) any {
	var cyclic *compiler.CyclicGraphError
	if errors.As(err, &cyclic) {
		return map[string]any{"cycles": cyclic.Cycles, "path": cyclic.Path}
	}
	var mismatch *compiler.TypeMismatchError
	if errors.As(err, &mismatch) {
		return mismatch
	}
	var unbound *compiler.UnboundPortError
	if errors.As(err, &unbound) {
		return unbound
	}
	return nil
}
