package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/sandbox"
	"github.com/kobra-dev/kobra/internal/session"
)

// RunResult is the output of the run and resume commands.
type RunResult struct {
	Project     string            `json:"project,omitempty"`
	Executed    int               `json:"executed"`
	Console     []ir.ConsoleLine  `json:"console"`
	Plot        ir.PlotState      `json:"plot"`
	Predictions map[string]string `json:"predictions,omitempty"`
	Models      []string          `json:"models,omitempty"` // create blocks holding trained models
}

func (r RunResult) String() string {
	var b strings.Builder
	for _, l := range r.Console {
		b.WriteString(l.Text)
		b.WriteString("\n")
	}
	if r.Plot.IsActive {
		fmt.Fprintf(&b, "# plot %q: %d trace(s)\n", r.Plot.PlotTitle, len(r.Plot.PlotData))
	}
	fmt.Fprintf(&b, "# executed %d statements", r.Executed)
	if r.Project != "" {
		fmt.Fprintf(&b, ", saved to project %s", r.Project)
	}
	return b.String()
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Metrics bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <graph.yaml>",
		Short: "Compile and run a graph",
		Long: `Compile a graph document and run its program, printing the console
output and a summary of the plot.

A run stops at the first failing block, which is named in the console.
Ctrl-C stops the run before the next block starts.

Example:
  kobra run pipeline.yaml
  kobra run pipeline.yaml --metrics --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			reg, g, err := loadInput(opts.RootOptions, args[0], f)
			if err != nil {
				return err
			}

			var metricsReg *prometheus.Registry
			sessOpts := []session.Option{session.WithLogger(newLogger(opts.RootOptions, cmd))}
			if opts.Metrics {
				metricsReg = prometheus.NewRegistry()
				sessOpts = append(sessOpts, session.WithMetrics(sandbox.NewMetrics(metricsReg)))
			}
			sess := newSession(reg, sessOpts...)
			if err := sess.EditGraph(func(dst *ir.BlockGraph) error {
				*dst = g
				return nil
			}); err != nil {
				return f.Fail(ExitCommandError, "failed to load graph", err, nil)
			}

			runErr := runSession(cmd, sess, f, "")
			if metricsReg != nil {
				if err := writeMetrics(f, metricsReg); err != nil {
					return f.Fail(ExitCommandError, "failed to write metrics", err, nil)
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "write run metrics to stderr in Prometheus text format")

	return cmd
}

// runSession runs sess until it finishes or the process is interrupted and
// reports the outcome. project, when set, is included in the result.
func runSession(cmd *cobra.Command, sess *session.Session, f *OutputFormatter, project string) error {
	res, err := runInterruptible(cmd, sess)
	out := resultOf(sess, res, project)
	if err != nil {
		if res == nil {
			return f.Fail(ExitFailure, "compilation failed", err, errorDetails(err))
		}
		if f.Format != "json" {
			_ = f.Success(out)
		}
		return f.Fail(ExitFailure, "run failed", err, out)
	}
	return f.Success(out)
}

// runInterruptible runs sess with a context cancelled on SIGINT or SIGTERM.
func runInterruptible(cmd *cobra.Command, sess *session.Session) (*sandbox.Result, error) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return sess.Run(ctx)
}

func resultOf(sess *session.Session, res *sandbox.Result, project string) RunResult {
	out := RunResult{
		Project: project,
		Console: sess.Console().Lines,
		Plot:    sess.Plot(),
	}
	if out.Console == nil {
		out.Console = []ir.ConsoleLine{}
	}
	if res == nil {
		return out
	}
	out.Executed = res.Executed
	if len(res.Predictions) > 0 {
		out.Predictions = make(map[string]string, len(res.Predictions))
		for id, v := range res.Predictions {
			out.Predictions[id] = ir.Format(v)
		}
	}
	for _, m := range res.Models {
		out.Models = append(out.Models, m.InstanceID)
	}
	return out
}

// writeMetrics writes every gathered metric family to the diagnostic writer.
func writeMetrics(f *OutputFormatter, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	w := f.GetErrWriter()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
