package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kobra-dev/kobra/internal/graphdoc"
	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/session"
	"github.com/kobra-dev/kobra/internal/snapshot"
	"github.com/kobra-dev/kobra/internal/store"
)

// SaveResult is the output of the save command.
type SaveResult struct {
	Project string `json:"project"`
	Digest  string `json:"digest"`
}

func (r SaveResult) String() string {
	return fmt.Sprintf("✓ saved project %s (%s)", r.Project, r.Digest)
}

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Project string
	Run     bool
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <graph.yaml>",
		Short: "Save a graph as a project",
		Long: `Save a graph document as a project in the database. With --run the graph
is run first and its console and plot output are saved with it.

Without --project a new project id is generated.

Example:
  kobra save pipeline.yaml --project demo --db ./kobra.db
  kobra save pipeline.yaml --run --backend badger --db ./kobra-data`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "project id (generated when empty)")
	cmd.Flags().BoolVar(&opts.Run, "run", false, "run the graph before saving")

	return cmd
}

func runSave(opts *SaveOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)
	reg, g, err := loadInput(opts.RootOptions, path, f)
	if err != nil {
		return err
	}

	sess := newSession(reg, session.WithLogger(logger))
	if err := sess.EditGraph(func(dst *ir.BlockGraph) error {
		*dst = g
		return nil
	}); err != nil {
		return f.Fail(ExitCommandError, "failed to load graph", err, nil)
	}
	if opts.Run {
		if _, err := runInterruptible(cmd, sess); err != nil {
			// Output of a failed run is saved like any other.
			f.VerboseLog("Run failed: %v", err)
		}
	}

	project := opts.Project
	if project == "" {
		project = store.NewProjectID()
	}
	st, err := openStore(opts.RootOptions, logger)
	if err != nil {
		return f.Fail(ExitCommandError, "failed to open database", err, nil)
	}
	defer st.Close()

	blob, err := sess.Snapshot()
	if err != nil {
		return f.Fail(ExitCommandError, "failed to encode project", err, nil)
	}
	if err := st.Put(cmd.Context(), project, blob); err != nil {
		return f.Fail(ExitCommandError, "failed to save project", err, nil)
	}
	return f.Success(SaveResult{Project: project, Digest: ir.SnapshotDigest(blob)})
}

// ProjectView is the output of the show command for one project.
type ProjectView struct {
	Project string             `json:"project"`
	Digest  string             `json:"digest"`
	Graph   *graphdoc.Document `json:"graph"`
	Plot    ir.PlotState       `json:"plot"`
	Console []ir.ConsoleLine   `json:"console"`
}

func (v ProjectView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "project %s (%s)\n", v.Project, v.Digest)
	if data, err := v.Graph.Marshal(); err == nil {
		b.Write(data)
	}
	if v.Plot.IsActive {
		fmt.Fprintf(&b, "plot %q: %d trace(s)\n", v.Plot.PlotTitle, len(v.Plot.PlotData))
	}
	fmt.Fprintf(&b, "console: %d line(s)", len(v.Console))
	for _, l := range v.Console {
		b.WriteString("\n  ")
		b.WriteString(l.Text)
	}
	return b.String()
}

// ProjectList is the output of the show command without a project.
type ProjectList struct {
	Projects []string `json:"projects"`
}

func (l ProjectList) String() string {
	if len(l.Projects) == 0 {
		return "no projects"
	}
	return strings.Join(l.Projects, "\n")
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [project]",
		Short: "Show a saved project, or list projects",
		Long: `Show a saved project's graph as a YAML document together with its plot
and console state. Without a project id, list the stored projects.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			logger := newLogger(rootOpts, cmd)
			st, err := openStore(rootOpts, logger)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to open database", err, nil)
			}
			defer st.Close()

			if len(args) == 0 {
				ids, err := st.ProjectIDs(cmd.Context())
				if err != nil {
					return f.Fail(ExitCommandError, "failed to list projects", err, nil)
				}
				return f.Success(ProjectList{Projects: ids})
			}

			reg, err := loadRegistry(rootOpts)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to load families", err, nil)
			}
			blob, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return f.Fail(ExitFailure, "failed to read project", err, nil)
			}
			snap, err := snapshot.Load(reg, blob)
			if err != nil {
				return f.Fail(ExitFailure, "failed to load project", err, nil)
			}
			console := snap.Console.Lines
			if console == nil {
				console = []ir.ConsoleLine{}
			}
			return f.Success(ProjectView{
				Project: args[0],
				Digest:  ir.SnapshotDigest(blob),
				Graph:   graphdoc.FromGraph(snap.Graph),
				Plot:    snap.Plot,
				Console: console,
			})
		},
	}
}

// ProjectOptions holds flags for commands that work on a saved project.
type ProjectOptions struct {
	*RootOptions
	Project  string
	Instance string
}

// openProject opens the store and adopts the project into a new session.
func openProject(opts *ProjectOptions, cmd *cobra.Command, f *OutputFormatter) (*session.Session, projectStore, error) {
	logger := newLogger(opts.RootOptions, cmd)
	reg, err := loadRegistry(opts.RootOptions)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, "failed to load families", err, nil)
	}
	st, err := openStore(opts.RootOptions, logger)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, "failed to open database", err, nil)
	}
	sess := newSession(reg, session.WithLogger(logger))
	if err := sess.Open(cmd.Context(), st, opts.Project); err != nil {
		st.Close()
		return nil, nil, f.Fail(ExitFailure, "failed to open project", err, nil)
	}
	return sess, st, nil
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resume --project <id>",
		Short: "Run a saved project and save the result back",
		Long: `Open a saved project, run its graph and save the project back with the
new console and plot output. The project is saved even when the run fails,
so the failure marker is kept in its console.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			sess, st, err := openProject(opts, cmd, f)
			if err != nil {
				return err
			}
			defer st.Close()

			runErr := runSession(cmd, sess, f, opts.Project)
			if err := sess.Save(cmd.Context(), st, opts.Project); err != nil {
				return f.Fail(ExitCommandError, "failed to save project", err, nil)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "project id (required)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

// ExportResult is the output of the export command.
type ExportResult struct {
	ID       string `json:"id"`
	Project  string `json:"project"`
	Instance string `json:"instance"`
	Family   string `json:"family"`
	Digest   string `json:"digest"`
	Size     int    `json:"size"`
}

func (r ExportResult) String() string {
	return fmt.Sprintf("✓ exported %s model of %s as %s (%d bytes, %s)", r.Family, r.Instance, r.ID, r.Size, r.Digest)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export --project <id> --instance <create-block>",
		Short: "Train a saved project's model and store it",
		Long: `Open a saved project, run it, and store the model trained for the given
create block in the database under a new model id.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			sess, st, err := openProject(opts, cmd, f)
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := runInterruptible(cmd, sess); err != nil {
				f.VerboseLog("Run failed: %v", err)
			}
			m, err := sess.ExportModel(cmd.Context(), st, opts.Project, opts.Instance)
			if err != nil {
				return f.Fail(ExitFailure, "failed to export model", err, nil)
			}
			return f.Success(ExportResult{
				ID:       m.ID,
				Project:  m.ProjectID,
				Instance: m.InstanceID,
				Family:   m.FamilyID,
				Digest:   m.Digest,
				Size:     len(m.Payload),
			})
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "project id (required)")
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "create block whose model to export (required)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("instance")

	return cmd
}
