package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kobra-dev/kobra/internal/ir"
	"github.com/kobra-dev/kobra/internal/registry"
)

// FamilyList is the output of the families command.
type FamilyList struct {
	Families []ir.FamilyConfig `json:"families"`
}

func (l FamilyList) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d famil", len(l.Families))
	if len(l.Families) == 1 {
		b.WriteString("y")
	} else {
		b.WriteString("ies")
	}
	for _, f := range l.Families {
		fmt.Fprintf(&b, "\n  %-12s %s (%s -> %s)", f.ID, f.FriendlyName, f.PredictInputType, f.PredictOutputType)
		for _, p := range f.AdditionalFitParams {
			fmt.Fprintf(&b, "\n    fit param %s", p.ID)
			if p.ValidationExpr != "" {
				fmt.Fprintf(&b, ": %s", p.ValidationExpr)
			}
		}
	}
	return b.String()
}

// NewFamiliesCommand creates the families command.
func NewFamiliesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List registered model families",
		Long: `List the model families available to graphs: the built-in families and
those declared in the CUE files of --families.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			reg, err := loadRegistry(rootOpts)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to load families", err, nil)
			}
			return f.Success(FamilyList{Families: reg.Families()})
		},
	}
}

// BlockList is the output of the blocks command.
type BlockList struct {
	Blocks []registry.BlockDef `json:"blocks"`
}

func (l BlockList) String() string {
	var b strings.Builder
	for i, d := range l.Blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%s) -> %s", d.Name, d.Label, d.Output)
		for _, p := range d.Inputs {
			kind := ""
			if p.Literal {
				kind = " literal"
			}
			fmt.Fprintf(&b, "\n  %-10s %s%s", p.Name, p.TagString(), kind)
			if hint := d.Hints[p.Name]; hint != "" {
				fmt.Fprintf(&b, "  %q", hint)
			}
		}
	}
	return b.String()
}

// NewBlocksCommand creates the blocks command.
func NewBlocksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "blocks [family]",
		Short: "Show the blocks derived from a family",
		Long: `Show the create, fit and predict blocks derived from a family's
configuration, with their input ports and accepted type tags.

Without a family, shows the print and plot blocks.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			if len(args) == 0 {
				return f.Success(BlockList{Blocks: registry.DisplayBlockDefs()})
			}
			reg, err := loadRegistry(rootOpts)
			if err != nil {
				return f.Fail(ExitCommandError, "failed to load families", err, nil)
			}
			defs, err := reg.DeriveBlockDefs(args[0])
			if err != nil {
				return f.Fail(ExitFailure, "unknown family", err, nil)
			}
			return f.Success(BlockList{Blocks: defs[:]})
		},
	}
}
