package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/reel"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Output string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <reel.vr.json>",
		Short: "Print the execution plan of a virtual reel",
		Long: `Assemble a virtual reel without executing it: resolve every frame and
cut source, merge the cut files, and print the ordered frames with their
effective names and the initial register.

Examples:
  filmreel plan ./reels/session.vr.json
  filmreel plan ./reels/session.vr.json --format json
  filmreel plan ./reels/session.vr.json -o plan.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the plan document (canonical JSON) to this file")
	return cmd
}

func runPlan(opts *PlanOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	plan, err := loadReelPlan(path)
	if err != nil {
		if ferr := f.Error(string(reel.CodeOf(err)), err.Error(), nil); ferr != nil {
			return ferr
		}
		return reelExitError("failed to assemble reel", err)
	}
	f.VerboseLog("assembled %s: %d frame(s)", plan.Name, len(plan.Entries))

	planDoc := plan.Document()
	if opts.Output != "" {
		data, err := doc.MarshalCanonical(planDoc)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serialize plan", err)
		}
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write plan", err)
		}
	}

	if f.IsJSON() {
		return f.Success(doc.ToAny(planDoc))
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Reel %s: %d frame(s)\n", plan.Name, len(plan.Entries))
	for i, e := range plan.Entries {
		source := e.Source
		if source == "" {
			source = "(inline)"
		}
		fmt.Fprintf(w, "  %d. %s [%s] %s %s\n", i, e.Name, e.Frame.Protocol, e.Frame.Request.URI, source)
		if reads := e.Frame.Cut.Reads(); len(reads) > 0 {
			fmt.Fprintf(w, "     reads:  %v\n", reads)
		}
		if writes := e.Frame.Cut.WriteNames(); len(writes) > 0 {
			fmt.Fprintf(w, "     writes: %v\n", writes)
		}
	}
	fmt.Fprintf(w, "cut: %s\n", plan.Register.String())
	return nil
}
