package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/reel"
)

// RunOptions holds flags for the run and reel commands.
type RunOptions struct {
	*RootOptions
	execFlags
}

// TakeSummary is one executed frame in command output.
type TakeSummary struct {
	Frame    string            `json:"frame"`
	Index    int               `json:"index"`
	State    string            `json:"state"`
	Request  any               `json:"request,omitempty"`
	Response any               `json:"response,omitempty"`
	Writes   map[string]string `json:"writes,omitempty"`
	Code     string            `json:"code,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// RunSummary is the command output of a reel execution.
type RunSummary struct {
	RunID    string            `json:"run_id"`
	Reel     string            `json:"reel"`
	Passed   bool              `json:"passed"`
	Register map[string]string `json:"register"`
	Takes    []TakeSummary     `json:"takes"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <reel.vr.json>",
		Short: "Assemble and execute a virtual reel",
		Long: `Assemble a virtual reel document and execute its frames in order.

Frame and cut sources named by the reel are resolved relative to the reel
file. Execution stops at the first failing frame.

Exit codes:
  0 - every frame passed
  1 - a frame failed
  2 - command error (unreadable reel, bad config, etc.)

Examples:
  filmreel run ./reels/session.vr.json
  filmreel run ./reels/session.vr.json --db ./takes.db --strict
  filmreel run ./reels/session.vr.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadReelPlan(args[0])
			if err != nil {
				return reelExitError("failed to load reel", err)
			}
			return executePlan(opts, plan, cmd)
		},
	}
	opts.execFlags.register(cmd)
	return cmd
}

// NewReelCommand creates the reel command for physical reels.
func NewReelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reel <dir> <name>",
		Short: "Execute a physical reel from a directory",
		Long: `Execute the frames <name>.<seq><s|e>.<description>.fr.json found in a
directory, ordered by sequence number. <name>.cut.json, when present, seeds
the cut register.

Examples:
  filmreel reel ./frames usertest
  filmreel reel ./frames usertest --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := reel.AssembleDir(args[0], args[1])
			if err != nil {
				return reelExitError("failed to load reel", err)
			}
			return executePlan(opts, plan, cmd)
		},
	}
	opts.execFlags.register(cmd)
	return cmd
}

func executePlan(opts *RunOptions, plan *reel.Plan, cmd *cobra.Command) error {
	e, err := loadEnv(opts.RootOptions, &opts.execFlags, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil {
			e.logger.Error("error closing resources", "error", cerr)
		}
	}()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := e.runner(opts.RootOptions).Run(ctx, plan)
	if res == nil {
		return WrapExitError(ExitCommandError, "failed to start reel", runErr)
	}

	summary := summarizeRun(res)
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if f.IsJSON() {
		if runErr != nil {
			if err := f.Failure(summary, string(reel.CodeOf(runErr)), runErr.Error()); err != nil {
				return err
			}
		} else if err := f.Success(summary); err != nil {
			return err
		}
	} else {
		writeRunText(cmd, summary, res, len(plan.Entries))
	}

	if runErr != nil {
		return reelExitError(fmt.Sprintf("reel %s failed", plan.Name), runErr)
	}
	return nil
}

func summarizeRun(res *reel.Result) RunSummary {
	s := RunSummary{
		RunID:    res.RunID,
		Reel:     res.Reel,
		Passed:   res.Passed(),
		Register: registerMap(res),
		Takes:    make([]TakeSummary, len(res.Takes)),
	}
	for i, t := range res.Takes {
		s.Takes[i] = summarizeTake(&t)
	}
	return s
}

func summarizeTake(t *reel.Take) TakeSummary {
	ts := TakeSummary{
		Frame:    t.Name,
		Index:    t.Index,
		State:    string(t.State),
		Request:  anyOrNil(t.Request),
		Response: anyOrNil(t.Response),
		Writes:   t.Writes,
	}
	if t.Err != nil {
		ts.Code = string(reel.CodeOf(t.Err))
		ts.Error = t.Err.Error()
	}
	return ts
}

func registerMap(res *reel.Result) map[string]string {
	out := make(map[string]string, res.Register.Len())
	for k, v := range res.Register.All() {
		out[k] = v
	}
	return out
}

func anyOrNil(v doc.Value) any {
	if v == nil {
		return nil
	}
	return doc.ToAny(v)
}

func writeRunText(cmd *cobra.Command, s RunSummary, res *reel.Result, total int) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Reel %s (run %s)\n", s.Reel, s.RunID)
	for _, t := range s.Takes {
		if t.Error == "" {
			fmt.Fprintf(w, "✓ [%d] %s\n", t.Index, t.Frame)
			continue
		}
		fmt.Fprintf(w, "✗ [%d] %s (%s)\n", t.Index, t.Frame, t.State)
		fmt.Fprintf(w, "  %s\n", t.Error)
	}
	fmt.Fprintln(w)
	if s.Passed {
		fmt.Fprintf(w, "✓ %d frame(s) passed\n", len(s.Takes))
	} else {
		fmt.Fprintf(w, "✗ reel failed at frame %d of %d\n", len(s.Takes), total)
	}
	fmt.Fprintf(w, "cut: %s\n", res.Register.String())
}
