package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/filmreel/internal/frame"
	"github.com/roach88/filmreel/internal/reel"
)

// TakeOptions holds flags for the take command.
type TakeOptions struct {
	*RootOptions
	execFlags
	Cut    string // register file read before the take
	Output string // register file written after a successful take
}

// TakeResult is the JSON payload of the take command.
type TakeResult struct {
	TakeSummary
	Register map[string]string `json:"register"`
}

// NewTakeCommand creates the take command.
func NewTakeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TakeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "take <frame>",
		Short: "Execute a single frame against a cut register",
		Long: `Execute one frame: hydrate its request from the cut register, send it,
match the response and apply the frame's writes. The updated register is
printed in canonical form (and written to --output when given).

Examples:
  filmreel take ./frames/login.fr.json --cut ./session.cut.json
  filmreel take ./frames/login.fr.json --cut in.cut.json --output out.cut.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTake(opts, args[0], cmd)
		},
	}

	opts.execFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Cut, "cut", "", "cut register file (default empty register)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the updated register to this file")

	return cmd
}

func runTake(opts *TakeOptions, path string, cmd *cobra.Command) error {
	f, err := loadFrame(path)
	if err != nil {
		return reelExitError("failed to load frame", err)
	}
	reg, err := loadRegister(opts.Cut)
	if err != nil {
		return reelExitError("failed to load cut register", err)
	}

	e, err := loadEnv(opts.RootOptions, &opts.execFlags, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	name := f.Name
	if name == "" {
		name = frame.DefaultName(path)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	take, next, takeErr := e.runner(opts.RootOptions).RunFrame(ctx, name, f, reg)
	if take == nil {
		return WrapExitError(ExitCommandError, "failed to take frame", takeErr)
	}

	result := TakeResult{TakeSummary: summarizeTake(take), Register: make(map[string]string, next.Len())}
	for k, v := range next.All() {
		result.Register[k] = v
	}

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if takeErr != nil {
		code := string(reel.CodeOf(takeErr))
		if err := out.Failure(result, code, takeErr.Error()); err != nil {
			return err
		}
		return reelExitError(fmt.Sprintf("frame %s failed", name), takeErr)
	}

	if opts.Output != "" {
		data, err := next.SerializeIndent()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serialize register", err)
		}
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write register", err)
		}
		out.VerboseLog("register written to %s", opts.Output)
	}

	if out.IsJSON() {
		return out.Success(result)
	}
	fmt.Fprintln(cmd.OutOrStdout(), next.String())
	return nil
}
