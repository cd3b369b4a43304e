package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/filmreel/internal/config"
	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// RunRecord is a run in history output.
type RunRecord struct {
	ID       string `json:"id"`
	Reel     string `json:"reel"`
	Seq      int64  `json:"seq"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Register any    `json:"register,omitempty"`
}

// TakeRecord is a take in history output.
type TakeRecord struct {
	Seq      int64  `json:"seq"`
	Frame    string `json:"frame"`
	Position int    `json:"position"`
	State    string `json:"state"`
	Request  any    `json:"request,omitempty"`
	Response any    `json:"response,omitempty"`
	Register any    `json:"register,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunDetail is a run with its takes.
type RunDetail struct {
	Run   RunRecord    `json:"run"`
	Takes []TakeRecord `json:"takes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Inspect runs recorded in the take log",
		Long: `List the runs recorded in a take log, or show every take of one run.

The database comes from --db, or from the db key of the config file.

Examples:
  filmreel history --db ./takes.db
  filmreel history --db ./takes.db --limit 5
  filmreel history --db ./takes.db 01928f6e-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite take log")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "show only the most recent runs (0 for all)")
	return cmd
}

func runHistory(opts *HistoryOptions, runID string, cmd *cobra.Command) error {
	path := opts.Database
	if path == "" {
		cfg, err := config.LoadOptional(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		path = cfg.DB
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no take log: pass --db or set db in the config file")
	}
	// Reading never creates a database.
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if runID == "" {
		return listRuns(ctx, st, opts.Limit, f)
	}
	return showRun(ctx, st, runID, f)
}

func listRuns(ctx context.Context, st *store.Store, limit int, f *OutputFormatter) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	records := make([]RunRecord, len(runs))
	for i, r := range runs {
		records[i] = runRecord(r)
	}
	if f.IsJSON() {
		return f.Success(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(f.Writer, "%6d  %-36s  %-7s  %s\n", r.Seq, r.ID, r.Status, r.Reel)
	}
	return nil
}

func showRun(ctx context.Context, st *store.Store, runID string, f *OutputFormatter) error {
	run, err := st.GetRun(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	takes, err := st.RunTakes(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read takes", err)
	}

	detail := RunDetail{Run: runRecord(run), Takes: make([]TakeRecord, len(takes))}
	for i, t := range takes {
		detail.Takes[i] = TakeRecord{
			Seq:      t.Seq,
			Frame:    t.Frame,
			Position: t.Position,
			State:    t.State,
			Request:  anyOrNil(t.Request),
			Response: anyOrNil(t.Response),
			Register: registerAny(t.Register),
			Error:    t.Error,
		}
	}
	if f.IsJSON() {
		return f.Success(detail)
	}

	fmt.Fprintf(f.Writer, "Run %s (%s) reel=%s seq=%d\n", run.ID, run.Status, run.Reel, run.Seq)
	for _, t := range takes {
		fmt.Fprintf(f.Writer, "  %6d  [%d] %-20s %s\n", t.Seq, t.Position, t.Frame, t.State)
		if t.Error != "" {
			fmt.Fprintf(f.Writer, "          %s\n", t.Error)
		}
		if f.Verbose {
			fmt.Fprintf(f.Writer, "          cut: %s\n", t.Register)
		}
	}
	if run.Register != "" {
		fmt.Fprintf(f.Writer, "cut: %s\n", run.Register)
	}
	return nil
}

func runRecord(r store.Run) RunRecord {
	return RunRecord{
		ID:       r.ID,
		Reel:     r.Reel,
		Seq:      r.Seq,
		Status:   r.Status,
		Error:    r.Error,
		Register: registerAny(r.Register),
	}
}

// registerAny decodes a stored canonical register for JSON output.
func registerAny(s string) any {
	if s == "" {
		return nil
	}
	v, err := doc.Decode([]byte(s))
	if err != nil {
		return s
	}
	return doc.ToAny(v)
}
