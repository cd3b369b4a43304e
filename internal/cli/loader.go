package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/filmreel/internal/config"
	"github.com/roach88/filmreel/internal/cut"
	"github.com/roach88/filmreel/internal/frame"
	"github.com/roach88/filmreel/internal/logging"
	"github.com/roach88/filmreel/internal/reel"
	"github.com/roach88/filmreel/internal/store"
	"github.com/roach88/filmreel/internal/transport"
)

// Command error codes used in JSON output.
const (
	ErrCodeNotFound   = "E_NOT_FOUND"
	ErrCodeTestFailed = "E_TEST_FAILED"
)

// execFlags are shared by the commands that execute frames.
type execFlags struct {
	Database string
	Strict   bool
}

func (f *execFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Database, "db", "", "record runs in this SQLite take log (overrides config)")
	cmd.Flags().BoolVar(&f.Strict, "strict", false, "reject observed fields the response template omits (overrides config)")
}

// env is the per-invocation runtime: config, logger, senders and take log.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	sender  reel.Sender
	store   *store.Store
	closers []io.Closer
}

// loadEnv resolves config and flags into a runtime. The caller must Close it.
func loadEnv(opts *RootOptions, flags *execFlags, cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadOptional(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if flags != nil {
		if cmd.Flags().Changed("strict") {
			cfg.Strict = flags.Strict
		}
		if flags.Database != "" {
			cfg.DB = flags.Database
		}
	}

	logger, logCloser, err := logging.New(cmd.ErrOrStderr(), logging.Options{Verbose: opts.Verbose, File: opts.LogFile})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open log file", err)
	}
	e := &env{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	if err := e.openSenders(opts); err != nil {
		e.Close()
		return nil, err
	}

	if flags != nil && cfg.DB != "" {
		logger.Debug("opening take log", "path", cfg.DB)
		st, err := store.Open(cfg.DB)
		if err != nil {
			e.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		e.store = st
		e.closers = append(e.closers, st)
	}
	return e, nil
}

func (e *env) openSenders(opts *RootOptions) error {
	if opts.Sender != nil {
		e.sender = opts.Sender
		return nil
	}

	mux := transport.Mux{
		frame.HTTP: &transport.HTTP{
			BaseURL: e.cfg.HTTP.BaseURL,
			Headers: e.cfg.HTTP.Headers,
			Timeout: e.cfg.HTTP.Timeout,
			Logger:  e.logger,
		},
	}
	if addr := e.cfg.GRPC.Address; addr != "" {
		g, err := transport.DialGRPC(addr, transport.GRPCOptions{
			Timeout:   e.cfg.GRPC.Timeout,
			Plaintext: e.cfg.GRPC.Plaintext,
			Logger:    e.logger,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to dial gRPC server", err)
		}
		mux[frame.GRPC] = g
		e.closers = append(e.closers, g)
	}
	e.sender = mux
	return nil
}

func (e *env) runner(opts *RootOptions) *reel.Runner {
	r := &reel.Runner{
		Sender: e.sender,
		Logger: e.logger,
		Strict: e.cfg.Strict,
		IDs:    opts.IDs,
	}
	if e.store != nil {
		r.Store = e.store
	}
	return r
}

// Close releases everything in reverse order of acquisition.
func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	return errors.Join(errs...)
}

// loadReelPlan parses and assembles a virtual reel file. Sources resolve
// against the reel file's directory.
func loadReelPlan(path string) (*reel.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &reel.Error{Code: reel.ErrCodeFile, Index: -1, Err: &reel.FileError{Path: path, Err: err}}
	}
	vr, err := reel.ParseVirtualReel(path, data)
	if err != nil {
		return nil, &reel.Error{Code: reel.CodeOf(err), Index: -1, Err: err}
	}
	return reel.Assemble(vr, reel.DirLoader(filepath.Dir(path)))
}

// loadFrame reads one frame document.
func loadFrame(path string) (*frame.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &reel.FileError{Path: path, Err: err}
	}
	f, err := frame.Parse(path, data)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// loadRegister reads a cut register document; an empty path is an empty
// register.
func loadRegister(path string) (*cut.Register, error) {
	if path == "" {
		return cut.New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &reel.FileError{Path: path, Err: err}
	}
	reg, err := cut.Decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", path, err)
	}
	return reg, nil
}
