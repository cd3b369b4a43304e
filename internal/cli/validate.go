package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/filmreel/internal/cut"
	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/frame"
	"github.com/roach88/filmreel/internal/reel"
	"github.com/roach88/filmreel/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Kind string // force a document kind instead of detecting it
}

// FileValidation is the outcome for one document.
type FileValidation struct {
	Path  string `json:"path"`
	Kind  string `json:"kind,omitempty"`
	Valid bool   `json:"valid"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate frame, reel and cut register documents",
		Long: `Validate documents against the frame, reel and register schemas.

The kind of each document is detected from its content: objects with a
protocol are frames, objects with frames are reels, anything else is a cut
register. Use --kind to force one. Nothing is executed and referenced
sources are not loaded.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "document kind (frame|reel|register); detected when empty")
	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var forced schema.Kind
	switch opts.Kind {
	case "":
	case string(schema.KindFrame), string(schema.KindReel), string(schema.KindRegister):
		forced = schema.Kind(opts.Kind)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be frame, reel or register", opts.Kind))
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	for _, path := range paths {
		fv := validateFile(path, forced)
		formatter.VerboseLog("validated %s (%s): valid=%t", path, fv.Kind, fv.Valid)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if formatter.IsJSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		first := firstInvalid(result)
		if err := formatter.Failure(result, first.Code, first.Error); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d file(s)", countInvalid(result)))
	}

	w := cmd.OutOrStdout()
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(w, "✓ %s (%s)\n", fv.Path, fv.Kind)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", fv.Path)
		fmt.Fprintf(w, "  %s: %s\n", fv.Code, fv.Error)
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d file(s)", countInvalid(result)))
	}
	return nil
}

// validateFile decodes one document and runs the typed decoder for its kind,
// which includes schema validation.
func validateFile(path string, forced schema.Kind) FileValidation {
	fv := FileValidation{Path: path}
	fail := func(code reel.ErrorCode, err error) FileValidation {
		fv.Code = string(code)
		fv.Error = err.Error()
		return fv
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(reel.ErrCodeFile, err)
	}
	v, err := doc.DecodeFile(path, data)
	if err != nil {
		return fail(reel.ErrCodeParse, err)
	}

	kind := forced
	if kind == "" {
		kind = schema.Detect(v)
	}
	fv.Kind = string(kind)

	switch kind {
	case schema.KindFrame:
		_, err = frame.FromDocument(v)
	case schema.KindReel:
		_, err = reel.VirtualReelFromDocument(v)
	default:
		_, err = cut.FromDocument(v)
	}
	if err != nil {
		var pe *doc.ParseError
		if errors.As(err, &pe) && pe.Source == "" {
			pe.Source = path
		}
		return fail(reel.ErrCodeParse, err)
	}
	fv.Valid = true
	return fv
}

func firstInvalid(r ValidationResult) FileValidation {
	for _, fv := range r.Files {
		if !fv.Valid {
			return fv
		}
	}
	return FileValidation{}
}

func countInvalid(r ValidationResult) int {
	n := 0
	for _, fv := range r.Files {
		if !fv.Valid {
			n++
		}
	}
	return n
}
