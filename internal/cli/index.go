package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/classmodel/internal/backend/index"
	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/model"
	"github.com/roach88/classmodel/internal/modelerr"
	"github.com/roach88/classmodel/internal/shape"
)

// IndexBuildOptions holds flags for the index build command.
type IndexBuildOptions struct {
	*RootOptions
	Output  string // output file path
	Package string // CUE package clause of the output
	Closure bool   // also export classes named by member types
}

// IndexBuildResult summarizes a built index.
type IndexBuildResult struct {
	Classes []string `json:"classes"`
	Output  string   `json:"output,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// IndexValidateResult holds validation results.
type IndexValidateResult struct {
	Valid   bool                    `json:"valid"`
	Classes int                     `json:"classes"`
	Errors  []index.ValidationError `json:"errors,omitempty"`
}

// NewIndexCommand creates the index command group.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and validate offline CUE indexes",
	}
	cmd.AddCommand(newIndexBuildCommand(rootOpts))
	cmd.AddCommand(newIndexValidateCommand(rootOpts))
	return cmd
}

func newIndexBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexBuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build [class...]",
		Short: "Export resolved classes as a CUE index",
		Long: `Resolve classes through the configured backend and write them as an
offline index document that the index backend can load.

Examples:
  classmodel index build -o index/classes.cue
  classmodel index build --backend pool demo.Person demo.Base
  classmodel index build --closure demo.Person`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexBuild(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (default stdout)")
	cmd.Flags().StringVar(&opts.Package, "package", "classes", "CUE package name of the output")
	cmd.Flags().BoolVar(&opts.Closure, "closure", false, "also export classes referenced by member types")

	return cmd
}

func runIndexBuild(opts *IndexBuildOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	env, err := loadEnv(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	ctx, err := env.NewContext()
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), "failed to create context", err)
	}
	names, err := env.ClassNames(ctx, args)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), "failed to list classes", err)
	}
	classes, err := ResolveAll(ctx, names)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), "failed to resolve classes", err)
	}

	if opts.Closure {
		if err := resolveReferenced(ctx); err != nil {
			return formatter.Fail(ExitCommandError, errorCode(err), "failed to resolve referenced classes", err)
		}
	}

	// Export every resolved class, including supertypes and annotation
	// types pulled in along the way, so the index is self-contained.
	var recs []ir.ClassRecord
	for _, cd := range ctx.Classes().Classes() {
		recs = append(recs, cd.Record())
	}
	body, err := index.Export(recs)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to export index", err)
	}
	src := body
	if opts.Package != "" {
		src = append([]byte(fmt.Sprintf("package %s\n\n", opts.Package)), body...)
	}

	result := IndexBuildResult{Classes: make([]string, len(recs))}
	for i, rec := range recs {
		result.Classes[i] = rec.Name
	}
	formatter.VerboseLog("Exported %d class(es) for %d requested", len(recs), len(classes))

	if opts.Output == "" {
		if formatter.Format == "json" {
			result.Source = string(src)
			return formatter.Success(result)
		}
		_, err := formatter.Writer.Write(src)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
	}
	if err := os.WriteFile(opts.Output, src, 0o644); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
	}
	result.Output = opts.Output
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Exported %d class(es) to %s\n", len(recs), opts.Output)
	return nil
}

// resolveReferenced resolves the classes named by member types until no
// new class appears. Names the backend does not know, such as map, are
// skipped.
func resolveReferenced(ctx *model.Context) error {
	unknown := map[string]bool{}
	for {
		added := false
		for _, cd := range ctx.Classes().Classes() {
			for _, name := range memberTypeNames(cd) {
				if unknown[name] {
					continue
				}
				if _, ok := ctx.Classes().FindClass(name); ok {
					continue
				}
				_, err := ctx.ResolveClass(name)
				switch {
				case errors.Is(err, modelerr.ErrUnknownClass):
					unknown[name] = true
				case err != nil:
					return err
				default:
					added = true
				}
			}
		}
		if !added {
			return nil
		}
	}
}

func memberTypeNames(cd *model.ClassDetails) []string {
	var names []string
	add := func(t *ir.TypeRef) { names = append(names, shape.ReferencedClasses(t)...) }
	for _, f := range cd.Fields() {
		add(f.Type())
	}
	for _, rc := range cd.RecordComponents() {
		add(rc.Type())
	}
	for _, m := range cd.Methods() {
		add(m.ReturnType())
		for _, p := range m.Parameters() {
			add(p)
		}
	}
	return names
}

func newIndexValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <index-dir>",
		Short: "Check an offline index without resolving it",
		Long: `Load a CUE index directory and report structural problems: unknown
kinds, unparsable types, duplicate members, misplaced defaults, enum
constants or record components, and supertype cycles.

Exit codes:
  0 - Index is valid
  1 - Validation problems found
  2 - Command error (directory missing, CUE does not compile, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexValidate(rootOpts, args[0], cmd)
		},
	}
}

func runIndexValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	ix, err := index.Load(dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), "failed to load index", err)
	}
	formatter.VerboseLog("Loaded %d class(es) from %s", len(ix.Names()), dir)

	problems := ix.Validate()
	result := IndexValidateResult{Valid: len(problems) == 0, Classes: len(ix.Names()), Errors: problems}

	if len(problems) > 0 {
		if formatter.Format == "json" {
			if err := formatter.Error(ErrCodeInvalid, "index validation failed", result); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %d problem(s) in %s\n", len(problems), dir)
			for _, p := range problems {
				fmt.Fprintf(formatter.Writer, "  %s\n", p.Error())
			}
		}
		return NewExitError(ExitFailure, "index validation failed")
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Index valid: %d class(es)\n", result.Classes)
	return nil
}
