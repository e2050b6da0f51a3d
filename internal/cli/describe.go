package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/render"
)

// DescribeOptions holds flags for the describe command.
type DescribeOptions struct {
	*RootOptions
	Defaults bool
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DescribeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "describe [class...]",
		Short: "Resolve classes and print their descriptions",
		Long: `Resolve classes through the configured backend and print their kind,
supertypes, members and annotation usages.

With no class names every class the backend can enumerate is described.

Examples:
  classmodel describe demo.Person
  classmodel describe --backend pool --defaults demo.Point
  classmodel describe --backend index --index ./index --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Defaults, "defaults", false, "show attributes that take their default value")

	return cmd
}

func runDescribe(opts *DescribeOptions, args []string, cmd *cobra.Command) error {
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
	formatter.VerboseLog("Describing %d class(es) with the %s backend", len(names), ctx.Backend().Name())

	classes, err := ResolveAll(ctx, names)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), "failed to resolve classes", err)
	}

	if formatter.Format == "json" {
		recs := make([]ir.ClassRecord, len(classes))
		for i, cd := range classes {
			recs[i] = cd.Record()
		}
		return formatter.Success(recs)
	}
	return render.Classes(formatter.Writer, classes, render.Options{Defaults: opts.Defaults})
}
