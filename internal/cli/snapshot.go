package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/classmodel/internal/model"
	"github.com/roach88/classmodel/internal/render"
	"github.com/roach88/classmodel/internal/snapshot"
	"github.com/roach88/classmodel/internal/store"
)

// SnapshotOptions holds flags shared by the snapshot commands.
type SnapshotOptions struct {
	*RootOptions
	Database string // overrides store.path
}

// SnapshotSaveResult reports a saved snapshot.
type SnapshotSaveResult struct {
	Snapshot *store.Snapshot `json:"snapshot,omitempty"`
	Inserted bool            `json:"inserted"`
	File     string          `json:"file,omitempty"`
	Classes  []string        `json:"classes"`
}

// SnapshotRestoreResult reports a restored snapshot.
type SnapshotRestoreResult struct {
	Fingerprint string   `json:"fingerprint"`
	Classes     []string `json:"classes"`
	Descriptors int      `json:"descriptors"`
}

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save, restore and list model snapshots",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot store (default from config)")

	cmd.AddCommand(newSnapshotSaveCommand(opts))
	cmd.AddCommand(newSnapshotRestoreCommand(opts))
	cmd.AddCommand(newSnapshotListCommand(opts))
	cmd.AddCommand(newSnapshotDeleteCommand(opts))
	return cmd
}

func (o *SnapshotOptions) openStore(env *Env) (*store.Store, error) {
	path := o.Database
	if path == "" {
		path = env.Config.Store.Path
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return store.Open(path, store.WithLogger(env.Log))
}

func newSnapshotSaveCommand(opts *SnapshotOptions) *cobra.Command {
	var label, file string

	cmd := &cobra.Command{
		Use:   "save [class...]",
		Short: "Resolve classes and store the model",
		Long: `Resolve classes through the configured backend and save the resulting
model. Saving a model whose content is already stored returns the
existing snapshot.

With --file the snapshot is written as JSON instead; a .gz suffix
compresses it.

Examples:
  classmodel snapshot save --label nightly
  classmodel snapshot save --file model.json.gz demo.Person`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotSave(opts, label, file, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "label recorded with the snapshot")
	cmd.Flags().StringVarP(&file, "file", "f", "", "write to a snapshot file instead of the store")

	return cmd
}

func runSnapshotSave(opts *SnapshotOptions, label, file string, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	env, err := loadEnv(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	mctx, err := env.NewContext()
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), "failed to create context", err)
	}
	names, err := env.ClassNames(mctx, args)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), "failed to list classes", err)
	}
	if _, err := ResolveAll(mctx, names); err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), "failed to resolve classes", err)
	}
	form := mctx.ToStorableForm()
	result := SnapshotSaveResult{Classes: form.ClassNames()}

	if file != "" {
		compress := strings.HasSuffix(file, ".gz")
		if err := snapshot.WriteFile(file, form, snapshot.Options{Compress: compress, Indent: !compress}); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write snapshot", err)
		}
		result.File = file
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ Wrote %d class(es) to %s\n", len(form.Classes), file)
		return nil
	}

	st, err := opts.openStore(env)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
	}
	defer st.Close()

	snap, inserted, err := st.Save(cmd.Context(), label, form)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to save snapshot", err)
	}
	result.Snapshot = &snap
	result.Inserted = inserted

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if inserted {
		fmt.Fprintf(formatter.Writer, "✓ Saved snapshot %s (%d class(es))\n", snap.ID, snap.Classes)
	} else {
		fmt.Fprintf(formatter.Writer, "✓ Unchanged: already stored as snapshot %s\n", snap.ID)
	}
	fmt.Fprintf(formatter.Writer, "  fingerprint: %s\n", snap.Fingerprint)
	return nil
}

func newSnapshotRestoreCommand(opts *SnapshotOptions) *cobra.Command {
	var fromFile, defaults bool

	cmd := &cobra.Command{
		Use:   "restore <id|fingerprint|file>",
		Short: "Rebuild a model from a snapshot and describe it",
		Long: `Rebuild a model from a stored snapshot, or from a snapshot file with
--file, without consulting any backend, and print every restored class.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotRestore(opts, args[0], fromFile, defaults, cmd)
		},
	}

	cmd.Flags().BoolVar(&fromFile, "file", false, "treat the argument as a snapshot file path")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "show attributes that take their default value")

	return cmd
}

func runSnapshotRestore(opts *SnapshotOptions, ref string, fromFile, defaults bool, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	env, err := loadEnv(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	var form *model.StorableForm
	if fromFile {
		form, err = snapshot.ReadFile(ref)
		if err != nil {
			return formatter.Fail(ExitCommandError, errorCode(err), "failed to read snapshot", err)
		}
	} else {
		st, err := opts.openStore(env)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
		}
		defer st.Close()
		form, _, err = st.Load(cmd.Context(), ref)
		if err != nil {
			return formatter.Fail(ExitCommandError, errorCode(err), "failed to load snapshot", err)
		}
	}

	mctx, err := env.Restore(form)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), "failed to restore snapshot", err)
	}
	classes := mctx.Classes().Classes()
	formatter.VerboseLog("Restored %d class(es)", len(classes))

	if formatter.Format == "json" {
		fp, err := form.Fingerprint()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to fingerprint model", err)
		}
		return formatter.Success(SnapshotRestoreResult{
			Fingerprint: fp,
			Classes:     form.ClassNames(),
			Descriptors: len(mctx.Descriptors().Descriptors()),
		})
	}
	return render.Classes(formatter.Writer, classes, render.Options{Defaults: defaults})
}

func newSnapshotListCommand(opts *SnapshotOptions) *cobra.Command {
	var class string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored snapshots",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotList(opts, class, cmd)
		},
	}

	cmd.Flags().StringVar(&class, "class", "", "only snapshots containing this class")

	return cmd
}

func runSnapshotList(opts *SnapshotOptions, class string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	env, err := loadEnv(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	st, err := opts.openStore(env)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
	}
	defer st.Close()

	var snaps []store.Snapshot
	if class != "" {
		snaps, err = st.WithClass(cmd.Context(), class)
	} else {
		snaps, err = st.List(cmd.Context())
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list snapshots", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(snaps)
	}
	if len(snaps) == 0 {
		fmt.Fprintln(formatter.Writer, "No snapshots found.")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tCLASSES\tCREATED\tFINGERPRINT")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Label, s.Classes, s.CreatedAt.Format("2006-01-02 15:04:05"), shortFingerprint(s.Fingerprint))
	}
	return tw.Flush()
}

func newSnapshotDeleteCommand(opts *SnapshotOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a stored snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
			env, err := loadEnv(opts.RootOptions, cmd.ErrOrStderr())
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
			}
			st, err := opts.openStore(env)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
			}
			defer st.Close()
			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return formatter.Fail(ExitCommandError, errorCode(err), "failed to delete snapshot", err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(formatter.Writer, "✓ Deleted snapshot %s\n", args[0])
			return nil
		},
	}
}

func shortFingerprint(fp string) string {
	if i := strings.IndexByte(fp, ':'); i >= 0 {
		fp = fp[i+1:]
	}
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
