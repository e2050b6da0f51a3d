package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/classmodel/internal/backend/index"
	"github.com/roach88/classmodel/internal/backend/pool"
	"github.com/roach88/classmodel/internal/config"
	"github.com/roach88/classmodel/internal/loader"
	"github.com/roach88/classmodel/internal/model"
	"github.com/roach88/classmodel/internal/modelerr"
	"github.com/roach88/classmodel/internal/store"
)

// Error code constants - unified across all CLI commands. Model failures
// report their modelerr code instead.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Configuration invalid or unreadable
	ErrCodeLoadFailed  = "E004" // CUE index load failed
	ErrCodeNotFound    = "E005" // Path or snapshot not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Snapshot store failure
	ErrCodeInvalid     = "E100" // Index validation problems
)

// Env is what one command runs against.
type Env struct {
	Config *config.Config
	Units  *loader.Units
	Log    *zap.Logger
}

// loadEnv reads the configuration, applies flag overrides and prepares
// the class loading and logger.
func loadEnv(opts *RootOptions, errW io.Writer) (*Env, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.Index != "" {
		cfg.Index.Dir = opts.Index
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	units := opts.units
	if units == nil {
		units = loader.New(nil)
	}
	if cfg.Pool.Resources != "" {
		units = units.WithResources(os.DirFS(cfg.Pool.Resources))
	}
	return &Env{Config: cfg, Units: units, Log: newLogger(opts.Verbose, errW)}, nil
}

// newLogger writes to w: development console output at debug level when
// verbose, production JSON limited to warnings otherwise.
func newLogger(verbose bool, w io.Writer) *zap.Logger {
	if w == nil {
		return zap.NewNop()
	}
	if verbose {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel))
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.WarnLevel))
}

// NewContext creates a model context on the configured backend.
func (e *Env) NewContext() (*model.Context, error) {
	opts, err := e.Config.Options(e.Log)
	if err != nil {
		return nil, err
	}
	return model.NewContext(e.Units, opts)
}

// Restore rebuilds a context from form; later lookups of names absent
// from the form go to the configured backend.
func (e *Env) Restore(form *model.StorableForm) (*model.Context, error) {
	opts, err := e.Config.Options(e.Log)
	if err != nil {
		return nil, err
	}
	return model.FromStorableForm(form, e.Units, opts)
}

// ClassNames returns names when given, otherwise every class the backend
// of ctx can enumerate: the index entries, the unit files under the pool
// resources, or the registered program units.
func (e *Env) ClassNames(ctx *model.Context, names []string) ([]string, error) {
	if len(names) > 0 {
		return names, nil
	}
	if ib, ok := ctx.Backend().(*index.Backend); ok {
		return ib.Index().Names(), nil
	}
	if ctx.Backend().Name() == pool.BackendName && e.Config.Pool.Resources != "" {
		return unitNames(os.DirFS(e.Config.Pool.Resources))
	}
	return e.Units.Names(), nil
}

// unitNames lists the classes with a unit document in fsys.
func unitNames(fsys fs.FS) ([]string, error) {
	var names []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, pool.Ext) {
			names = append(names, strings.ReplaceAll(strings.TrimSuffix(path, pool.Ext), "/", "."))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan unit resources: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// ResolveAll resolves names in order, stopping at the first failure.
func ResolveAll(ctx *model.Context, names []string) ([]*model.ClassDetails, error) {
	out := make([]*model.ClassDetails, 0, len(names))
	for _, name := range names {
		cd, err := ctx.ResolveClass(name)
		if err != nil {
			return nil, err
		}
		out = append(out, cd)
	}
	return out, nil
}

// errorCode picks the reported code for err.
func errorCode(err error) string {
	var me *modelerr.Error
	if errors.As(err, &me) {
		return string(me.Code)
	}
	var ce *index.CompileError
	if errors.As(err, &ce) {
		return ErrCodeLoadFailed
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}
