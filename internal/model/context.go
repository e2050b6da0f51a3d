// Package model holds the backend-independent program model: the class
// details registry, the annotation descriptor registry and the context
// that owns them together with the active backend and class loading.
package model

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/backend/reflective"
	"github.com/roach88/classmodel/internal/ir"
)

// Recognized context properties.
const (
	// PropertyBackend holds the backend.Backend to use. When absent the
	// reflective backend is used. The string "reflective" is accepted too.
	PropertyBackend = "classmodel.backend"

	// PropertyTrackImplementors enables the direct-implementors index.
	// It accepts a bool or a string such as "true". Default false.
	PropertyTrackImplementors = "classmodel.track-implementors"
)

// DescriptorBuilder produces the descriptor record registered for an
// annotation identity during priming.
type DescriptorBuilder func(name string) (ir.DescriptorRecord, error)

// Contributions collects descriptor registrations from contributors.
type Contributions struct {
	names    []string
	builders map[string]DescriptorBuilder
}

// Register adds a builder for annotation name. A later registration of
// the same name replaces the earlier one.
func (c *Contributions) Register(name string, build DescriptorBuilder) {
	if c.builders == nil {
		c.builders = make(map[string]DescriptorBuilder)
	}
	if _, ok := c.builders[name]; !ok {
		c.names = append(c.names, name)
	}
	c.builders[name] = build
}

// RegisterRecord adds a fixed descriptor record.
func (c *Contributions) RegisterRecord(rec ir.DescriptorRecord) {
	c.Register(rec.Name, func(string) (ir.DescriptorRecord, error) { return rec, nil })
}

// Contributor primes a context with well-known descriptors.
type Contributor interface {
	Contribute(c *Contributions) error
}

// ContributorFunc adapts a function to Contributor.
type ContributorFunc func(c *Contributions) error

// Contribute implements Contributor.
func (f ContributorFunc) Contribute(c *Contributions) error { return f(c) }

// Options configures a Context.
type Options struct {
	// Properties holds the recognized context properties.
	Properties map[string]any

	// Contributors run once during construction, before first use.
	Contributors []Contributor

	// Logger receives resolution events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Context owns one class registry, one descriptor registry, the active
// backend and the class-loading capability.
type Context struct {
	backend     backend.Backend
	loading     backend.ClassLoading
	log         *zap.Logger
	classes     *ClassRegistry
	descriptors *DescriptorRegistry
}

// NewContext builds a context bound to loading.
func NewContext(loading backend.ClassLoading, opts Options) (*Context, error) {
	return newContext(loading, opts, false)
}

func newContext(loading backend.ClassLoading, opts Options, track bool) (*Context, error) {
	if loading == nil {
		return nil, fmt.Errorf("class loading capability is required")
	}
	b, err := selectBackend(opts.Properties)
	if err != nil {
		return nil, err
	}
	optTrack, err := trackImplementors(opts.Properties)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ctx := &Context{backend: b, loading: loading, log: log}
	ctx.classes = newClassRegistry(ctx, track || optTrack)
	ctx.descriptors = newDescriptorRegistry(ctx)

	contributions := &Contributions{}
	for _, c := range opts.Contributors {
		if err := c.Contribute(contributions); err != nil {
			return nil, fmt.Errorf("contributor: %w", err)
		}
	}
	for _, name := range contributions.names {
		rec, err := contributions.builders[name](name)
		if err != nil {
			return nil, fmt.Errorf("contribute %s: %w", name, err)
		}
		if rec.Name == "" {
			rec.Name = name
		}
		if _, err := ctx.descriptors.RegisterDescriptor(rec); err != nil {
			return nil, fmt.Errorf("contribute %s: %w", name, err)
		}
	}

	log.Debug("context created",
		zap.String("backend", b.Name()),
		zap.Bool("track_implementors", ctx.classes.TracksImplementors()),
		zap.Int("contributed", len(contributions.names)),
	)
	return ctx, nil
}

func selectBackend(props map[string]any) (backend.Backend, error) {
	switch v := props[PropertyBackend].(type) {
	case nil:
		return reflective.New(), nil
	case backend.Backend:
		return v, nil
	case string:
		if v == "" || v == reflective.BackendName {
			return reflective.New(), nil
		}
		return nil, fmt.Errorf("%s: backend %q must be supplied as an instance", PropertyBackend, v)
	default:
		return nil, fmt.Errorf("%s: unsupported value %T", PropertyBackend, v)
	}
}

func trackImplementors(props map[string]any) (bool, error) {
	switch v := props[PropertyTrackImplementors].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%s: %w", PropertyTrackImplementors, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%s: unsupported value %T", PropertyTrackImplementors, v)
	}
}

// Classes returns the class details registry.
func (c *Context) Classes() *ClassRegistry { return c.classes }

// Descriptors returns the annotation descriptor registry.
func (c *Context) Descriptors() *DescriptorRegistry { return c.descriptors }

// Backend returns the active backend.
func (c *Context) Backend() backend.Backend { return c.backend }

// ClassLoading returns the bound class-loading capability.
func (c *Context) ClassLoading() backend.ClassLoading { return c.loading }

// Logger returns the context logger.
func (c *Context) Logger() *zap.Logger { return c.log }

// ResolveClass is shorthand for Classes().ResolveClass.
func (c *Context) ResolveClass(name string) (*ClassDetails, error) {
	return c.classes.ResolveClass(name)
}

func (c *Context) resolver(chain []string) *resolution {
	return &resolution{ctx: c, chain: chain}
}

// resolution is the backend.BuildContext handed to backends. It carries
// the names currently being built so re-entry fails instead of blocking.
type resolution struct {
	ctx   *Context
	chain []string
}

var _ backend.BuildContext = (*resolution)(nil)

func (r *resolution) ClassLoading() backend.ClassLoading { return r.ctx.loading }

func (r *resolution) Logger() *zap.Logger { return r.ctx.log }

func (r *resolution) ClassKind(name string) (ir.ClassKind, error) {
	if _, ok := r.ctx.descriptors.FindDescriptor(name); ok {
		return ir.AnnotationClass, nil
	}
	c, err := r.ctx.classes.resolve(name, r.chain)
	if err != nil {
		return "", err
	}
	return c.Kind(), nil
}

func (r *resolution) EnumConstants(name string) ([]string, error) {
	c, err := r.ctx.classes.resolve(name, r.chain)
	if err != nil {
		return nil, err
	}
	return c.rec.EnumConstants, nil
}

func (r *resolution) Descriptor(name string) (*ir.DescriptorRecord, error) {
	d, err := r.ctx.descriptors.resolve(name, r.chain)
	if err != nil {
		return nil, err
	}
	rec := d.Record()
	return &rec, nil
}
