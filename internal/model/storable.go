package model

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/ir"
)

// StorableForm is a backend-independent snapshot of a context. Classes
// and descriptors reference each other by name only.
type StorableForm struct {
	FormatVersion     string                `json:"format_version"`
	ModelVersion      string                `json:"model_version"`
	TrackImplementors bool                  `json:"track_implementors,omitempty"`
	Classes           []ir.ClassRecord      `json:"classes"`
	Descriptors       []ir.DescriptorRecord `json:"descriptors"`
}

// ClassNames lists the class names in the form, in resolution order.
func (f *StorableForm) ClassNames() []string {
	out := make([]string, len(f.Classes))
	for i, c := range f.Classes {
		out[i] = c.Name
	}
	return out
}

// Fingerprint returns the content hash of the form. Classes are hashed
// in name order, so equal models fingerprint alike whatever order their
// classes were resolved in.
func (f *StorableForm) Fingerprint() (string, error) {
	canon := *f
	canon.Classes = append([]ir.ClassRecord(nil), f.Classes...)
	sort.Slice(canon.Classes, func(i, j int) bool { return canon.Classes[i].Name < canon.Classes[j].Name })
	canon.Descriptors = append([]ir.DescriptorRecord(nil), f.Descriptors...)
	sort.Slice(canon.Descriptors, func(i, j int) bool { return canon.Descriptors[i].Name < canon.Descriptors[j].Name })
	return ir.Fingerprint(ir.DomainSnapshot, &canon)
}

// ToStorableForm captures every resolved class, with the current usages
// of its members, and every known descriptor.
func (c *Context) ToStorableForm() *StorableForm {
	form := &StorableForm{
		FormatVersion:     ir.FormatVersion,
		ModelVersion:      ir.ModelVersion,
		TrackImplementors: c.classes.TracksImplementors(),
		Classes:           []ir.ClassRecord{},
		Descriptors:       []ir.DescriptorRecord{},
	}
	for _, cd := range c.classes.Classes() {
		form.Classes = append(form.Classes, cd.Record())
	}
	for _, d := range c.descriptors.Descriptors() {
		form.Descriptors = append(form.Descriptors, d.Record())
	}
	return form
}

// FromStorableForm rebuilds a context from form, bound to loading. No
// backend is consulted; names absent from the form resolve later through
// the backend selected by opts.
func FromStorableForm(form *StorableForm, loading backend.ClassLoading, opts Options) (*Context, error) {
	if form == nil {
		return nil, fmt.Errorf("nil storable form")
	}
	if form.FormatVersion != ir.FormatVersion {
		return nil, fmt.Errorf("unsupported storable form version %q", form.FormatVersion)
	}
	ctx, err := newContext(loading, opts, form.TrackImplementors)
	if err != nil {
		return nil, err
	}

	for _, rec := range form.Descriptors {
		if _, err := ctx.descriptors.RegisterDescriptor(rec); err != nil {
			return nil, fmt.Errorf("restore descriptor %s: %w", rec.Name, err)
		}
	}
	for i := range form.Classes {
		rec := form.Classes[i]
		cd, err := ctx.classes.materialize(&rec, ctx.resolver([]string{rec.Name}))
		if err != nil {
			return nil, fmt.Errorf("restore class %s: %w", rec.Name, err)
		}
		ctx.classes.publish(cd)
	}

	ctx.log.Debug("context restored",
		zap.Int("classes", len(form.Classes)),
		zap.Int("descriptors", len(form.Descriptors)),
	)
	return ctx, nil
}
