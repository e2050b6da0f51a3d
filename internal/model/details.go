package model

import (
	"errors"
	"reflect"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/modelerr"
)

// TargetKind distinguishes annotation targets.
type TargetKind string

const (
	TargetClass           TargetKind = "class"
	TargetField           TargetKind = "field"
	TargetMethod          TargetKind = "method"
	TargetRecordComponent TargetKind = "record_component"
)

// AnnotationTarget is anything annotations can be attached to.
type AnnotationTarget interface {
	// TargetName identifies the target: "demo.Person" or "demo.Person#id".
	TargetName() string

	// TargetKind reports which kind of element the target is.
	TargetKind() TargetKind

	// DirectAnnotationUsages lists the usages declared on the target itself.
	DirectAnnotationUsages() []*AnnotationUsage

	// DirectAnnotationUsage returns the direct usage of annotation name.
	DirectAnnotationUsage(name string) (*AnnotationUsage, bool)

	// HasDirectAnnotationUsage reports whether annotation name is present.
	HasDirectAnnotationUsage(name string) bool
}

// AsClass narrows t to a class.
func AsClass(t AnnotationTarget) (*ClassDetails, error) {
	if c, ok := t.(*ClassDetails); ok {
		return c, nil
	}
	return nil, modelerr.IllegalCast(targetName(t), "class")
}

// AsField narrows t to a field.
func AsField(t AnnotationTarget) (*FieldDetails, error) {
	if f, ok := t.(*FieldDetails); ok {
		return f, nil
	}
	return nil, modelerr.IllegalCast(targetName(t), "field")
}

// AsMethod narrows t to a method.
func AsMethod(t AnnotationTarget) (*MethodDetails, error) {
	if m, ok := t.(*MethodDetails); ok {
		return m, nil
	}
	return nil, modelerr.IllegalCast(targetName(t), "method")
}

// AsRecordComponent narrows t to a record component.
func AsRecordComponent(t AnnotationTarget) (*RecordComponentDetails, error) {
	if r, ok := t.(*RecordComponentDetails); ok {
		return r, nil
	}
	return nil, modelerr.IllegalCast(targetName(t), "record component")
}

func targetName(t AnnotationTarget) string {
	if t == nil {
		return "<nil>"
	}
	return t.TargetName()
}

// ClassDetails is the resolved description of one class. Only the class
// registry creates them; structure is immutable once published.
type ClassDetails struct {
	ctx *Context
	rec *ir.ClassRecord

	fields     []*FieldDetails
	methods    []*MethodDetails
	components []*RecordComponentDetails
	usages     usageCell
}

// Name returns the fully-qualified class name.
func (c *ClassDetails) Name() string { return c.rec.Name }

// Kind returns the class kind.
func (c *ClassDetails) Kind() ir.ClassKind { return c.rec.Kind }

// Visibility returns the class visibility.
func (c *ClassDetails) Visibility() ir.Visibility { return c.rec.Visibility }

// Modifiers returns the class modifiers.
func (c *ClassDetails) Modifiers() []ir.Modifier {
	return append([]ir.Modifier(nil), c.rec.Modifiers...)
}

// IsDynamic reports whether the class has no backing program unit.
func (c *ClassDetails) IsDynamic() bool { return c.rec.Dynamic }

// Super returns the supertype reference, or nil.
func (c *ClassDetails) Super() *ir.TypeRef { return c.rec.Super }

// Interfaces returns the implemented interface references in order.
func (c *ClassDetails) Interfaces() []*ir.TypeRef {
	return append([]*ir.TypeRef(nil), c.rec.Interfaces...)
}

// TypeParameters returns the declared type variables.
func (c *ClassDetails) TypeParameters() []*ir.TypeRef {
	return append([]*ir.TypeRef(nil), c.rec.TypeParameters...)
}

// EnumConstants returns the constants of an enum class.
func (c *ClassDetails) EnumConstants() []string {
	return append([]string(nil), c.rec.EnumConstants...)
}

// Fields returns the fields in declaration order.
func (c *ClassDetails) Fields() []*FieldDetails {
	return append([]*FieldDetails(nil), c.fields...)
}

// Methods returns the methods in declaration order.
func (c *ClassDetails) Methods() []*MethodDetails {
	return append([]*MethodDetails(nil), c.methods...)
}

// RecordComponents returns the record components of a record class.
func (c *ClassDetails) RecordComponents() []*RecordComponentDetails {
	return append([]*RecordComponentDetails(nil), c.components...)
}

// Field returns the field called name.
func (c *ClassDetails) Field(name string) (*FieldDetails, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Method returns the first method called name.
func (c *ClassDetails) Method(name string) (*MethodDetails, bool) {
	for _, m := range c.methods {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// RecordComponent returns the record component called name.
func (c *ClassDetails) RecordComponent(name string) (*RecordComponentDetails, bool) {
	for _, r := range c.components {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// TargetName implements AnnotationTarget.
func (c *ClassDetails) TargetName() string { return c.rec.Name }

// TargetKind implements AnnotationTarget.
func (c *ClassDetails) TargetKind() TargetKind { return TargetClass }

// DirectAnnotationUsages implements AnnotationTarget.
func (c *ClassDetails) DirectAnnotationUsages() []*AnnotationUsage { return c.usages.list() }

// DirectAnnotationUsage implements AnnotationTarget.
func (c *ClassDetails) DirectAnnotationUsage(name string) (*AnnotationUsage, bool) {
	return c.usages.get(name)
}

// HasDirectAnnotationUsage implements AnnotationTarget.
func (c *ClassDetails) HasDirectAnnotationUsage(name string) bool {
	_, ok := c.usages.get(name)
	return ok
}

// SuperClass resolves the supertype, or returns nil when there is none.
func (c *ClassDetails) SuperClass() (*ClassDetails, error) {
	if c.rec.Super == nil || c.rec.Super.Name == "" {
		return nil, nil
	}
	return c.ctx.classes.ResolveClass(c.rec.Super.Name)
}

// AnnotationUsage returns the usage of annotation name on the class,
// following superclasses when the annotation is inherited. It returns nil
// when the annotation is absent.
func (c *ClassDetails) AnnotationUsage(name string) (*AnnotationUsage, error) {
	if u, ok := c.usages.get(name); ok {
		return u, nil
	}
	d, err := c.ctx.descriptors.ResolveDescriptor(name)
	if err != nil {
		return nil, err
	}
	if !d.IsInherited() {
		return nil, nil
	}
	seen := map[string]bool{c.Name(): true}
	for cur := c; ; {
		sup, err := cur.SuperClass()
		if err != nil || sup == nil {
			return nil, err
		}
		if seen[sup.Name()] {
			return nil, modelerr.Cycle(sup.Name(), []string{c.Name()})
		}
		seen[sup.Name()] = true
		if u, ok := sup.usages.get(name); ok {
			return u, nil
		}
		cur = sup
	}
}

// MetaAnnotatedUsages lists the direct usages whose annotation type
// carries meta, directly or transitively.
func (c *ClassDetails) MetaAnnotatedUsages(meta string) ([]*AnnotationUsage, error) {
	return metaAnnotated(c.ctx.descriptors, c.usages.list(), meta)
}

func metaAnnotated(reg *DescriptorRegistry, usages []*AnnotationUsage, meta string) ([]*AnnotationUsage, error) {
	var out []*AnnotationUsage
	for _, u := range usages {
		closure, err := reg.MetaAnnotationClosure(u.Name())
		if err != nil {
			return nil, err
		}
		for _, n := range closure {
			if n == meta {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

// LoadType resolves the backing program unit through the context's
// class-loading capability.
func (c *ClassDetails) LoadType() (reflect.Type, error) {
	if c.rec.Dynamic {
		return nil, modelerr.DynamicClass(c.Name())
	}
	t, err := c.ctx.loading.ClassForName(c.Name())
	if err != nil {
		if errors.Is(err, backend.ErrClassNotFound) {
			return nil, modelerr.UnknownClass(c.Name(), err)
		}
		return nil, modelerr.BackendIO(c.Name(), err)
	}
	return t, nil
}

// Record returns the storable record of the class, including the current
// usages of its members.
func (c *ClassDetails) Record() ir.ClassRecord {
	rec := *c.rec
	rec.Annotations = c.usages.records()
	rec.Fields = memberRecords(c.fields)
	rec.Methods = memberRecords(c.methods)
	rec.RecordComponents = memberRecords(c.components)
	return rec
}

type recorder interface{ record() ir.MemberRecord }

func memberRecords[M recorder](members []M) []ir.MemberRecord {
	if len(members) == 0 {
		return nil
	}
	out := make([]ir.MemberRecord, len(members))
	for i, m := range members {
		out[i] = m.record()
	}
	return out
}

// member holds what fields, methods and record components share. The
// usage cell is the only mutable part.
type member struct {
	owner  *ClassDetails
	rec    ir.MemberRecord
	usages usageCell
}

func (m *member) Name() string                   { return m.rec.Name }
func (m *member) Type() *ir.TypeRef              { return m.rec.Type }
func (m *member) Visibility() ir.Visibility      { return m.rec.Visibility }
func (m *member) HasModifier(x ir.Modifier) bool { return m.rec.HasModifier(x) }

func (m *member) Modifiers() []ir.Modifier {
	return append([]ir.Modifier(nil), m.rec.Modifiers...)
}

// DeclaringClass returns the owning class.
func (m *member) DeclaringClass() *ClassDetails { return m.owner }

// TargetName implements AnnotationTarget.
func (m *member) TargetName() string { return m.owner.Name() + "#" + m.rec.Name }

// DirectAnnotationUsages implements AnnotationTarget.
func (m *member) DirectAnnotationUsages() []*AnnotationUsage { return m.usages.list() }

// DirectAnnotationUsage implements AnnotationTarget.
func (m *member) DirectAnnotationUsage(name string) (*AnnotationUsage, bool) {
	return m.usages.get(name)
}

// HasDirectAnnotationUsage implements AnnotationTarget.
func (m *member) HasDirectAnnotationUsage(name string) bool {
	_, ok := m.usages.get(name)
	return ok
}

func (m *member) record() ir.MemberRecord {
	rec := m.rec
	rec.Annotations = m.usages.records()
	return rec
}

// addUsage attaches u to self, replacing any usage of the same
// annotation. Repeatable annotations must go through their container.
func (m *member) addUsage(self AnnotationTarget, u *AnnotationUsage) error {
	if u == nil {
		return errors.New("nil annotation usage")
	}
	if d := u.Descriptor(); d.IsRepeatable() {
		return modelerr.RepeatableMisuse(d.Name(), self.TargetName(), d.Container())
	}
	m.usages.put(u.bind(self))
	return nil
}

// replaceUsages swaps the whole usage set of self. Nothing changes when
// any usage is rejected.
func (m *member) replaceUsages(self AnnotationTarget, us []*AnnotationUsage) error {
	for _, u := range us {
		if u == nil {
			return errors.New("nil annotation usage")
		}
		if d := u.Descriptor(); d.IsRepeatable() {
			return modelerr.RepeatableMisuse(d.Name(), self.TargetName(), d.Container())
		}
	}
	m.usages.reset()
	for _, u := range us {
		m.usages.put(u.bind(self))
	}
	return nil
}

// FieldDetails describes one field.
type FieldDetails struct{ member }

// TargetKind implements AnnotationTarget.
func (f *FieldDetails) TargetKind() TargetKind { return TargetField }

// AddAnnotationUsage attaches u, replacing a previous usage of the same
// annotation. Usages of repeatable annotations fail with
// repeatable-misuse; attach their container instead.
func (f *FieldDetails) AddAnnotationUsage(u *AnnotationUsage) error { return f.addUsage(f, u) }

// RemoveAnnotationUsage detaches annotation name. Removing an absent
// usage is a no-op.
func (f *FieldDetails) RemoveAnnotationUsage(name string) { f.usages.remove(name) }

// ReplaceAnnotationUsages swaps every direct usage for us.
func (f *FieldDetails) ReplaceAnnotationUsages(us ...*AnnotationUsage) error {
	return f.replaceUsages(f, us)
}

// MethodDetails describes one method.
type MethodDetails struct{ member }

// TargetKind implements AnnotationTarget.
func (m *MethodDetails) TargetKind() TargetKind { return TargetMethod }

// ReturnType returns the return type; void for no results.
func (m *MethodDetails) ReturnType() *ir.TypeRef { return m.rec.Type }

// Parameters returns the parameter types.
func (m *MethodDetails) Parameters() []*ir.TypeRef {
	return append([]*ir.TypeRef(nil), m.rec.Parameters...)
}

// Default returns the default of an annotation attribute method.
func (m *MethodDetails) Default() ir.Value { return m.rec.Default }

// AddAnnotationUsage attaches u; see FieldDetails.AddAnnotationUsage.
func (m *MethodDetails) AddAnnotationUsage(u *AnnotationUsage) error {
	return m.addUsage(m, u)
}

// RemoveAnnotationUsage detaches annotation name; absent is a no-op.
func (m *MethodDetails) RemoveAnnotationUsage(name string) { m.usages.remove(name) }

// ReplaceAnnotationUsages swaps every direct usage for us.
func (m *MethodDetails) ReplaceAnnotationUsages(us ...*AnnotationUsage) error {
	return m.replaceUsages(m, us)
}

// RecordComponentDetails describes one record component.
type RecordComponentDetails struct{ member }

// TargetKind implements AnnotationTarget.
func (r *RecordComponentDetails) TargetKind() TargetKind { return TargetRecordComponent }

// AddAnnotationUsage attaches u; see FieldDetails.AddAnnotationUsage.
func (r *RecordComponentDetails) AddAnnotationUsage(u *AnnotationUsage) error {
	return r.addUsage(r, u)
}

// RemoveAnnotationUsage detaches annotation name; absent is a no-op.
func (r *RecordComponentDetails) RemoveAnnotationUsage(name string) { r.usages.remove(name) }

// ReplaceAnnotationUsages swaps every direct usage for us.
func (r *RecordComponentDetails) ReplaceAnnotationUsages(us ...*AnnotationUsage) error {
	return r.replaceUsages(r, us)
}

// MutableTarget is implemented by members whose usages can be amended.
type MutableTarget interface {
	AnnotationTarget
	AddAnnotationUsage(u *AnnotationUsage) error
	RemoveAnnotationUsage(name string)
}

var (
	_ MutableTarget    = (*FieldDetails)(nil)
	_ MutableTarget    = (*MethodDetails)(nil)
	_ MutableTarget    = (*RecordComponentDetails)(nil)
	_ AnnotationTarget = (*ClassDetails)(nil)
)
