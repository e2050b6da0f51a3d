package backend

import (
	"fmt"
	"sort"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/values"
)

// Unit is the document form of one program unit. The index and pool
// backends decode their sources into it and share BuildUnit.
//
// Types use the textual syntax of ir.ParseTypeRef. Attribute values are
// plain Go scalars, []any for arrays and *UnitUsage for nested usages;
// class and enum values are names.
type Unit struct {
	Name             string       `yaml:"name"`
	Kind             string       `yaml:"kind"`
	Visibility       string       `yaml:"visibility"`
	Modifiers        []string     `yaml:"modifiers"`
	Super            string       `yaml:"super"`
	Interfaces       []string     `yaml:"interfaces"`
	TypeParameters   []string     `yaml:"typeParameters"`
	Fields           []UnitMember `yaml:"fields"`
	Methods          []UnitMember `yaml:"methods"`
	RecordComponents []UnitMember `yaml:"recordComponents"`
	EnumConstants    []string     `yaml:"enumConstants"`
	Annotations      []*UnitUsage `yaml:"annotations"`
}

// UnitMember is a field, method or record component of a Unit.
type UnitMember struct {
	Name        string       `yaml:"name"`
	Type        string       `yaml:"type"`
	Returns     string       `yaml:"returns"`
	Parameters  []string     `yaml:"parameters"`
	Visibility  string       `yaml:"visibility"`
	Modifiers   []string     `yaml:"modifiers"`
	Annotations []*UnitUsage `yaml:"annotations"`
	Default     any          `yaml:"default"`
}

// UnitUsage is an annotation usage in document form.
type UnitUsage struct {
	Type   string         `yaml:"type"`
	Values map[string]any `yaml:"values"`
}

// AnnotationType implements values.RawUsage.
func (u *UnitUsage) AnnotationType() string { return u.Type }

// AttributeNames implements values.RawUsage.
func (u *UnitUsage) AttributeNames() []string {
	names := make([]string, 0, len(u.Values))
	for n := range u.Values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// UnitExtractor reads attribute values from a *UnitUsage.
var UnitExtractor = values.ExtractorFunc(func(usage values.RawUsage, attr ir.AttributeRecord) (any, bool, error) {
	u, ok := usage.(*UnitUsage)
	if !ok {
		return nil, false, fmt.Errorf("cannot read %T as a unit usage", usage)
	}
	v, ok := u.Values[attr.Name]
	return v, ok, nil
})

// BuildUnit converts a decoded unit into a class record. Usages and
// attribute defaults are converted with s.
func BuildUnit(u *Unit, bc BuildContext, s values.Strategies) (*ir.ClassRecord, error) {
	kind := ir.ClassKind(u.Kind)
	if kind == "" {
		kind = ir.OrdinaryClass
	}
	if !ir.ValidClassKinds[kind] {
		return nil, fmt.Errorf("%s: unknown kind %q", u.Name, u.Kind)
	}
	rec := &ir.ClassRecord{
		Name:          u.Name,
		Kind:          kind,
		Visibility:    ir.Visibility(u.Visibility),
		EnumConstants: u.EnumConstants,
	}
	var err error
	if rec.Modifiers, err = modifiers(u.Modifiers); err != nil {
		return nil, fmt.Errorf("%s: %w", u.Name, err)
	}

	scope := ir.TypeScope{}
	for _, text := range u.TypeParameters {
		tp, err := ir.ParseTypeParameter(text, scope)
		if err != nil {
			return nil, fmt.Errorf("%s: type parameter %q: %w", u.Name, text, err)
		}
		scope[tp.Name] = true
		rec.TypeParameters = append(rec.TypeParameters, tp)
	}
	if u.Super != "" {
		if rec.Super, err = ir.ParseTypeRef(u.Super, scope); err != nil {
			return nil, fmt.Errorf("%s: super: %w", u.Name, err)
		}
	}
	for _, text := range u.Interfaces {
		t, err := ir.ParseTypeRef(text, scope)
		if err != nil {
			return nil, fmt.Errorf("%s: interface: %w", u.Name, err)
		}
		rec.Interfaces = append(rec.Interfaces, t)
	}

	ub := &unitBuilder{name: u.Name, kind: kind, scope: scope, bc: bc, s: s}
	if rec.Annotations, err = ub.usages(u.Annotations); err != nil {
		return nil, fmt.Errorf("%s: %w", u.Name, err)
	}
	if rec.Fields, err = ub.members(u.Fields, ir.MemberField); err != nil {
		return nil, err
	}
	if rec.Methods, err = ub.members(u.Methods, ir.MemberMethod); err != nil {
		return nil, err
	}
	if rec.RecordComponents, err = ub.members(u.RecordComponents, ir.MemberRecordComponent); err != nil {
		return nil, err
	}

	ApplyKindConventions(rec)
	return rec, nil
}

type unitBuilder struct {
	name  string
	kind  ir.ClassKind
	scope ir.TypeScope
	bc    BuildContext
	s     values.Strategies
}

func (b *unitBuilder) members(ms []UnitMember, kind ir.MemberKind) ([]ir.MemberRecord, error) {
	var out []ir.MemberRecord
	for _, m := range ms {
		rec, err := b.member(m, kind)
		if err != nil {
			return nil, fmt.Errorf("%s#%s: %w", b.name, m.Name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (b *unitBuilder) member(m UnitMember, kind ir.MemberKind) (ir.MemberRecord, error) {
	text := m.Type
	if kind == ir.MemberMethod {
		text = m.Returns
	}
	typ := ir.Void
	if text != "" {
		t, err := ir.ParseTypeRef(text, b.scope)
		if err != nil {
			return ir.MemberRecord{}, err
		}
		typ = t
	} else if kind != ir.MemberMethod {
		return ir.MemberRecord{}, fmt.Errorf("type is required")
	}

	rec := ir.MemberRecord{Name: m.Name, Kind: kind, Type: typ, Visibility: ir.Visibility(m.Visibility)}
	for _, p := range m.Parameters {
		t, err := ir.ParseTypeRef(p, b.scope)
		if err != nil {
			return ir.MemberRecord{}, fmt.Errorf("parameter: %w", err)
		}
		rec.Parameters = append(rec.Parameters, t)
	}
	var err error
	if rec.Modifiers, err = modifiers(m.Modifiers); err != nil {
		return ir.MemberRecord{}, err
	}
	if rec.Annotations, err = b.usages(m.Annotations); err != nil {
		return ir.MemberRecord{}, err
	}

	if m.Default != nil {
		if b.kind != ir.AnnotationClass || kind != ir.MemberMethod {
			return ir.MemberRecord{}, fmt.Errorf("default is only allowed on annotation attributes")
		}
		vk, err := values.KindOf(typ, b.bc)
		if err != nil {
			return ir.MemberRecord{}, err
		}
		attr := ir.AttributeRecord{Name: m.Name, Kind: vk, Type: typ}
		if rec.Default, err = b.s.Convert(m.Default, b.name, attr, b.bc); err != nil {
			return ir.MemberRecord{}, err
		}
	}
	return rec, nil
}

func (b *unitBuilder) usages(us []*UnitUsage) ([]ir.UsageRecord, error) {
	var out []ir.UsageRecord
	for _, u := range us {
		if u == nil || u.Type == "" {
			return nil, fmt.Errorf("annotation usage without a type")
		}
		rec, err := b.s.Usage(u, b.bc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func modifiers(names []string) ([]ir.Modifier, error) {
	var out []ir.Modifier
	for _, n := range names {
		m := ir.Modifier(n)
		if !ir.ValidModifiers[m] {
			return nil, fmt.Errorf("unknown modifier %q", n)
		}
		out = AddModifier(out, m)
	}
	return out, nil
}

// NormalizeUsages rewrites nested usages decoded as generic maps, such as
// {type: demo.Column, values: {...}}, into *UnitUsage values.
func (u *Unit) NormalizeUsages() {
	normalizeAll(u.Annotations)
	for _, ms := range [][]UnitMember{u.Fields, u.Methods, u.RecordComponents} {
		for i := range ms {
			normalizeAll(ms[i].Annotations)
			ms[i].Default = normalizeValue(ms[i].Default)
		}
	}
}

func normalizeAll(us []*UnitUsage) {
	for _, u := range us {
		if u == nil {
			continue
		}
		for k, v := range u.Values {
			u.Values[k] = normalizeValue(v)
		}
	}
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		typ, ok := x["type"].(string)
		if !ok {
			return x
		}
		nested := &UnitUsage{Type: typ}
		if vals, ok := x["values"].(map[string]any); ok {
			nested.Values = vals
			normalizeAll([]*UnitUsage{nested})
		}
		return nested
	}
	return v
}
