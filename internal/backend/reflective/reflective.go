// Package reflective builds class records from Go types registered with
// the class-loading capability.
//
// Struct types are ordinary classes and interface types are interfaces.
// A blank field carries class-level metadata:
//
//	type Person struct {
//		_     struct{} `kind:"record" model:"demo.Entity" implements:"demo.Named"`
//		id    int64    `model:"demo.Id"`
//		name  string   `model:"demo.Column{Length: 40}"`
//	}
//
// Resolving a class always loads its type through ClassForName.
package reflective

import (
	"fmt"
	"go/parser"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/values"
)

// BackendName identifies the reflective backend.
const BackendName = "reflective"

// Enumerated is implemented by enum types to list their constants.
type Enumerated interface {
	EnumConstants() []string
}

// MethodAnnotated is implemented by types whose methods carry annotation
// usages. Keys are method names, values use the model tag grammar.
type MethodAnnotated interface {
	ModelMethodTags() map[string]string
}

// protocolMethods are methods the backend itself calls and never reports.
var protocolMethods = map[string]bool{
	"EnumConstants":   true,
	"ModelMethodTags": true,
}

var reflectTypeType = reflect.TypeOf((*reflect.Type)(nil)).Elem()

// LoadedType is the raw form of a class reference: a type already loaded
// through the class-loading capability.
type LoadedType struct {
	Name string
	Type reflect.Type
}

// TypeName implements values.Named.
func (t LoadedType) TypeName() string { return t.Name }

// Backend reads Go types through reflection.
type Backend struct{}

// New returns the reflective backend.
func New() *Backend {
	return &Backend{}
}

// Name implements backend.Backend.
func (*Backend) Name() string { return BackendName }

// BuildClass implements backend.Backend.
func (*Backend) BuildClass(name string, bc backend.BuildContext) (*ir.ClassRecord, error) {
	loading := bc.ClassLoading()
	rt, err := loading.ClassForName(name)
	if err != nil {
		return nil, err
	}

	b := &builder{name: name, rt: rt, bc: bc, loading: loading}
	b.namer, _ = loading.(backend.TypeNamer)
	b.ev = &evaluator{resolver: bc, load: func(ref string) (any, error) {
		t, err := loading.ClassForName(ref)
		if err != nil {
			return nil, err
		}
		return LoadedType{Name: ref, Type: t}, nil
	}}
	b.strategies = values.Uniform(values.ExtractorFunc(b.ev.extract))

	rec, err := b.build()
	if err != nil {
		return nil, fmt.Errorf("reflect %s: %w", name, err)
	}
	return rec, nil
}

type builder struct {
	name       string
	rt         reflect.Type
	bc         backend.BuildContext
	loading    backend.ClassLoading
	namer      backend.TypeNamer
	ev         *evaluator
	strategies values.Strategies
	scope      ir.TypeScope
	superType  reflect.Type
}

func (b *builder) build() (*ir.ClassRecord, error) {
	rec := &ir.ClassRecord{
		Name:       b.name,
		Kind:       ir.OrdinaryClass,
		Visibility: backend.Visibility(b.rt.Name()),
	}

	if b.rt.Kind() == reflect.Interface {
		rec.Kind = ir.InterfaceClass
		methods, err := b.methods(b.rt, 0, nil)
		if err != nil {
			return nil, err
		}
		rec.Methods = methods
		backend.ApplyKindConventions(rec)
		return rec, nil
	}

	var meta reflect.StructTag
	if b.rt.Kind() == reflect.Struct {
		for i := 0; i < b.rt.NumField(); i++ {
			if f := b.rt.Field(i); f.Name == "_" {
				meta = f.Tag
				break
			}
		}
	}
	if err := b.header(rec, meta); err != nil {
		return nil, err
	}

	if b.rt.Kind() == reflect.Struct {
		if err := b.members(rec); err != nil {
			return nil, err
		}
	}

	if rec.Kind != ir.AnnotationClass {
		var tags map[string]string
		if ma, ok := reflect.New(b.rt).Interface().(MethodAnnotated); ok {
			tags = ma.ModelMethodTags()
		}
		methods, err := b.methods(reflect.PointerTo(b.rt), 1, tags)
		if err != nil {
			return nil, err
		}
		rec.Methods = append(rec.Methods, methods...)
	}

	if rec.Kind == ir.EnumClass {
		en, ok := reflect.New(b.rt).Interface().(Enumerated)
		if !ok {
			return nil, fmt.Errorf("enum type does not implement EnumConstants")
		}
		rec.EnumConstants = append([]string(nil), en.EnumConstants()...)
	}
	backend.ApplyKindConventions(rec)
	return rec, nil
}

// header fills kind, modifiers, type parameters, interfaces and class
// annotations from the blank field's tag.
func (b *builder) header(rec *ir.ClassRecord, meta reflect.StructTag) error {
	switch k := meta.Get(TagKind); k {
	case "", string(ir.OrdinaryClass):
		if _, ok := reflect.New(b.rt).Interface().(Enumerated); ok && b.rt.Kind() != reflect.Struct {
			rec.Kind = ir.EnumClass
		}
	case string(ir.RecordClass), string(ir.EnumClass), string(ir.AnnotationClass):
		rec.Kind = ir.ClassKind(k)
	default:
		return fmt.Errorf("unknown kind %q", k)
	}

	mods, err := parseModifiers(meta.Get(TagModifiers))
	if err != nil {
		return err
	}
	rec.Modifiers = mods

	b.scope = ir.TypeScope{}
	for _, text := range splitList(meta.Get(TagTypeParams), ";") {
		tp, err := ir.ParseTypeParameter(text, b.scope)
		if err != nil {
			return fmt.Errorf("type parameter %q: %w", text, err)
		}
		b.scope[tp.Name] = true
		rec.TypeParameters = append(rec.TypeParameters, tp)
	}

	for _, iface := range splitList(meta.Get(TagImplements), ",") {
		it, err := b.loading.ClassForName(iface)
		if err != nil {
			return err
		}
		if it.Kind() != reflect.Interface {
			return fmt.Errorf("implements %s: not an interface", iface)
		}
		if !reflect.PointerTo(b.rt).Implements(it) {
			return fmt.Errorf("does not implement %s", iface)
		}
		rec.Interfaces = append(rec.Interfaces, ir.ClassType(iface))
	}

	usages, err := b.usages(meta.Get(TagModel))
	if err != nil {
		return err
	}
	rec.Annotations = usages
	return nil
}

// members reads struct fields into fields, record components or
// annotation attributes depending on the class kind.
func (b *builder) members(rec *ir.ClassRecord) error {
	for i := 0; i < b.rt.NumField(); i++ {
		f := b.rt.Field(i)
		if f.Name == "_" {
			continue
		}
		if f.Anonymous {
			b.embedded(rec, f)
			continue
		}

		switch rec.Kind {
		case ir.AnnotationClass:
			m, err := b.attribute(f)
			if err != nil {
				return err
			}
			rec.Methods = append(rec.Methods, m)
		default:
			m, err := b.field(f)
			if err != nil {
				return err
			}
			if rec.Kind == ir.RecordClass {
				// Fields are derived from the components.
				m.Kind = ir.MemberRecordComponent
				rec.RecordComponents = append(rec.RecordComponents, m)
				continue
			}
			rec.Fields = append(rec.Fields, m)
		}
	}
	return nil
}

// embedded treats the first embedded registered struct as the supertype
// and embedded registered interfaces as implemented interfaces.
// Without a TypeNamer nothing can be recognized, so the field is skipped
// with a warning.
func (b *builder) embedded(rec *ir.ClassRecord, f reflect.StructField) {
	t := f.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if b.namer == nil {
		b.bc.Logger().Warn("embedded type ignored, class loading cannot name types",
			zap.String("class", b.name),
			zap.String("embedded", t.String()),
		)
		return
	}
	name, ok := b.nameOf(t)
	if !ok {
		return
	}
	switch {
	case t.Kind() == reflect.Interface:
		rec.Interfaces = append(rec.Interfaces, ir.ClassType(name))
	case t.Kind() == reflect.Struct && rec.Super == nil:
		rec.Super = ir.ClassType(name)
		b.superType = t
	}
}

func (b *builder) field(f reflect.StructField) (ir.MemberRecord, error) {
	typ, err := b.declaredType(f)
	if err != nil {
		return ir.MemberRecord{}, err
	}
	mods, err := parseModifiers(f.Tag.Get(TagModifiers))
	if err != nil {
		return ir.MemberRecord{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	usages, err := b.usages(f.Tag.Get(TagModel))
	if err != nil {
		return ir.MemberRecord{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return ir.MemberRecord{
		Name:        f.Name,
		Kind:        ir.MemberField,
		Type:        typ,
		Visibility:  backend.Visibility(f.Name),
		Modifiers:   mods,
		Annotations: usages,
	}, nil
}

// attribute maps a field of an annotation type to an attribute method.
func (b *builder) attribute(f reflect.StructField) (ir.MemberRecord, error) {
	name := attributeName(f.Name)
	typ, err := b.declaredType(f)
	if err != nil {
		return ir.MemberRecord{}, err
	}
	m := ir.MemberRecord{Name: name, Kind: ir.MemberMethod, Type: typ}

	text, ok := f.Tag.Lookup(TagDefault)
	if !ok {
		return m, nil
	}
	kind, err := values.KindOf(typ, b.bc)
	if err != nil {
		return ir.MemberRecord{}, fmt.Errorf("attribute %s: %w", name, err)
	}
	attr := ir.AttributeRecord{Name: name, Kind: kind, Type: typ}
	expr, err := parser.ParseExpr(text)
	if err != nil {
		return ir.MemberRecord{}, fmt.Errorf("attribute %s default %q: %w", name, text, err)
	}
	raw, err := b.ev.eval(expr, attr)
	if err != nil {
		return ir.MemberRecord{}, fmt.Errorf("attribute %s default: %w", name, err)
	}
	def, err := b.strategies.Convert(raw, b.name, attr, b.bc)
	if err != nil {
		return ir.MemberRecord{}, err
	}
	m.Default = def
	return m, nil
}

// methods lists the exported methods of t. first is the index of the
// first real parameter: 1 when t's methods carry a receiver.
func (b *builder) methods(t reflect.Type, first int, tags map[string]string) ([]ir.MemberRecord, error) {
	var super reflect.Type
	if b.superType != nil {
		super = reflect.PointerTo(b.superType)
	}

	var out []ir.MemberRecord
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !m.IsExported() || protocolMethods[m.Name] {
			continue
		}
		// Promoted from the supertype; reported there.
		if super != nil {
			if _, ok := super.MethodByName(m.Name); ok {
				continue
			}
		}

		mt := m.Type
		var params []*ir.TypeRef
		for j := first; j < mt.NumIn(); j++ {
			params = append(params, b.typeRef(mt.In(j)))
		}
		rec := ir.MemberRecord{
			Name:       m.Name,
			Kind:       ir.MemberMethod,
			Type:       b.results(mt),
			Parameters: params,
			Visibility: ir.VisibilityPublic,
		}
		usages, err := b.usages(tags[m.Name])
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Name, err)
		}
		rec.Annotations = usages
		out = append(out, rec)
	}
	return out, nil
}

func (b *builder) results(mt reflect.Type) *ir.TypeRef {
	switch mt.NumOut() {
	case 0:
		return ir.Void
	case 1:
		return b.typeRef(mt.Out(0))
	}
	parts := make([]string, mt.NumOut())
	for i := range parts {
		parts[i] = b.typeRef(mt.Out(i)).String()
	}
	return ir.OtherType("(" + strings.Join(parts, ", ") + ")")
}

func (b *builder) declaredType(f reflect.StructField) (*ir.TypeRef, error) {
	if text, ok := f.Tag.Lookup(TagType); ok {
		t, err := ir.ParseTypeRef(text, b.scope)
		if err != nil {
			return nil, fmt.Errorf("field %s type: %w", f.Name, err)
		}
		return t, nil
	}
	return b.typeRef(f.Type), nil
}

// usages parses and converts a model tag.
func (b *builder) usages(tag string) ([]ir.UsageRecord, error) {
	parsed, err := parseUsages(tag)
	if err != nil {
		return nil, err
	}
	var out []ir.UsageRecord
	for _, u := range parsed {
		rec, err := b.strategies.Usage(u, b.bc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (b *builder) nameOf(t reflect.Type) (string, bool) {
	if b.namer == nil {
		return "", false
	}
	return b.namer.NameOf(t)
}

// typeRef maps a Go type onto a type reference.
func (b *builder) typeRef(t reflect.Type) *ir.TypeRef {
	if t == reflectTypeType {
		return ir.ClassType(ir.ClassReferenceName)
	}
	if name, ok := b.nameOf(t); ok {
		return ir.ClassType(name)
	}

	switch t.Kind() {
	case reflect.Pointer:
		return b.typeRef(t.Elem())
	case reflect.Slice, reflect.Array:
		return ir.ArrayOf(b.typeRef(t.Elem()))
	case reflect.Map:
		return ir.Parameterized("map", b.typeRef(t.Key()), b.typeRef(t.Elem()))
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return ir.OtherType(t.String())
	case reflect.Interface:
		if t.Name() == "" {
			return ir.ClassType(ir.AnyName)
		}
	}

	if t.PkgPath() == "" && ir.PrimitiveNames[t.Kind().String()] {
		return ir.PrimitiveType(t.Kind().String())
	}
	if raw, args, ok := splitInstance(t.String()); ok {
		return ir.Parameterized(raw, args...)
	}
	if t.Name() == "" {
		return ir.OtherType(t.String())
	}
	return ir.ClassType(t.String())
}

// splitInstance splits a generic instantiation name such as
// "demo.Box[int64,demo.Person]". Arguments are resolved by name only.
func splitInstance(s string) (string, []*ir.TypeRef, bool) {
	open := strings.IndexByte(s, '[')
	if open <= 0 || !strings.HasSuffix(s, "]") {
		return "", nil, false
	}
	var args []*ir.TypeRef
	depth, start := 0, open+1
	for i := open + 1; i < len(s)-1; i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, argRef(s[start:i]))
				start = i + 1
			}
		}
	}
	args = append(args, argRef(s[start:len(s)-1]))
	return s[:open], args, true
}

func argRef(s string) *ir.TypeRef {
	s = strings.TrimSpace(s)
	if ir.PrimitiveNames[s] {
		return ir.PrimitiveType(s)
	}
	if strings.ContainsAny(s, "[]*() ") {
		return ir.OtherType(s)
	}
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	return ir.ClassType(s)
}

func parseModifiers(tag string) ([]ir.Modifier, error) {
	var out []ir.Modifier
	for _, m := range splitList(tag, ",") {
		mod := ir.Modifier(m)
		if !ir.ValidModifiers[mod] {
			return nil, fmt.Errorf("unknown modifier %q", m)
		}
		out = backend.AddModifier(out, mod)
	}
	return out, nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
