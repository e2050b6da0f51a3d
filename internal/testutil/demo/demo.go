// Package demo holds the shared test domain: a handful of Go types
// registered as "demo.*" classes, plus the same domain written as a CUE
// index and as YAML unit resources. All three describe identical records.
package demo

import (
	"reflect"
	"testing/fstest"

	"github.com/roach88/classmodel/internal/loader"
)

// Annotation types.

type Id struct {
	_ struct{} `kind:"annotation"`
}

type Transient struct {
	_ struct{} `kind:"annotation"`
}

type Column struct {
	_        struct{} `kind:"annotation"`
	Name     string   `default:"\"\""`
	Length   int16    `default:"255"`
	Nullable bool     `default:"true"`
}

type Entity struct {
	_    struct{} `kind:"annotation" model:"classmodel.Inherited"`
	Name string   `default:"\"\""`
}

type Tag struct {
	_     struct{} `kind:"annotation" model:"classmodel.Repeatable{Value: demo.Tags}"`
	Value string
	Color Color `default:"demo.Color.RED"`
}

type Tags struct {
	_     struct{} `kind:"annotation"`
	Value []Tag
}

type Index struct {
	_       struct{}     `kind:"annotation"`
	Columns []Column     `default:"[]demo.Column{}"`
	Target  reflect.Type `default:"demo.Base"`
	Unique  bool         `default:"false"`
}

// Color is an enum.
type Color int

const (
	Red Color = iota
	Green
	Blue
)

func (Color) EnumConstants() []string { return []string{"RED", "GREEN", "BLUE"} }

// Named is an interface.
type Named interface {
	DisplayName() string
}

// Base is the supertype of Person. Its Entity usage is inherited.
type Base struct {
	_       struct{} `model:"demo.Entity{Name: \"base\"}"`
	version int64
}

type Person struct {
	Base

	_ struct{} `implements:"demo.Named" model:"demo.Tag{Value: \"a\"}, demo.Tag{Value: \"b\", Color: demo.Color.GREEN}, demo.Index{Columns: []demo.Column{{Name: \"name\"}}, Unique: true}"`

	id     int64  `model:"demo.Id"`
	name   string `model:"demo.Column{Name: \"full_name\", Length: 40}"`
	other  string
	tags   []string
	scores map[string]float64
}

func (p *Person) DisplayName() string { return p.name }

func (p *Person) Rename(name string, keep bool) error {
	if !keep {
		p.other = p.name
	}
	p.name = name
	return nil
}

func (*Person) ModelMethodTags() map[string]string {
	return map[string]string{"Rename": "demo.Transient"}
}

type Point struct {
	_ struct{} `kind:"record"`
	x int32    `model:"demo.Column{Nullable: false}"`
	y int32    `model:"demo.Column{Nullable: false}"`
}

type Box struct {
	_     struct{} `typeparams:"T extends demo.Named"`
	items []any    `type:"T[]"`
	first any      `type:"T"`
}

// Names lists every demo class in registration order.
var Names = []string{
	"demo.Id", "demo.Transient", "demo.Column", "demo.Entity", "demo.Tag", "demo.Tags", "demo.Index",
	"demo.Color", "demo.Named", "demo.Base", "demo.Person", "demo.Point", "demo.Box",
}

// Units returns a class-loading capability with every demo type
// registered and the YAML units as resources.
func Units() *loader.Units {
	return loader.New(Resources()).
		Register("demo.Id", Id{}).
		Register("demo.Transient", Transient{}).
		Register("demo.Column", Column{}).
		Register("demo.Entity", Entity{}).
		Register("demo.Tag", Tag{}).
		Register("demo.Tags", Tags{}).
		Register("demo.Index", Index{}).
		Register("demo.Color", Color(0)).
		Register("demo.Named", (*Named)(nil)).
		Register("demo.Base", Base{}).
		Register("demo.Person", Person{}).
		Register("demo.Point", Point{}).
		Register("demo.Box", Box{})
}

// Resources returns the YAML unit of every demo class.
func Resources() fstest.MapFS {
	fsys := fstest.MapFS{}
	for path, text := range yamlUnits {
		fsys[path] = &fstest.MapFile{Data: []byte(text)}
	}
	return fsys
}
