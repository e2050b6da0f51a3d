package demo

// IndexSource is the demo domain as an index document.
const IndexSource = `
classes: {
	"demo.Id": kind:        "annotation"
	"demo.Transient": kind: "annotation"

	"demo.Column": {
		kind: "annotation"
		methods: [
			{name: "name", returns: "string", default: ""},
			{name: "length", returns: "int16", default: 255},
			{name: "nullable", returns: "bool", default: true},
		]
	}

	"demo.Entity": {
		kind: "annotation"
		annotations: [{type: "classmodel.Inherited"}]
		methods: [{name: "name", returns: "string", default: ""}]
	}

	"demo.Tag": {
		kind: "annotation"
		annotations: [{type: "classmodel.Repeatable", values: value: "demo.Tags"}]
		methods: [
			{name: "value", returns: "string"},
			{name: "color", returns: "demo.Color", default: "demo.Color.RED"},
		]
	}

	"demo.Tags": {
		kind: "annotation"
		methods: [{name: "value", returns: "demo.Tag[]"}]
	}

	"demo.Index": {
		kind: "annotation"
		methods: [
			{name: "columns", returns: "demo.Column[]", default: []},
			{name: "target", returns: "reflect.Type", default: "demo.Base"},
			{name: "unique", returns: "bool", default: false},
		]
	}

	"demo.Color": {
		kind: "enum"
		enumConstants: ["RED", "GREEN", "BLUE"]
	}

	"demo.Named": {
		kind: "interface"
		methods: [{name: "DisplayName", returns: "string"}]
	}

	"demo.Base": {
		annotations: [{type: "demo.Entity", values: name: "base"}]
		fields: [{name: "version", type: "int64"}]
	}

	"demo.Person": {
		super: "demo.Base"
		interfaces: ["demo.Named"]
		annotations: [
			{type: "demo.Tag", values: value: "a"},
			{type: "demo.Tag", values: {value: "b", color: "demo.Color.GREEN"}},
			{type: "demo.Index", values: {
				columns: [{type: "demo.Column", values: name: "name"}]
				unique: true
			}},
		]
		fields: [
			{name: "id", type: "int64", annotations: [{type: "demo.Id"}]},
			{name: "name", type: "string", annotations: [
				{type: "demo.Column", values: {name: "full_name", length: 40}},
			]},
			{name: "other", type: "string"},
			{name: "tags", type: "string[]"},
			{name: "scores", type: "map<string, float64>"},
		]
		methods: [
			{name: "DisplayName", returns: "string"},
			{name: "Rename", returns: "error", parameters: ["string", "bool"], annotations: [{type: "demo.Transient"}]},
		]
	}

	"demo.Point": {
		kind: "record"
		recordComponents: [
			{name: "x", type: "int32", annotations: [{type: "demo.Column", values: nullable: false}]},
			{name: "y", type: "int32", annotations: [{type: "demo.Column", values: nullable: false}]},
		]
	}

	"demo.Box": {
		typeParameters: ["T extends demo.Named"]
		fields: [
			{name: "items", type: "T[]"},
			{name: "first", type: "T"},
		]
	}
}
`

var yamlUnits = map[string]string{
	"demo/Id.unit.yaml":        "kind: annotation\n",
	"demo/Transient.unit.yaml": "kind: annotation\n",
	"demo/Column.unit.yaml": `kind: annotation
methods:
  - {name: name, returns: string, default: ""}
  - {name: length, returns: int16, default: 255}
  - {name: nullable, returns: bool, default: true}
`,
	"demo/Entity.unit.yaml": `kind: annotation
annotations:
  - type: classmodel.Inherited
methods:
  - {name: name, returns: string, default: ""}
`,
	"demo/Tag.unit.yaml": `kind: annotation
annotations:
  - type: classmodel.Repeatable
    values: {value: demo.Tags}
methods:
  - {name: value, returns: string}
  - {name: color, returns: demo.Color, default: demo.Color.RED}
`,
	"demo/Tags.unit.yaml": `kind: annotation
methods:
  - {name: value, returns: "demo.Tag[]"}
`,
	"demo/Index.unit.yaml": `kind: annotation
methods:
  - {name: columns, returns: "demo.Column[]", default: []}
  - {name: target, returns: reflect.Type, default: demo.Base}
  - {name: unique, returns: bool, default: false}
`,
	"demo/Color.unit.yaml": `kind: enum
enumConstants: [RED, GREEN, BLUE]
`,
	"demo/Named.unit.yaml": `kind: interface
methods:
  - {name: DisplayName, returns: string}
`,
	"demo/Base.unit.yaml": `annotations:
  - type: demo.Entity
    values: {name: base}
fields:
  - {name: version, type: int64}
`,
	"demo/Person.unit.yaml": `super: demo.Base
interfaces: [demo.Named]
annotations:
  - type: demo.Tag
    values: {value: a}
  - type: demo.Tag
    values: {value: b, color: demo.Color.GREEN}
  - type: demo.Index
    values:
      columns:
        - type: demo.Column
          values: {name: name}
      unique: true
fields:
  - name: id
    type: int64
    annotations:
      - type: demo.Id
  - name: name
    type: string
    annotations:
      - type: demo.Column
        values: {name: full_name, length: 40}
  - {name: other, type: string}
  - {name: tags, type: "string[]"}
  - {name: scores, type: "map<string, float64>"}
methods:
  - {name: DisplayName, returns: string}
  - name: Rename
    returns: error
    parameters: [string, bool]
    annotations:
      - type: demo.Transient
`,
	"demo/Point.unit.yaml": `kind: record
recordComponents:
  - name: x
    type: int32
    annotations:
      - type: demo.Column
        values: {nullable: false}
  - name: y
    type: int32
    annotations:
      - type: demo.Column
        values: {nullable: false}
`,
	"demo/Box.unit.yaml": `typeParameters: [T extends demo.Named]
fields:
  - {name: items, type: "T[]"}
  - {name: first, type: T}
`,
}
