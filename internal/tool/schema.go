package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Kind is a JSON value type a parameter may accept.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindNull    Kind = "null"
)

func (k Kind) valid() bool {
	switch k {
	case KindString, KindInteger, KindNumber, KindBoolean, KindArray, KindNull:
		return true
	}
	return false
}

// Param declares one tool parameter. Types lists the accepted alternatives;
// a union of KindNull and exactly one other kind is a nullable parameter.
// Enum restricts string values. Items describes array elements.
type Param struct {
	Name        string
	Description string
	Types       []Kind
	Enum        []string
	Items       *Param
	Optional    bool

	kind     Kind
	nullable bool
}

// Kind returns the resolved non-null kind. Only valid on params taken from a
// Descriptor built by NewDescriptor.
func (p Param) Kind() Kind { return p.kind }

// Nullable reports whether the parameter accepts null.
func (p Param) Nullable() bool { return p.nullable }

// resolve unwraps nullable unions and fills in the defaults.
func (p Param) resolve() (Param, error) {
	var nonNull []Kind
	for _, k := range p.Types {
		if !k.valid() {
			return p, fmt.Errorf("param %q: unknown kind %q", p.Name, k)
		}
		if k == KindNull {
			p.nullable = true
			continue
		}
		nonNull = append(nonNull, k)
	}

	switch len(nonNull) {
	case 0:
		// An enum without a declared type is a string literal set.
		if len(p.Enum) == 0 {
			return p, fmt.Errorf("param %q: no type declared", p.Name)
		}
		p.kind = KindString
	case 1:
		p.kind = nonNull[0]
	default:
		return p, fmt.Errorf("param %q: %w: %v", p.Name, ErrAmbiguousType, p.Types)
	}

	if len(p.Enum) > 0 && p.kind != KindString {
		return p, fmt.Errorf("param %q: enum is only supported on strings", p.Name)
	}
	if p.kind == KindArray && p.Items != nil {
		items, err := p.Items.resolve()
		if err != nil {
			return p, fmt.Errorf("param %q items: %w", p.Name, err)
		}
		if items.kind == KindArray {
			return p, fmt.Errorf("param %q: nested arrays are not supported", p.Name)
		}
		p.Items = &items
	} else if p.kind != KindArray {
		p.Items = nil
	}
	return p, nil
}

// signature is the compact form shown to the model: nullable unions are
// reported as their single non-null kind.
func (p Param) signature() map[string]any {
	out := map[string]any{"type": string(p.kind)}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Items != nil {
		out["items"] = p.Items.signature()
	}
	if p.Description != "" {
		out["description"] = p.Description
	}
	return out
}

// schema is the validation form; nulls are allowed for nullable and
// optional parameters.
func (p Param) schema() map[string]any {
	out := map[string]any{}
	if p.nullable || p.Optional {
		out["type"] = []any{string(p.kind), "null"}
	} else {
		out["type"] = string(p.kind)
	}
	if len(p.Enum) > 0 {
		enum := make([]any, 0, len(p.Enum)+1)
		for _, e := range p.Enum {
			enum = append(enum, e)
		}
		if p.nullable || p.Optional {
			enum = append(enum, nil)
		}
		out["enum"] = enum
	}
	if p.Items != nil {
		out["items"] = p.Items.schema()
	}
	if p.Description != "" {
		out["description"] = p.Description
	}
	return out
}

// Descriptor is the machine-readable description of a tool's inputs.
// It is immutable once built by NewDescriptor.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
	Required    []string

	index    map[string]int
	compiled *jsonschema.Schema
}

// NewDescriptor builds a descriptor from an explicit parameter table.
// Parameter order is preserved in every rendering.
func NewDescriptor(name, description string, params ...Param) (Descriptor, error) {
	if name == "" {
		return Descriptor{}, fmt.Errorf("tool: descriptor: empty name")
	}

	d := Descriptor{
		Name:        name,
		Description: description,
		Params:      make([]Param, 0, len(params)),
		Required:    []string{},
		index:       make(map[string]int, len(params)),
	}
	for _, p := range params {
		if p.Name == "" {
			return Descriptor{}, fmt.Errorf("tool: descriptor %q: empty param name", name)
		}
		if _, dup := d.index[p.Name]; dup {
			return Descriptor{}, fmt.Errorf("tool: descriptor %q: duplicate param %q", name, p.Name)
		}
		rp, err := p.resolve()
		if err != nil {
			return Descriptor{}, fmt.Errorf("tool: descriptor %q: %w", name, err)
		}
		d.index[rp.Name] = len(d.Params)
		d.Params = append(d.Params, rp)
		if !rp.Optional && !rp.nullable {
			d.Required = append(d.Required, rp.Name)
		}
	}

	compiled, err := compileSchema(name, d.JSONSchema())
	if err != nil {
		return Descriptor{}, fmt.Errorf("tool: descriptor %q: %w", name, err)
	}
	d.compiled = compiled
	return d, nil
}

// MustDescriptor is like NewDescriptor but panics on error. Intended for
// package-level tool tables.
func MustDescriptor(name, description string, params ...Param) Descriptor {
	d, err := NewDescriptor(name, description, params...)
	if err != nil {
		panic(err)
	}
	return d
}

// Param looks up a parameter by name.
func (d Descriptor) Param(name string) (Param, bool) {
	i, ok := d.index[name]
	if !ok {
		return Param{}, false
	}
	return d.Params[i], true
}

// MarshalJSON renders the signature with parameters in declaration order.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	if err := writeJSON(&buf, d.Name); err != nil {
		return nil, err
	}
	buf.WriteString(`,"description":`)
	if err := writeJSON(&buf, d.Description); err != nil {
		return nil, err
	}
	buf.WriteString(`,"parameters":{`)
	for i, p := range d.Params {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, p.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, p.signature()); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`},"required":`)
	if err := writeJSON(&buf, d.Required); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns the JSON signature, or an empty string if it cannot be encoded.
func (d Descriptor) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// JSONSchema returns the equivalent JSON Schema object for the arguments.
func (d Descriptor) JSONSchema() map[string]any {
	props := make(map[string]any, len(d.Params))
	for _, p := range d.Params {
		props[p.Name] = p.schema()
	}
	required := make([]any, 0, len(d.Required))
	for _, r := range d.Required {
		required = append(required, r)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	doc, err := toJSONValue(schema)
	if err != nil {
		return nil, err
	}
	url := "mem://tools/" + name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// toJSONValue round-trips v through JSON so the validator sees the value
// shapes it expects (json.Number, []any, map[string]any).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}
