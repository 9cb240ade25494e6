package dsl

import (
	"fmt"
	"strings"

	"github.com/wippyai/abstruct/codec"
	"github.com/wippyai/abstruct/errors"
	"github.com/wippyai/abstruct/schema"
)

var presets = map[string]codec.Format{
	"u8":   codec.U8,
	"u16":  codec.U16,
	"u32":  codec.U32,
	"u64":  codec.U64,
	"i8":   codec.I8,
	"i16":  codec.I16,
	"i32":  codec.I32,
	"i64":  codec.I64,
	"char": codec.C,
}

var sums = map[string]schema.SumFunc{
	"crc32": schema.CRC32,
	"xor8":  schema.XOR8,
	"sum8":  schema.Sum8,
}

var complianceNames = map[string]schema.Compliance{
	"none":    schema.ComplianceNone,
	"enum":    schema.ComplianceEnum,
	"magic":   schema.ComplianceMagic,
	"inherit": schema.ComplianceInherit,
}

// compile returns the schema called name, compiling it and everything it
// references on first use.
func (r *Registry) compile(name string) (*schema.Schema, error) {
	if s, ok := r.schemas[name]; ok {
		return s, nil
	}
	def, ok := r.defs[name]
	if !ok {
		return nil, errors.Schema(fmt.Sprintf("unknown schema %q", name))
	}
	if r.active[name] {
		return nil, errors.Schema(fmt.Sprintf("schema %q contains itself", name))
	}
	r.active[name] = true
	defer delete(r.active, name)

	var base *schema.Schema
	if def.Extends != "" {
		b, err := r.compile(def.Extends)
		if err != nil {
			return nil, errors.Prepend(err, name)
		}
		base = b
	}

	specs := make([]schema.FieldSpec, 0, len(def.Fields))
	for i, fd := range def.Fields {
		spec, err := r.field(fd)
		if err != nil {
			label := fmt.Sprintf("#%d", i)
			if fd != nil && fd.Name != "" {
				label = fd.Name
			}
			return nil, errors.Prepend(errors.Prepend(err, label), name)
		}
		specs = append(specs, spec)
	}

	var s *schema.Schema
	err := declare(func() {
		if base != nil {
			s = base.Extend(name, specs...)
			return
		}
		s = schema.Define(name, specs...)
	})
	if err != nil {
		return nil, err
	}
	r.schemas[name] = s
	return s, nil
}

// declare turns declaration panics into errors.
func declare(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e, ok := rec.(error)
			if !ok {
				panic(rec)
			}
			err = e
		}
	}()
	fn()
	return nil
}

func (r *Registry) field(fd *FieldDef) (schema.FieldSpec, error) {
	if fd == nil {
		return schema.FieldSpec{}, errors.Schema("empty field")
	}
	if fd.Name == "" {
		return schema.FieldSpec{}, errors.Schema("field without name")
	}
	opts, err := r.options(fd)
	if err != nil {
		return schema.FieldSpec{}, err
	}
	var (
		spec     schema.FieldSpec
		buildErr error
	)
	if err := declare(func() { spec, buildErr = r.build(fd, opts) }); err != nil {
		return schema.FieldSpec{}, err
	}
	return spec, buildErr
}

func (r *Registry) build(fd *FieldDef, opts []schema.FieldOption) (schema.FieldSpec, error) {
	typ := strings.ToLower(fd.Type)
	if f, ok := presets[typ]; ok {
		return schema.Scalar(fd.Name, endian(f, fd.Endian), opts...), nil
	}
	switch typ {
	case "", "int":
		if fd.Format == "" {
			return schema.FieldSpec{}, errors.Schema("integer field needs a type or format")
		}
		f, err := codec.ParseFormat(fd.Format)
		if err != nil {
			return schema.FieldSpec{}, errors.Wrap(errors.PhaseSchema, errors.KindSchema, err, "format")
		}
		return schema.Scalar(fd.Name, f, opts...), nil

	case "bytes":
		switch {
		case fd.SizeFrom != "":
			return schema.BytesLen(fd.Name, fd.SizeFrom, opts...), nil
		case fd.Size != nil:
			return schema.Bytes(fd.Name, *fd.Size, opts...), nil
		}
		return schema.FieldSpec{}, errors.Schema("bytes field needs size or size_from")

	case "padding":
		return schema.Padding(fd.Name, opts...), nil

	case "uvarint":
		return schema.Uvarint(fd.Name, opts...), nil

	case "varint":
		return schema.Varint(fd.Name, opts...), nil

	case "chunk":
		if fd.Ref == "" {
			return schema.FieldSpec{}, errors.Schema("chunk field needs ref")
		}
		s, err := r.compile(fd.Ref)
		if err != nil {
			return schema.FieldSpec{}, err
		}
		return schema.Embed(fd.Name, s, opts...), nil

	case "array":
		return r.array(fd, opts)

	case "select":
		return r.union(fd, opts)

	case "checksum":
		f := codec.U32
		if fd.Format != "" {
			parsed, err := codec.ParseFormat(fd.Format)
			if err != nil {
				return schema.FieldSpec{}, errors.Wrap(errors.PhaseSchema, errors.KindSchema, err, "format")
			}
			f = parsed
		} else {
			f = endian(f, fd.Endian)
		}
		algo := strings.ToLower(fd.Algorithm)
		if algo == "" {
			algo = "crc32"
		}
		sum, ok := sums[algo]
		if !ok {
			return schema.FieldSpec{}, errors.Schema(fmt.Sprintf("unknown checksum algorithm %q", fd.Algorithm))
		}
		return schema.Checksum(fd.Name, f, fd.Over, sum, opts...), nil
	}
	return schema.FieldSpec{}, errors.Schema(fmt.Sprintf("unknown field type %q", fd.Type))
}

func (r *Registry) array(fd *FieldDef, opts []schema.FieldOption) (schema.FieldSpec, error) {
	if fd.Element == nil {
		return schema.FieldSpec{}, errors.Schema("array field needs element")
	}
	el := *fd.Element
	if el.Name == "" {
		el.Name = fd.Name
	}
	elem, err := r.field(&el)
	if err != nil {
		return schema.FieldSpec{}, errors.Prepend(err, "element")
	}
	aopts := []schema.ArrayOption{schema.ArrayWith(opts...)}
	if fd.Count != nil {
		aopts = append(aopts, schema.Count(*fd.Count))
	}
	if fd.CountFrom != "" {
		aopts = append(aopts, schema.CountFrom(fd.CountFrom))
	}
	if fd.Until != nil {
		aopts = append(aopts, schema.Canary(canary(fd.Until)))
	}
	return schema.Array(fd.Name, elem, aopts...), nil
}

func (r *Registry) union(fd *FieldDef, opts []schema.FieldOption) (schema.FieldSpec, error) {
	if fd.Key == "" {
		return schema.FieldSpec{}, errors.Schema("select field needs key")
	}
	table := make(schema.Table, len(fd.Cases)+1)
	for _, c := range fd.Cases {
		if c.Value == nil {
			return schema.FieldSpec{}, errors.Schema("select case needs value")
		}
		spec, err := r.variant(fd.Name, c.Ref, c.Field)
		if err != nil {
			return schema.FieldSpec{}, errors.Prepend(err, fmt.Sprint(c.Value))
		}
		table[c.Value] = spec
	}
	if fd.DefaultCase != nil {
		spec, err := r.variant(fd.Name, fd.DefaultCase.Ref, fd.DefaultCase)
		if err != nil {
			return schema.FieldSpec{}, errors.Prepend(err, "default")
		}
		table[schema.DefaultCase] = spec
	}
	return schema.SelectOn(fd.Name, fd.Key, table, opts...), nil
}

// variant compiles a select entry given either as a schema reference or
// as an inline field.
func (r *Registry) variant(name, ref string, fd *FieldDef) (schema.FieldSpec, error) {
	if ref != "" {
		s, err := r.compile(ref)
		if err != nil {
			return schema.FieldSpec{}, err
		}
		return schema.Embed(name, s), nil
	}
	if fd == nil {
		return schema.FieldSpec{}, errors.Schema("select case needs ref or field")
	}
	f := *fd
	if f.Name == "" {
		f.Name = name
	}
	return r.field(&f)
}

func (r *Registry) options(fd *FieldDef) ([]schema.FieldOption, error) {
	var opts []schema.FieldOption
	if fd.Default != nil {
		opts = append(opts, schema.Default(fd.Default))
	}
	if fd.Magic {
		opts = append(opts, schema.Magic())
	}
	if fd.Equals != "" {
		opts = append(opts, schema.EqualsTo(fd.Equals))
	}
	if fd.At != "" {
		opts = append(opts, schema.At(fd.At))
	}
	if fd.AtOffset != nil {
		opts = append(opts, schema.AtOffset(*fd.AtOffset))
	}
	if fd.Enum != "" {
		e, ok := r.enums[fd.Enum]
		if !ok {
			return nil, errors.Schema(fmt.Sprintf("unknown enum %q", fd.Enum))
		}
		opts = append(opts, schema.WithEnum(e))
	}
	if len(fd.Compliance) > 0 {
		var flags schema.Compliance
		for _, name := range fd.Compliance {
			c, ok := complianceNames[strings.ToLower(name)]
			if !ok {
				return nil, errors.Schema(fmt.Sprintf("unknown compliance flag %q", name))
			}
			flags |= c
		}
		opts = append(opts, schema.WithCompliance(flags))
	}
	return opts, nil
}

func endian(f codec.Format, order string) codec.Format {
	switch strings.ToLower(order) {
	case "big", "be":
		return f.BigEndian()
	}
	return f
}

// canary matches an element, or the field at Path inside it, against the
// configured value.
func canary(def *CanaryDef) func(schema.Field) bool {
	return func(f schema.Field) bool {
		if def.Path != "" {
			c, ok := f.(*schema.Chunk)
			if !ok {
				return false
			}
			target, err := c.Lookup(def.Path)
			if err != nil {
				return false
			}
			f = target
		}
		return matches(f.Value(), def.Equals)
	}
}

func matches(v, want any) bool {
	switch x := v.(type) {
	case []byte:
		s, ok := want.(string)
		return ok && string(x) == s
	case uint64:
		n, ok := asInt(want)
		return ok && n >= 0 && uint64(n) == x
	case int64:
		n, ok := asInt(want)
		return ok && n == x
	}
	return false
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	}
	return 0, false
}
