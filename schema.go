package lazyq

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

const tagKey = "lazyq"

// errNotStruct signals an entity type that is not a struct.
var errNotStruct = errors.New("not a struct")

// schemaMeta holds parsed struct tag metadata, cached per builder.
type schemaMeta struct {
	typ reflect.Type // struct type for reconstruction
	ptr bool         // entity type is *struct

	idIdx int // -1 if not present

	// Mapping from attribute name to struct field index.
	fields map[string]int
}

// parseSchema reflects on T and extracts lazyq struct tag metadata.
func parseSchema[T any]() (*schemaMeta, error) {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	ptr := false
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		ptr = true
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("lazyq: type %s: %w", t, errNotStruct)
	}

	meta := &schemaMeta{typ: t, ptr: ptr, idIdx: -1, fields: make(map[string]int)}

	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" || !f.IsExported() {
			continue
		}
		if err := applyTag(meta, i, f.Name, tag); err != nil {
			return nil, err
		}
	}
	return meta, nil
}

// applyTag processes a single struct field's lazyq tag.
func applyTag(meta *schemaMeta, idx int, fieldName, tag string) error {
	name, modifier, _ := strings.Cut(tag, ",")

	switch modifier {
	case "id":
		if meta.idIdx != -1 {
			return fmt.Errorf("lazyq: duplicate id tag on field %s", fieldName)
		}
		meta.idIdx = idx
	case "":
	default:
		return fmt.Errorf("lazyq: unknown modifier %q on field %s", modifier, fieldName)
	}

	if name == "" {
		return nil
	}
	if _, dup := meta.fields[name]; dup {
		return fmt.Errorf("lazyq: duplicate attribute %q on field %s", name, fieldName)
	}
	meta.fields[name] = idx
	return nil
}

// content returns the string form of the struct field tagged as attr.
func (m *schemaMeta) content(item any, attr string) (string, bool) {
	idx, ok := m.fields[attr]
	if !ok {
		return "", false
	}
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Type() != m.typ {
		return "", false
	}
	return fmt.Sprint(v.Field(idx).Interface()), true
}

// fromHash builds an entity from a stored hash. Unknown hash fields are
// ignored; the id field is set from id.
func (m *schemaMeta) fromHash(id uint64, hash map[string]string) (any, error) {
	p := reflect.New(m.typ)
	v := p.Elem()

	if m.idIdx != -1 {
		if err := setString(v.Field(m.idIdx), strconv.FormatUint(id, 10)); err != nil {
			return nil, fmt.Errorf("field %s: %w", m.typ.Field(m.idIdx).Name, err)
		}
	}
	for name, idx := range m.fields {
		if idx == m.idIdx {
			continue
		}
		raw, ok := hash[name]
		if !ok {
			continue
		}
		if err := setString(v.Field(idx), raw); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
	}

	if m.ptr {
		return p.Interface(), nil
	}
	return v.Interface(), nil
}

func setString(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}
