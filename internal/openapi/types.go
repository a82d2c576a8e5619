package openapi

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// TypeMapping is an OpenAPI type/format pair.
type TypeMapping struct {
	Type   string // string, integer, number, boolean, object, array
	Format string // int32, int64, double, date-time, uuid, etc.
}

var timeType = reflect.TypeOf(time.Time{})

// kindToOpenAPI maps Go scalar kinds to OpenAPI types.
var kindToOpenAPI = map[reflect.Kind]TypeMapping{
	reflect.Bool:    {"boolean", ""},
	reflect.Int:     {"integer", "int64"},
	reflect.Int8:    {"integer", "int32"},
	reflect.Int16:   {"integer", "int32"},
	reflect.Int32:   {"integer", "int32"},
	reflect.Int64:   {"integer", "int64"},
	reflect.Uint:    {"integer", "int64"},
	reflect.Uint8:   {"integer", "int32"},
	reflect.Uint16:  {"integer", "int32"},
	reflect.Uint32:  {"integer", "int64"},
	reflect.Uint64:  {"integer", "int64"},
	reflect.Float32: {"number", "float"},
	reflect.Float64: {"number", "double"},
	reflect.String:  {"string", ""},
}

// MapGoType returns the OpenAPI mapping for a Go type. Pointers are
// dereferenced; unknown kinds fall back to string.
func MapGoType(t reflect.Type) TypeMapping {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return TypeMapping{"string", "date-time"}
	case t.Kind() == reflect.Struct, t.Kind() == reflect.Map:
		return TypeMapping{"object", ""}
	case t.Kind() == reflect.Slice, t.Kind() == reflect.Array:
		return TypeMapping{"array", ""}
	}
	if m, ok := kindToOpenAPI[t.Kind()]; ok {
		return m
	}
	return TypeMapping{"string", ""}
}

// SchemaOf builds an inline schema for the value's type. Struct fields are
// named by their json tags and constrained by their validate tags.
func SchemaOf(v any) *openapi3.Schema {
	return schemaForType(reflect.TypeOf(v))
}

func schemaForType(t reflect.Type) *openapi3.Schema {
	nullable := false
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
		nullable = true
	}

	m := MapGoType(t)
	s := &openapi3.Schema{
		Type:     &openapi3.Types{m.Type},
		Format:   m.Format,
		Nullable: nullable,
	}

	switch m.Type {
	case "array":
		s.Items = openapi3.NewSchemaRef("", schemaForType(t.Elem()))
	case "object":
		if t.Kind() == reflect.Struct {
			s.Properties = openapi3.Schemas{}
			addFields(s, t)
		}
	}
	return s
}

func addFields(s *openapi3.Schema, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, skip := jsonName(f)
		if skip {
			continue
		}
		prop := schemaForType(f.Type)
		if prop.Type.Is("string") && (name == "id" || strings.HasSuffix(name, "_id")) {
			prop.Format = "uuid"
		}
		if applyValidation(prop, f.Tag.Get("validate")) {
			s.Required = append(s.Required, name)
		}
		s.Properties[name] = openapi3.NewSchemaRef("", prop)
	}
}

func jsonName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, false
}

// applyValidation translates validator rules into schema constraints and
// reports whether the field is required.
func applyValidation(s *openapi3.Schema, tag string) bool {
	if tag == "" {
		return false
	}
	required := false
	for _, rule := range strings.Split(tag, ",") {
		key, param, _ := strings.Cut(rule, "=")
		switch key {
		case "dive":
			return required
		case "required":
			required = true
		case "email":
			s.Format = "email"
		case "url":
			s.Format = "uri"
		case "fqdn":
			s.Format = "hostname"
		case "oneof":
			for _, v := range strings.Fields(param) {
				s.Enum = append(s.Enum, v)
			}
		case "len":
			if n, err := strconv.ParseUint(param, 10, 64); err == nil && s.Type.Is("string") {
				s.MinLength = n
				s.MaxLength = &n
			}
		case "min", "max":
			applyBound(s, key, param)
		}
	}
	return required
}

func applyBound(s *openapi3.Schema, key, param string) {
	switch {
	case s.Type.Is("string"):
		n, err := strconv.ParseUint(param, 10, 64)
		if err != nil {
			return
		}
		if key == "min" {
			s.MinLength = n
		} else {
			s.MaxLength = &n
		}
	case s.Type.Is("array"):
		n, err := strconv.ParseUint(param, 10, 64)
		if err != nil {
			return
		}
		if key == "min" {
			s.MinItems = n
		} else {
			s.MaxItems = &n
		}
	case s.Type.Is("number"), s.Type.Is("integer"):
		f, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return
		}
		if key == "min" {
			s.Min = &f
		} else {
			s.Max = &f
		}
	}
}
