package openapi

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// schemaFor returns a reference to a component schema for example's type, registering it
// on first use. Field names come from json tags; constraints from validate tags.
func (o *OpenAPI) schemaFor(example any) *openapi3.SchemaRef {
	o.mu.Lock()
	defer o.mu.Unlock()

	if example == nil {
		return &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}
	}
	return o.typeSchema(reflect.TypeOf(example))
}

func (o *OpenAPI) typeSchema(t reflect.Type) *openapi3.SchemaRef {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: openapi3.NewIntegerSchema()}
	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: openapi3.NewFloat64Schema()}
	case reflect.Bool:
		return &openapi3.SchemaRef{Value: openapi3.NewBoolSchema()}
	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{Value: openapi3.NewArraySchema().WithItems(o.typeSchema(t.Elem()).Value)}
	case reflect.Struct:
		if t.PkgPath() == "time" && t.Name() == "Time" {
			return &openapi3.SchemaRef{Value: openapi3.NewDateTimeSchema()}
		}
		return o.structSchema(t)
	default:
		return &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}
	}
}

func (o *OpenAPI) structSchema(t reflect.Type) *openapi3.SchemaRef {
	if t.Name() == "" {
		return &openapi3.SchemaRef{Value: o.buildStructSchema(t)}
	}

	key := t.PkgPath() + "." + t.Name()
	if name, ok := o.schemas[key]; ok {
		return openapi3.NewSchemaRef("#/components/schemas/"+name, o.spec.Components.Schemas[name].Value)
	}

	name := t.Name()
	for i := 2; o.spec.Components.Schemas[name] != nil; i++ {
		name = t.Name() + strconv.Itoa(i)
	}
	o.schemas[key] = name

	schema := o.buildStructSchema(t)
	o.spec.Components.Schemas[name] = &openapi3.SchemaRef{Value: schema}
	return openapi3.NewSchemaRef("#/components/schemas/"+name, schema)
}

func (o *OpenAPI) buildStructSchema(t reflect.Type) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, omitempty := jsonName(field)
		if name == "-" {
			continue
		}

		prop := o.typeSchema(field.Type)
		if prop.Ref == "" {
			applyValidateTag(prop.Value, field.Tag.Get("validate"))
			if doc := field.Tag.Get("doc"); doc != "" {
				prop.Value.Description = doc
			}
			if ex := field.Tag.Get("example"); ex != "" {
				prop.Value.Example = ex
			}
		}
		schema.Properties[name] = prop

		if !omitempty || hasRule(field.Tag.Get("validate"), "required") {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

func jsonName(field reflect.StructField) (string, bool) {
	parts := strings.Split(field.Tag.Get("json"), ",")
	name := parts[0]
	if name == "" {
		name = field.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			return name, true
		}
	}
	return name, false
}

// applyValidateTag maps the validator rules that have an OpenAPI equivalent.
func applyValidateTag(schema *openapi3.Schema, tag string) {
	for _, rule := range strings.Split(tag, ",") {
		name, arg, _ := strings.Cut(rule, "=")
		switch name {
		case "email":
			schema.Format = "email"
		case "url":
			schema.Format = "uri"
		case "min":
			if n, err := strconv.ParseUint(arg, 10, 64); err == nil && schema.Type.Is("string") {
				schema.MinLength = n
			}
		case "max":
			if n, err := strconv.ParseUint(arg, 10, 64); err == nil && schema.Type.Is("string") {
				schema.MaxLength = &n
			}
		}
	}
}

func hasRule(tag, rule string) bool {
	for _, r := range strings.Split(tag, ",") {
		if r == rule {
			return true
		}
	}
	return false
}
