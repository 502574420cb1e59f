package openapi

import (
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

type RouteBuilder struct {
	openapi   *OpenAPI
	method    string
	path      string
	operation *openapi3.Operation
}

func (rb *RouteBuilder) Summary(summary string) *RouteBuilder {
	rb.operation.Summary = summary
	return rb
}

func (rb *RouteBuilder) Description(description string) *RouteBuilder {
	rb.operation.Description = description
	return rb
}

func (rb *RouteBuilder) OperationID(id string) *RouteBuilder {
	rb.operation.OperationID = id
	return rb
}

func (rb *RouteBuilder) Tags(tags ...string) *RouteBuilder {
	rb.operation.Tags = append(rb.operation.Tags, tags...)
	return rb
}

func (rb *RouteBuilder) Body(example any, description string) *RouteBuilder {
	rb.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{
					Schema: rb.openapi.schemaFor(example),
				},
			},
		},
	}
	return rb
}

func (rb *RouteBuilder) Response(statusCode int, example any, description string) *RouteBuilder {
	var content openapi3.Content
	if example != nil {
		content = openapi3.Content{
			"application/json": &openapi3.MediaType{
				Schema: rb.openapi.schemaFor(example),
			},
		}
	}

	rb.operation.Responses.Set(strconv.Itoa(statusCode), &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &description,
			Content:     content,
		},
	})
	return rb
}

// ResponseHeader documents a header on an already documented response.
func (rb *RouteBuilder) ResponseHeader(statusCode int, name, description string) *RouteBuilder {
	resp := rb.operation.Responses.Value(strconv.Itoa(statusCode))
	if resp == nil || resp.Value == nil {
		return rb
	}
	if resp.Value.Headers == nil {
		resp.Value.Headers = make(openapi3.Headers)
	}
	resp.Value.Headers[name] = &openapi3.HeaderRef{
		Value: &openapi3.Header{
			Parameter: openapi3.Parameter{
				Description: description,
				Schema:      &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		},
	}
	return rb
}

func (rb *RouteBuilder) Build() {
	if rb.operation.OperationID == "" {
		rb.operation.OperationID = strings.ToLower(rb.method) + operationSuffix(rb.path)
	}
	rb.openapi.addOperation(rb.method, rb.path, rb.operation)
}

func operationSuffix(path string) string {
	var b strings.Builder
	for _, part := range strings.Split(path, "/") {
		part = strings.TrimPrefix(part, ":")
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}
