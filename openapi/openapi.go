package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

// OpenAPI is a document built up by the handlers that serve the routes it describes.
type OpenAPI struct {
	spec    *openapi3.T
	mu      sync.RWMutex
	schemas map[string]string
}

func New(title, version string) *OpenAPI {
	return &OpenAPI{
		spec: &openapi3.T{
			OpenAPI: "3.0.3",
			Info: &openapi3.Info{
				Title:   title,
				Version: version,
			},
			Paths: openapi3.NewPaths(),
			Components: &openapi3.Components{
				Schemas: make(openapi3.Schemas),
			},
		},
		schemas: make(map[string]string),
	}
}

func (o *OpenAPI) Description(desc string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Info.Description = desc
	return o
}

func (o *OpenAPI) Server(url, description string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Servers = append(o.spec.Servers, &openapi3.Server{
		URL:         url,
		Description: description,
	})
	return o
}

func (o *OpenAPI) Tag(name, description string) *OpenAPI {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.spec.Tags = append(o.spec.Tags, &openapi3.Tag{
		Name:        name,
		Description: description,
	})
	return o
}

func (o *OpenAPI) Spec() *openapi3.T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.spec
}

// Validate checks the document against the OpenAPI 3 rules.
func (o *OpenAPI) Validate(ctx context.Context) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.spec.Validate(ctx)
}

func (o *OpenAPI) JSON() ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return json.MarshalIndent(o.spec, "", "  ")
}

func (o *OpenAPI) YAML() ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	intermediate, err := o.spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(intermediate)
}

func (o *OpenAPI) JSONHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := o.JSON()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

func (o *OpenAPI) YAMLHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := o.YAML()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
}

// Register serves the document at prefix + ".json" and prefix + ".yaml".
func (o *OpenAPI) Register(e *echo.Echo, prefix string) {
	e.GET(prefix+".json", o.JSONHandler())
	e.GET(prefix+".yaml", o.YAMLHandler())
}

func (o *OpenAPI) Document(method, path string) *RouteBuilder {
	return &RouteBuilder{
		openapi:   o,
		method:    method,
		path:      path,
		operation: &openapi3.Operation{Responses: openapi3.NewResponses()},
	}
}

func (o *OpenAPI) addOperation(method, path string, op *openapi3.Operation) {
	o.mu.Lock()
	defer o.mu.Unlock()

	openAPIPath := echoPathToOpenAPI(path)

	pathItem := o.spec.Paths.Find(openAPIPath)
	if pathItem == nil {
		pathItem = &openapi3.PathItem{}
		o.spec.Paths.Set(openAPIPath, pathItem)
	}
	pathItem.SetOperation(strings.ToUpper(method), op)
}

func echoPathToOpenAPI(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, ":") {
			parts[i] = "{" + strings.TrimPrefix(part, ":") + "}"
		}
	}
	return strings.Join(parts, "/")
}
