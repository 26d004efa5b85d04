package engine

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

var pathParam = regexp.MustCompile(`\{([^}/]+)\}`)

// OpenAPIDocument describes the routes registered by Routes.
func (e *Engine) OpenAPIDocument() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Identity Service Auth API",
			Description: "Authentication routes exposed by the identity service.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{{URL: e.authURL("")}},
		Paths:   openapi3.NewPaths(),
	}

	for _, rt := range e.routes {
		op := openapi3.NewOperation()
		op.Summary = rt.Summary
		op.OperationID = operationID(rt.Method, rt.Path)
		op.Tags = []string{routeTag(rt.Path)}
		for _, m := range pathParam.FindAllStringSubmatch(rt.Path, -1) {
			op.AddParameter(openapi3.NewPathParameter(m[1]).WithSchema(openapi3.NewStringSchema()))
		}
		if rt.Method == http.MethodPost {
			op.RequestBody = &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().WithJSONSchema(openapi3.NewObjectSchema()),
			}
		}
		op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Success"))
		op.AddResponse(http.StatusBadRequest, openapi3.NewResponse().WithDescription("Invalid request"))
		doc.AddOperation(rt.Path, rt.Method, op)
	}
	return doc
}

func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, part := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '-' || r == '{' || r == '}'
	}) {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

func routeTag(path string) string {
	first, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	switch first {
	case "admin", "organization":
		return first
	default:
		return "auth"
	}
}

func (e *Engine) openAPIReference(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, e.OpenAPIDocument())
}
