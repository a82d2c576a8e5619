package openapi

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

// ProblemSchema is the component name of the problem-detail error body.
const ProblemSchema = "Problem"

// Info describes the generated document.
type Info struct {
	Title       string
	Description string
	Version     string
	ServerURL   string
}

// Param is a query parameter accepted by an operation.
type Param struct {
	Name        string
	Description string
	Integer     bool
}

// Operation describes one method on one path.
type Operation struct {
	Tag         string
	ID          string
	Summary     string
	Description string
	Params      []Param
	// Body is a registered component name for the request body, or "".
	Body string
	// Response is a registered component name for the data payload, or ""
	// when the operation returns no content.
	Response string
	// List wraps the response in a paginated envelope.
	List bool
	// Status is the success status code. Defaults to 200, or 204 when
	// Response is empty.
	Status int
}

// Builder accumulates schemas and operations into an OpenAPI 3.1 document.
type Builder struct {
	doc *openapi3.T
}

// NewBuilder creates a document with bearer security and the shared
// problem-detail schema already registered.
func NewBuilder(info Info) *Builder {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       info.Title,
			Description: info.Description,
			Version:     info.Version,
		},
	}
	if info.ServerURL != "" {
		doc.Servers = openapi3.Servers{{URL: info.ServerURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "ks_<live|test>_<secret>",
			Description:  "Organization API key.",
		},
	}
	doc.Security = openapi3.SecurityRequirements{{"bearerAuth": {}}}
	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas[ProblemSchema] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"type", "title", "status", "detail"},
			Properties: openapi3.Schemas{
				"type":     &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"title":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"status":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
				"detail":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"instance": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		},
	}

	return &Builder{doc: doc}
}

// Schema registers a component schema generated from v's type.
func (b *Builder) Schema(name string, v any) {
	b.doc.Components.Schemas[name] = &openapi3.SchemaRef{Value: SchemaOf(v)}
}

// Add attaches an operation to a path. Path parameters written as {name}
// are declared automatically.
func (b *Builder) Add(path, method string, op Operation) error {
	if op.Body != "" && !b.has(op.Body) {
		return fmt.Errorf("operation %s %s: unknown body schema %q", method, path, op.Body)
	}
	if op.Response != "" && !b.has(op.Response) {
		return fmt.Errorf("operation %s %s: unknown response schema %q", method, path, op.Response)
	}

	item := b.doc.Paths.Value(path)
	if item == nil {
		item = &openapi3.PathItem{}
		for _, name := range pathParams(path) {
			item.Parameters = append(item.Parameters, &openapi3.ParameterRef{
				Value: openapi3.NewPathParameter(name).WithSchema(&openapi3.Schema{
					Type:   &openapi3.Types{"string"},
					Format: "uuid",
				}),
			})
		}
		b.doc.Paths.Set(path, item)
	}
	if item.GetOperation(method) != nil {
		return fmt.Errorf("operation %s %s registered twice", method, path)
	}
	item.SetOperation(method, b.operation(op))
	return nil
}

// Document returns the assembled document.
func (b *Builder) Document() *openapi3.T {
	return b.doc
}

func (b *Builder) has(name string) bool {
	_, ok := b.doc.Components.Schemas[name]
	return ok
}

func (b *Builder) operation(op Operation) *openapi3.Operation {
	o := &openapi3.Operation{
		Tags:        []string{op.Tag},
		OperationID: op.ID,
		Summary:     op.Summary,
		Description: op.Description,
	}
	if op.List {
		o.Parameters = append(o.Parameters, paginationParameters()...)
	}
	for _, p := range op.Params {
		s := openapi3.NewStringSchema()
		if p.Integer {
			s = &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}
		}
		o.Parameters = append(o.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(p.Name).WithDescription(p.Description).WithSchema(s),
		})
	}
	if op.Body != "" {
		o.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(openapi3.NewSchemaRef(componentRef(op.Body), nil)),
		}
	}

	status := op.Status
	if status == 0 {
		status = http.StatusOK
		if op.Response == "" {
			status = http.StatusNoContent
		}
	}
	o.Responses = newResponses(status, op.Summary, responseSchema(op))
	return o
}

func responseSchema(op Operation) *openapi3.SchemaRef {
	if op.Response == "" {
		return nil
	}
	item := openapi3.NewSchemaRef(componentRef(op.Response), nil)
	if op.List {
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type: &openapi3.Types{"object"},
				Properties: openapi3.Schemas{
					"data": &openapi3.SchemaRef{
						Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: item},
					},
					"meta": metaSchema(),
				},
			},
		}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: openapi3.Schemas{"data": item},
		},
	}
}

func paginationParameters() openapi3.Parameters {
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("page").
				WithDescription("Page number, starting at 1.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32", Min: openapi3.Float64Ptr(1)}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("per_page").
				WithDescription("Records per page (default 20, at most 100).").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32", Min: openapi3.Float64Ptr(1), Max: openapi3.Float64Ptr(100)}),
		},
	}
}

// newResponses builds a success response plus the problem-detail error
// responses every gateway operation can produce.
func newResponses(status int, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()
	successDesc := description
	success := &openapi3.Response{Description: &successDesc}
	if schema != nil {
		success.Content = openapi3.NewContentWithJSONSchemaRef(schema)
	}
	responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: success})

	problemRef := openapi3.NewSchemaRef(componentRef(ProblemSchema), nil)
	codes := []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
	}
	for _, code := range codes {
		desc := http.StatusText(code)
		content := openapi3.NewContent()
		content["application/problem+json"] = openapi3.NewMediaType().WithSchemaRef(problemRef)
		responses.Set(strconv.Itoa(code), &openapi3.ResponseRef{
			Value: &openapi3.Response{Description: &desc, Content: content},
		})
	}
	return responses
}

func metaSchema() *openapi3.SchemaRef {
	integer := func(desc string) *openapi3.SchemaRef {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:        &openapi3.Types{"integer"},
			Format:      "int64",
			Description: desc,
		}}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"total", "page", "per_page", "total_pages"},
			Properties: openapi3.Schemas{
				"total":       integer("Records matching the query."),
				"page":        integer("Current page."),
				"per_page":    integer("Records per page."),
				"total_pages": integer("Number of pages."),
			},
		},
	}
}

var paramPattern = regexp.MustCompile(`\{([^}]+)\}`)

func pathParams(path string) []string {
	var names []string
	for _, m := range paramPattern.FindAllStringSubmatch(path, -1) {
		names = append(names, m[1])
	}
	return names
}

func componentRef(name string) string {
	return "#/components/schemas/" + name
}

// Tags returns the sorted set of tags used by the document's operations.
func Tags(doc *openapi3.T) []string {
	seen := map[string]bool{}
	for _, item := range doc.Paths.Map() {
		for _, op := range item.Operations() {
			for _, tag := range op.Tags {
				seen[tag] = true
			}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
