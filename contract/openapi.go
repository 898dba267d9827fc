package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/erraggy/paramcontract/pcerrors"
)

// ResolutionModeExtension is the OpenAPI operation extension that selects the
// resolution mode of the generated contract.
const ResolutionModeExtension = "x-resolution-mode"

type oasDocument struct {
	OpenAPI    string                 `json:"openapi"`
	Paths      map[string]oasPathItem `json:"paths"`
	Components oasComponents          `json:"components"`
}

type oasComponents struct {
	Parameters    map[string]oasParameter   `json:"parameters"`
	RequestBodies map[string]oasRequestBody `json:"requestBodies"`
	Schemas       map[string]*oasSchema     `json:"schemas"`
}

type oasPathItem struct {
	Parameters []oasParameter `json:"parameters"`
	Get        *oasOperation  `json:"get"`
	Put        *oasOperation  `json:"put"`
	Post       *oasOperation  `json:"post"`
	Delete     *oasOperation  `json:"delete"`
	Options    *oasOperation  `json:"options"`
	Head       *oasOperation  `json:"head"`
	Patch      *oasOperation  `json:"patch"`
	Trace      *oasOperation  `json:"trace"`
}

// operations returns the item's operations keyed by upper-case method.
func (p oasPathItem) operations() map[string]*oasOperation {
	all := map[string]*oasOperation{
		http.MethodGet:     p.Get,
		http.MethodPut:     p.Put,
		http.MethodPost:    p.Post,
		http.MethodDelete:  p.Delete,
		http.MethodOptions: p.Options,
		http.MethodHead:    p.Head,
		http.MethodPatch:   p.Patch,
		http.MethodTrace:   p.Trace,
	}
	for m, op := range all {
		if op == nil {
			delete(all, m)
		}
	}
	return all
}

type oasOperation struct {
	OperationID    string          `json:"operationId"`
	Parameters     []oasParameter  `json:"parameters"`
	RequestBody    *oasRequestBody `json:"requestBody"`
	ResolutionMode string          `json:"x-resolution-mode"`
}

type oasParameter struct {
	Ref      string     `json:"$ref"`
	Name     string     `json:"name"`
	In       string     `json:"in"`
	Required *bool      `json:"required"`
	Schema   *oasSchema `json:"schema"`
}

type oasRequestBody struct {
	Ref     string                  `json:"$ref"`
	Content map[string]oasMediaType `json:"content"`
}

type oasMediaType struct {
	Schema *oasSchema `json:"schema"`
}

type oasSchema struct {
	Ref        string                `json:"$ref"`
	Type       oasSchemaType         `json:"type"`
	Enum       []any                 `json:"enum"`
	Items      *oasSchema            `json:"items"`
	Properties map[string]*oasSchema `json:"properties"`
	Required   []string              `json:"required"`
}

// oasSchemaType accepts both the 3.0 single type and the 3.1 type array. A 3.1
// array keeps its first non-null entry.
type oasSchemaType string

func (t *oasSchemaType) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = oasSchemaType(single)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("schema type must be a string or an array of strings: %w", err)
	}
	for _, s := range list {
		if s != "null" {
			*t = oasSchemaType(s)
			return nil
		}
	}
	*t = ""
	return nil
}

// parseOpenAPI converts an OpenAPI 3.x document into contracts. Only operations
// with an operationId take part; the rest are skipped with a warning.
func parseOpenAPI(normalized []byte, cfg *loadConfig) ([]OperationContract, error) {
	var doc oasDocument
	if err := decodeNormalized(normalized, &doc); err != nil {
		return nil, &pcerrors.ParseError{Path: cfg.source, Format: "openapi", Message: "decoding OpenAPI document", Cause: err}
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		return nil, &pcerrors.ParseError{
			Path:    cfg.source,
			Format:  "openapi",
			Message: fmt.Sprintf("unsupported OpenAPI version %q (want 3.x)", doc.OpenAPI),
		}
	}

	r := &oasResolver{components: doc.Components}
	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	var contracts []OperationContract
	var errs []error
	for _, path := range paths {
		item := doc.Paths[path]
		ops := item.operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		slices.Sort(methods)

		for _, method := range methods {
			op := ops[method]
			if op.OperationID == "" {
				cfg.logger.Warn("skipping operation without operationId", "source", cfg.source, "method", method, "path", path)
				continue
			}
			c, err := r.contract(method, path, item.Parameters, op, cfg.logger)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			contracts = append(contracts, c)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	cfg.logger.Debug("openapi document decoded", "source", cfg.source, "version", doc.OpenAPI, "operations", len(contracts))
	return contracts, nil
}

// oasResolver follows local component references one hop deep.
type oasResolver struct {
	components oasComponents
}

func (r *oasResolver) contract(method, path string, shared []oasParameter, op *oasOperation, logger Logger) (OperationContract, error) {
	c := OperationContract{
		OperationID:    op.OperationID,
		Method:         method,
		Path:           path,
		ResolutionMode: ResolutionMode(op.ResolutionMode),
	}

	// Operation parameters override path-item parameters with the same name and location.
	var merged []oasParameter
	index := make(map[string]int)
	for _, list := range [][]oasParameter{shared, op.Parameters} {
		for _, raw := range list {
			p, err := r.parameter(raw)
			if err != nil {
				return c, &pcerrors.ContractError{Operation: op.OperationID, Field: "parameters", Value: raw.Ref, Message: "unresolvable parameter reference", Cause: err}
			}
			key := p.In + ":" + p.Name
			if i, ok := index[key]; ok {
				merged[i] = p
				continue
			}
			index[key] = len(merged)
			merged = append(merged, p)
		}
	}

	for _, p := range merged {
		spec := ParameterSpec{Name: p.Name, Location: Location(p.In)}
		if p.Required != nil {
			spec.Required = *p.Required
			spec.optionalSet = !*p.Required
		}
		schema, err := r.schema(p.Schema)
		if err != nil {
			return c, &pcerrors.ContractError{Operation: op.OperationID, Field: "parameters." + p.Name + ".schema", Message: "unresolvable schema reference", Cause: err}
		}
		if schema == nil {
			logger.Debug("parameter without schema treated as string", "operation", op.OperationID, "parameter", p.Name)
			spec.Type = TypeString
		} else if schema.Type == "array" {
			items, err := r.schema(schema.Items)
			if err != nil {
				return c, &pcerrors.ContractError{Operation: op.OperationID, Field: "parameters." + p.Name + ".schema.items", Message: "unresolvable schema reference", Cause: err}
			}
			spec.Repeated = true
			spec.Type = TypeString
			if items != nil {
				spec.Type = Type(items.Type)
				spec.Enum = items.Enum
			}
		} else {
			spec.Type = Type(schema.Type)
			spec.Enum = schema.Enum
		}
		c.Parameters = append(c.Parameters, spec)
	}

	if op.RequestBody != nil {
		body, err := r.requestBody(*op.RequestBody)
		if err != nil {
			return c, &pcerrors.ContractError{Operation: op.OperationID, Field: "requestBody", Value: op.RequestBody.Ref, Message: "unresolvable request body reference", Cause: err}
		}
		mediaTypes := make([]string, 0, len(body.Content))
		for mt := range body.Content {
			mediaTypes = append(mediaTypes, mt)
		}
		slices.Sort(mediaTypes)
		for _, mt := range mediaTypes {
			ct := ParseContentType(mt)
			if !ct.Valid() {
				logger.Warn("skipping unsupported request body media type", "operation", op.OperationID, "contentType", mt)
				continue
			}
			bs := BodySchema{ContentType: ct, Properties: map[string]Property{}}
			schema, err := r.schema(body.Content[mt].Schema)
			if err != nil {
				return c, &pcerrors.ContractError{Operation: op.OperationID, Field: "requestBody." + mt + ".schema", Message: "unresolvable schema reference", Cause: err}
			}
			if schema != nil {
				for name, prop := range schema.Properties {
					resolved, err := r.schema(prop)
					if err != nil {
						return c, &pcerrors.ContractError{Operation: op.OperationID, Field: "requestBody." + mt + ".properties." + name, Message: "unresolvable schema reference", Cause: err}
					}
					var t Type
					if resolved != nil {
						t = Type(resolved.Type)
					}
					bs.Properties[name] = Property{Type: t, Required: slices.Contains(schema.Required, name)}
				}
			}
			c.Bodies = append(c.Bodies, bs)
		}
	}
	return c, nil
}

func (r *oasResolver) parameter(p oasParameter) (oasParameter, error) {
	if p.Ref == "" {
		return p, nil
	}
	name, ok := strings.CutPrefix(p.Ref, "#/components/parameters/")
	if !ok {
		return p, fmt.Errorf("only local component references are supported: %s", p.Ref)
	}
	target, ok := r.components.Parameters[name]
	if !ok || target.Ref != "" {
		return p, fmt.Errorf("reference %s not found or nested", p.Ref)
	}
	return target, nil
}

func (r *oasResolver) requestBody(b oasRequestBody) (oasRequestBody, error) {
	if b.Ref == "" {
		return b, nil
	}
	name, ok := strings.CutPrefix(b.Ref, "#/components/requestBodies/")
	if !ok {
		return b, fmt.Errorf("only local component references are supported: %s", b.Ref)
	}
	target, ok := r.components.RequestBodies[name]
	if !ok || target.Ref != "" {
		return b, fmt.Errorf("reference %s not found or nested", b.Ref)
	}
	return target, nil
}

func (r *oasResolver) schema(s *oasSchema) (*oasSchema, error) {
	if s == nil || s.Ref == "" {
		return s, nil
	}
	name, ok := strings.CutPrefix(s.Ref, "#/components/schemas/")
	if !ok {
		return nil, fmt.Errorf("only local component references are supported: %s", s.Ref)
	}
	target, ok := r.components.Schemas[name]
	if !ok || target == nil || target.Ref != "" {
		return nil, fmt.Errorf("reference %s not found or nested", s.Ref)
	}
	return target, nil
}
