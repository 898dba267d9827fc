package contract

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/erraggy/paramcontract/pcerrors"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format identifies the syntax of a contract document.
type Format string

// Supported document formats. FormatAuto picks JSON for input starting with '{'
// and YAML otherwise.
const (
	FormatAuto Format = ""
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath infers the document format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatAuto
	}
}

//go:embed schema.json
var documentSchemaBytes []byte

const documentSchemaURL = "https://github.com/erraggy/paramcontract/contract-document.json"

var documentSchema = mustCompileDocumentSchema()

func mustCompileDocumentSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(documentSchemaBytes))
	if err != nil {
		panic(fmt.Sprintf("contract: embedded schema is not valid JSON: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource(documentSchemaURL, doc); err != nil {
		panic(fmt.Sprintf("contract: embedded schema: %v", err))
	}
	return compiler.MustCompile(documentSchemaURL)
}

var schemaPrinter = message.NewPrinter(language.English)

// nativeDocument is the paramcontract contract document.
type nativeDocument struct {
	Operations []operationDoc `json:"operations"`
}

type operationDoc struct {
	OperationID    string         `json:"operationId"`
	Method         string         `json:"method,omitempty"`
	Path           string         `json:"path,omitempty"`
	ResolutionMode string         `json:"resolutionMode,omitempty"`
	Parameters     []parameterDoc `json:"parameters,omitempty"`
	RequestBody    []bodyDoc      `json:"requestBody,omitempty"`
}

type parameterDoc struct {
	Name     string `json:"name"`
	In       string `json:"in"`
	Required *bool  `json:"required,omitempty"`
	Type     string `json:"type"`
	Enum     []any  `json:"enum,omitempty"`
	Repeated bool   `json:"repeated,omitempty"`
}

type bodyDoc struct {
	ContentType string                 `json:"contentType"`
	Properties  map[string]propertyDoc `json:"properties,omitempty"`
}

type propertyDoc struct {
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// ParseDocument decodes a contract document into contracts without registering
// them. Both the native format and an OpenAPI 3.x subset (detected by a top-level
// "openapi" key) are accepted.
//
// The returned contracts are not yet validated; pass them to Load.
func ParseDocument(data []byte, format Format, opts ...Option) ([]OperationContract, error) {
	cfg := defaultLoadConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	normalized, generic, err := decodeGeneric(data, format, cfg.source)
	if err != nil {
		return nil, err
	}

	if root, ok := generic.(map[string]any); ok {
		if _, isOAS := root["openapi"]; isOAS {
			return parseOpenAPI(normalized, cfg)
		}
	}

	if err := documentSchema.Validate(generic); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, errors.Join(schemaErrors(verr)...)
		}
		return nil, &pcerrors.ParseError{Path: cfg.source, Message: "schema validation failed", Cause: err}
	}

	var doc nativeDocument
	if err := decodeNormalized(normalized, &doc); err != nil {
		return nil, &pcerrors.ParseError{Path: cfg.source, Format: string(FormatJSON), Message: "decoding contracts", Cause: err}
	}

	contracts := make([]OperationContract, 0, len(doc.Operations))
	for _, op := range doc.Operations {
		contracts = append(contracts, op.toContract())
	}
	cfg.logger.Debug("contract document decoded", "source", cfg.source, "operations", len(contracts))
	return contracts, nil
}

func (op operationDoc) toContract() OperationContract {
	c := OperationContract{
		OperationID:    op.OperationID,
		Method:         op.Method,
		Path:           op.Path,
		ResolutionMode: ResolutionMode(op.ResolutionMode),
		Parameters:     make([]ParameterSpec, 0, len(op.Parameters)),
	}
	for _, p := range op.Parameters {
		spec := ParameterSpec{
			Name:     p.Name,
			Location: Location(p.In),
			Type:     Type(p.Type),
			Enum:     p.Enum,
			Repeated: p.Repeated,
		}
		if p.Required != nil {
			spec.Required = *p.Required
			spec.optionalSet = !*p.Required
		}
		c.Parameters = append(c.Parameters, spec)
	}
	for _, b := range op.RequestBody {
		schema := BodySchema{
			ContentType: ContentType(b.ContentType),
			Properties:  make(map[string]Property, len(b.Properties)),
		}
		for name, prop := range b.Properties {
			schema.Properties[name] = Property{Type: Type(prop.Type), Required: prop.Required}
		}
		c.Bodies = append(c.Bodies, schema)
	}
	return c
}

// decodeGeneric decodes data with the format's decoder and re-encodes it through
// encoding/json, so every downstream consumer sees plain JSON values (string keys,
// []any arrays, json.Number numbers) regardless of the source syntax.
func decodeGeneric(data []byte, format Format, source string) ([]byte, any, error) {
	if format == FormatAuto {
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
			format = FormatJSON
		} else {
			format = FormatYAML
		}
	}

	var raw any
	switch format {
	case FormatYAML, FormatJSON:
		// YAML is a superset of JSON, so one decoder serves both.
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, nil, &pcerrors.ParseError{Path: source, Format: string(format), Cause: err}
		}
	case FormatTOML:
		var table map[string]any
		if err := toml.Unmarshal(data, &table); err != nil {
			return nil, nil, &pcerrors.ParseError{Path: source, Format: string(format), Cause: err}
		}
		raw = table
	default:
		return nil, nil, &pcerrors.ConfigError{Option: "format", Value: string(format), Message: "unsupported document format"}
	}

	if raw == nil {
		return nil, nil, &pcerrors.ParseError{Path: source, Format: string(format), Message: "document is empty"}
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, &pcerrors.ParseError{Path: source, Format: string(format), Message: "document is not representable as JSON", Cause: err}
	}

	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, nil, &pcerrors.ParseError{Path: source, Format: string(FormatJSON), Cause: err}
	}
	return normalized, generic, nil
}

// decodeNormalized decodes the normalized JSON tree into v. Numbers held in
// interface values stay json.Number so large integer enums keep every digit.
func decodeNormalized(normalized []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.UseNumber()
	return dec.Decode(v)
}

// schemaErrors flattens a schema validation error into one ContractError per leaf.
func schemaErrors(verr *jsonschema.ValidationError) []error {
	if len(verr.Causes) == 0 {
		return []error{&pcerrors.ContractError{
			Operation: "",
			Field:     "document/" + strings.Join(verr.InstanceLocation, "/"),
			Message:   verr.ErrorKind.LocalizedString(schemaPrinter),
		}}
	}
	var errs []error
	for _, cause := range verr.Causes {
		errs = append(errs, schemaErrors(cause)...)
	}
	return errs
}

// LoadBytes parses a contract document and builds a Registry from it.
func LoadBytes(data []byte, format Format, opts ...Option) (*Registry, error) {
	contracts, err := ParseDocument(data, format, opts...)
	if err != nil {
		return nil, err
	}
	return Load(contracts, opts...)
}

// LoadFile reads, parses and registers the contract document at path.
// The format is inferred from the file extension.
func LoadFile(path string, opts ...Option) (*Registry, error) {
	contracts, err := parseFile(path, opts)
	if err != nil {
		return nil, err
	}
	return Load(contracts, append(opts, WithSource(path))...)
}

// LoadFiles parses several contract documents concurrently and registers the union
// of their contracts as one Registry. Any failure, including an operationId
// declared in two files, fails the whole load.
func LoadFiles(ctx context.Context, paths []string, opts ...Option) (*Registry, error) {
	if len(paths) == 0 {
		return nil, &pcerrors.ConfigError{Option: "paths", Message: "at least one contract document is required"}
	}

	parsed := make([][]OperationContract, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			contracts, err := parseFile(path, opts)
			if err != nil {
				return err
			}
			parsed[i] = contracts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []OperationContract
	for _, contracts := range parsed {
		all = append(all, contracts...)
	}
	return Load(all, append(opts, WithSource(strings.Join(paths, ",")))...)
}

func parseFile(path string, opts []Option) ([]OperationContract, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: contract paths are operator supplied
	if err != nil {
		return nil, fmt.Errorf("contract: reading %s: %w", path, err)
	}
	return ParseDocument(data, FormatFromPath(path), append(opts, WithSource(path))...)
}
