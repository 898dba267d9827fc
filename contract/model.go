package contract

import (
	"mime"
	"slices"
	"strings"
)

// Location is the transport position of a parameter value.
type Location string

// Location constants. LocationBody never appears on a ParameterSpec; it is used for
// body errors and for parameters satisfied by the merged-mode body fallback.
const (
	LocationQuery  Location = "query"
	LocationPath   Location = "path"
	LocationHeader Location = "header"
	LocationCookie Location = "cookie"
	LocationBody   Location = "body"
)

// IsParameterLocation reports whether l may be declared on a ParameterSpec.
func (l Location) IsParameterLocation() bool {
	switch l {
	case LocationQuery, LocationPath, LocationHeader, LocationCookie:
		return true
	default:
		return false
	}
}

// Type is the declared primitive type of a parameter or body field.
type Type string

// Type constants.
const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Valid reports whether t is a supported primitive type.
func (t Type) Valid() bool {
	return t == TypeString || t == TypeInteger || t == TypeBoolean
}

// ContentType is a supported request body media type.
type ContentType string

// Supported body media types.
const (
	ContentTypeJSON      ContentType = "application/json"
	ContentTypeForm      ContentType = "application/x-www-form-urlencoded"
	ContentTypeMultipart ContentType = "multipart/form-data"
)

// Valid reports whether c is one of the supported media types.
func (c ContentType) Valid() bool {
	return c == ContentTypeJSON || c == ContentTypeForm || c == ContentTypeMultipart
}

// ParseContentType extracts the media type from a Content-Type header value,
// dropping parameters such as charset or boundary. Returns "" for empty or
// malformed input.
func ParseContentType(header string) ContentType {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return ContentType(strings.ToLower(mediaType))
}

// ResolutionMode governs cross-location fallback when resolving a parameter.
type ResolutionMode string

// Resolution modes.
const (
	// ModeStrict consults only the declared location. It is the default.
	ModeStrict ResolutionMode = "strict"

	// ModeMerged falls back to the query string and then the body when the
	// parameter is absent from its declared location.
	ModeMerged ResolutionMode = "merged"
)

// Valid reports whether m is a known mode. The empty mode is valid and means strict.
func (m ResolutionMode) Valid() bool {
	return m == "" || m == ModeStrict || m == ModeMerged
}

// Fallback returns the locations consulted, in order, after the declared location
// comes up empty. Strict mode has no fallback.
func (m ResolutionMode) Fallback() []Location {
	if m != ModeMerged {
		return nil
	}
	return []Location{LocationQuery, LocationBody}
}

// ParameterSpec declares one parameter of an operation.
type ParameterSpec struct {
	Name     string
	Location Location
	Required bool
	Type     Type

	// Enum holds the allowed values after coercion (string, int64 or bool).
	// Empty means unconstrained.
	Enum []any

	// Repeated parameters accept multiple values and coerce to []any.
	Repeated bool

	// optionalSet records an explicit "required: false" read from a document,
	// which path parameters may not carry.
	optionalSet bool
}

// Property declares one field of a request body.
type Property struct {
	Type     Type
	Required bool
}

// BodySchema declares the accepted shape of a request body for one media type.
type BodySchema struct {
	ContentType ContentType
	Properties  map[string]Property
}

// FieldNames returns the declared property names in lexical order.
func (b *BodySchema) FieldNames() []string {
	names := make([]string, 0, len(b.Properties))
	for name := range b.Properties {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// OperationContract declares the parameters and body schemas of one operation.
// Contracts held by a Registry are read-only.
type OperationContract struct {
	OperationID string

	// Method and Path are optional routing hints. When Path is set its
	// placeholders must match the declared path parameters exactly.
	Method string
	Path   string

	Parameters     []ParameterSpec
	Bodies         []BodySchema
	ResolutionMode ResolutionMode
}

// Mode returns the effective resolution mode, defaulting to strict.
func (c *OperationContract) Mode() ResolutionMode {
	if c.ResolutionMode == "" {
		return ModeStrict
	}
	return c.ResolutionMode
}

// Body returns the body schema declared for the given media type.
func (c *OperationContract) Body(ct ContentType) (*BodySchema, bool) {
	for i := range c.Bodies {
		if c.Bodies[i].ContentType == ct {
			return &c.Bodies[i], true
		}
	}
	return nil, false
}

// HasBody reports whether the contract declares any body schema.
func (c *OperationContract) HasBody() bool {
	return len(c.Bodies) > 0
}

// clone returns a deep copy so the registry never aliases caller-owned slices.
func (c OperationContract) clone() OperationContract {
	out := c
	out.Parameters = make([]ParameterSpec, len(c.Parameters))
	for i, p := range c.Parameters {
		p.Enum = slices.Clone(p.Enum)
		out.Parameters[i] = p
	}
	out.Bodies = make([]BodySchema, len(c.Bodies))
	for i, b := range c.Bodies {
		props := make(map[string]Property, len(b.Properties))
		for k, v := range b.Properties {
			props[k] = v
		}
		out.Bodies[i] = BodySchema{ContentType: b.ContentType, Properties: props}
	}
	return out
}
