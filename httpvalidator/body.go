package httpvalidator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"slices"
	"strings"

	"github.com/erraggy/paramcontract/contract"
)

// bodyState describes what parsing the request body produced.
type bodyState int

const (
	bodyAbsent bodyState = iota
	bodyParsed
	bodyTooLarge
	bodyUnsupported
	bodyMalformed
)

// parsedBody is the flat field map of a request body.
//
// JSON fields keep their decoded value (json.Number, bool, string, nil, or a
// nested map or slice). Form and multipart fields are strings holding the first
// value of the field.
type parsedBody struct {
	state       bodyState
	contentType contract.ContentType
	fields      map[string]any
	err         error
}

// parseBody parses d.Body according to its media type. Oversized bodies are
// never parsed.
func parseBody(d *RequestDescriptor, maxBodySize int64) *parsedBody {
	if exceedsLimit(d, maxBodySize) {
		return &parsedBody{state: bodyTooLarge}
	}
	if len(d.Body) == 0 {
		return &parsedBody{state: bodyAbsent, contentType: contract.ParseContentType(d.ContentType)}
	}

	pb := &parsedBody{contentType: contract.ParseContentType(d.ContentType)}
	var err error
	switch pb.contentType {
	case contract.ContentTypeJSON:
		pb.fields, err = parseJSONBody(d.Body)
	case contract.ContentTypeForm:
		pb.fields, err = parseFormBody(d.Body)
	case contract.ContentTypeMultipart:
		pb.fields, err = parseMultipartBody(d.Body, d.ContentType)
	default:
		pb.state = bodyUnsupported
		return pb
	}
	if err != nil {
		pb.state = bodyMalformed
		pb.err = err
		return pb
	}
	pb.state = bodyParsed
	return pb
}

// exceedsLimit reports whether the body, or its declared length, is above max.
func exceedsLimit(d *RequestDescriptor, maxBodySize int64) bool {
	return int64(len(d.Body)) > maxBodySize || d.ContentLength > maxBodySize
}

// lookup returns a body field as a raw string for parameter fallback. JSON null,
// nested values and unparsed bodies count as absent.
func (pb *parsedBody) lookup(name string) (string, bool) {
	if pb.state != bodyParsed {
		return "", false
	}
	v, ok := pb.fields[name]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		if val {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

func parseJSONBody(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON: trailing data after the top-level value")
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, errors.New("body must be a JSON object")
	}
	return obj, nil
}

func parseFormBody(body []byte) (map[string]any, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("invalid form encoding: %w", err)
	}
	fields := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

// parseMultipartBody flattens a multipart form. A file part contributes its file
// name rather than its content.
func parseMultipartBody(body []byte, contentType string) (map[string]any, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("invalid Content-Type: %w", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("multipart body without boundary")
	}

	fields := make(map[string]any)
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		var value string
		if filename := part.FileName(); filename != "" {
			value = filename
		} else {
			data, err := io.ReadAll(part)
			if err != nil {
				return nil, fmt.Errorf("invalid multipart body: %w", err)
			}
			value = string(data)
		}
		_ = part.Close()
		if _, seen := fields[name]; !seen {
			fields[name] = value
		}
	}
	return fields, nil
}

// validateBody checks the body against the contract's body schemas and adds
// declared field values to result.
func validateBody(c *contract.OperationContract, pb *parsedBody, maxBodySize int64, reserved map[string]bool, result *Result) {
	if pb.state == bodyTooLarge {
		result.addError(contract.LocationBody, "", CodeBodyTooLarge,
			fmt.Sprintf("request body exceeds the maximum size of %d bytes", maxBodySize))
		return
	}
	if !c.HasBody() {
		return
	}

	if pb.state == bodyAbsent {
		schema, ok := c.Body(pb.contentType)
		if !ok {
			schema = &c.Bodies[0]
		}
		for _, name := range schema.FieldNames() {
			if schema.Properties[name].Required {
				result.addError(contract.LocationBody, name, CodeBodySchemaViolation, "missing required field")
			}
		}
		return
	}

	schema, ok := c.Body(pb.contentType)
	if !ok {
		accepted := make([]string, len(c.Bodies))
		for i, b := range c.Bodies {
			accepted[i] = string(b.ContentType)
		}
		got := pb.contentType
		if got == "" {
			got = "none"
		}
		result.addError(contract.LocationBody, "", CodeUnsupportedContentType,
			fmt.Sprintf("content type %q is not accepted (want one of %s)", got, strings.Join(accepted, ", ")))
		return
	}

	if pb.state == bodyMalformed {
		result.addError(contract.LocationBody, "", CodeBodySchemaViolation, pb.err.Error())
		return
	}

	names := make([]string, 0, len(pb.fields))
	for name := range pb.fields {
		names = append(names, name)
	}
	for _, name := range schema.FieldNames() {
		if _, ok := pb.fields[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	jsonBody := pb.contentType == contract.ContentTypeJSON

	for _, name := range names {
		raw, present := pb.fields[name]
		prop, declared := schema.Properties[name]

		switch raw.(type) {
		case map[string]any, []any:
			result.addError(contract.LocationBody, name, CodeBodySchemaViolation, "nested objects and arrays are not supported")
			continue
		case nil:
			present = false
		}
		if !declared {
			continue
		}
		if !present {
			if prop.Required {
				result.addError(contract.LocationBody, name, CodeBodySchemaViolation, "missing required field")
			}
			continue
		}

		value, err := bodyFieldValue(raw, prop.Type, jsonBody)
		if err != nil {
			result.addError(contract.LocationBody, name, CodeTypeMismatch, err.Error())
			continue
		}
		if reserved[name] {
			continue
		}
		result.Values[name] = value
		result.Sources[name] = contract.LocationBody
	}
}

// bodyFieldValue checks one body field against its declared type. JSON values
// must already be of the declared kind; form and multipart values go through coerce.
func bodyFieldValue(raw any, t contract.Type, jsonBody bool) (any, error) {
	switch v := raw.(type) {
	case json.Number:
		if t == contract.TypeInteger {
			if n, err := coerce(v.String(), contract.TypeInteger); err == nil {
				return n, nil
			}
		}
		return nil, fmt.Errorf("JSON number %s is not a valid %s", truncateForError(v.String()), t)
	case bool:
		if t == contract.TypeBoolean {
			return v, nil
		}
		return nil, fmt.Errorf("JSON boolean is not a valid %s", t)
	case string:
		if jsonBody {
			if t == contract.TypeString {
				return v, nil
			}
			return nil, fmt.Errorf("JSON string is not a valid %s", t)
		}
		value, err := coerce(v, t)
		if err != nil {
			return nil, errors.New(typeMismatchMessage(v, t, false))
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", raw)
	}
}
