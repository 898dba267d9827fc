// Package httpvalidator validates requests against operation contracts.
//
// Every parameter of a contract is pinned to one location. A value sent
// somewhere else does not satisfy the parameter unless the contract opts into
// contract.ModeMerged, which falls back to the query string and then the body,
// in that order, and records which location supplied the value.
//
// # Basic Usage
//
//	reg, _ := contract.LoadFile("contracts.yaml")
//	v, _ := httpvalidator.New()
//
//	desc, err := httpvalidator.FromRequest(req, mux.Vars(req), v.MaxBodySize())
//	if err != nil {
//	    // transport failure while reading the body
//	}
//	result, err := v.ValidateOperation(reg, "register_host", desc)
//	if err != nil {
//	    // errors.Is(err, pcerrors.ErrUnknownOperation)
//	}
//	if !result.Valid {
//	    for _, e := range result.Errors {
//	        log.Printf("%s", e)
//	    }
//	}
//	alias := result.Values["host_alias"].(string)
//
// # Resolution
//
//   - query: ordered multi-map; the first value unless the parameter is repeated
//   - path: the bindings supplied by the router
//   - header: case-insensitive name match; first or all values
//   - cookie: parsed Cookie headers; the last duplicate wins
//
// # Coercion
//
// Integers accept an optional sign and decimal digits. Booleans accept "true" and
// "false" in any case. Strings accept anything, and an empty string counts as
// present. Enum membership is checked after coercion.
//
// # Bodies
//
// JSON, URL-encoded and multipart bodies are supported. A body above the size
// limit yields a single CodeBodyTooLarge error without being parsed. JSON bodies
// must be flat objects whose values already have the declared type; form values
// are coerced like parameters.
//
// All failures are collected; validation never stops at the first error.
package httpvalidator
