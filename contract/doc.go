// Package contract models operation contracts and the registry that holds them.
//
// An OperationContract pins every parameter of an operation to one transport
// location (query, path, header or cookie) and optionally declares the accepted
// request body shapes. A ResolutionMode on the contract decides whether a missing
// parameter may be satisfied from another location.
//
// # Loading
//
// Contracts are loaded once, at process start, and are immutable afterward:
//
//	reg, err := contract.LoadFile("contracts.yaml", contract.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err) // errors.Is(err, pcerrors.ErrInvalidContract)
//	}
//	c, err := reg.Lookup("register_host")
//
// Loading is all or nothing. Every malformed contract field is reported as a
// *pcerrors.ContractError joined into the returned error.
//
// # Document Formats
//
// The native document is a list of operations:
//
//	operations:
//	  - operationId: register_host
//	    method: POST
//	    path: /hosts
//	    resolutionMode: merged
//	    parameters:
//	      - {name: host_alias, in: query, type: string, required: true}
//	      - {name: user_tags, in: query, type: string}
//	    requestBody:
//	      - contentType: application/json
//	        properties:
//	          host_alias: {type: string}
//
// It may be written in YAML, JSON or TOML, and is checked against an embedded JSON
// Schema before decoding. An OpenAPI 3.x document (one with a top-level "openapi"
// key) is also accepted; each operation with an operationId becomes a contract, and
// the x-resolution-mode extension selects its mode.
package contract
