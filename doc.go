// Package paramcontract validates incoming HTTP requests against declarative
// per-operation parameter contracts.
//
// A contract names each parameter an operation accepts, where it is expected
// (path, query, header, cookie or body), its type, whether it is required and
// its allowed values, plus the request body schemas per content type. Contracts
// are loaded once into an immutable registry and every request is checked
// against them without side effects.
//
// # Packages
//
//   - contract: contract model, document loading (YAML, JSON, TOML, OpenAPI 3) and the registry
//   - httpvalidator: request descriptors, parameter resolution, coercion and body validation
//   - errformat: rendering validation errors as client-facing JSON bodies and parsing them back
//   - middleware: net/http middleware with gorilla/mux integration and Prometheus metrics
//   - pcerrors: sentinel and typed errors shared by all packages
//
// # Resolution modes
//
// In strict mode a parameter is read only from its declared location. In merged
// mode a parameter missing there is looked up in the query string and then the
// body, which keeps clients working that send a value in the "wrong" place:
//
//	operations:
//	  - operationId: register_host
//	    resolutionMode: merged
//	    parameters:
//	      - {name: host_alias, in: query, type: string, required: true}
//
// The paramcontract command wraps the same packages for checking contract
// documents, validating sample requests and serving an MCP tool server.
package paramcontract
