// Package schemas embeds the OpenAPI contract for the scan API.
package schemas

import _ "embed"

// OpenAPISpec is the raw OpenAPI 3 document validated against inbound
// requests by the validation middleware.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
