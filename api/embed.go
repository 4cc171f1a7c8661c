// Package api holds the OpenAPI description of the storefront.
package api

import _ "embed"

// OpenAPI is the OpenAPI 3 document served at /api/schema/.
//
//go:embed openapi.yaml
var OpenAPI []byte
