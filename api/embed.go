// Package api ships the m3ueditor REST contract served at /api/docs.
package api

import _ "embed"

// OpenAPI is the OpenAPI 3.0 document of the /api/v1 routes and the public playlist output.
//
//go:embed openapi.yaml
var OpenAPI []byte
