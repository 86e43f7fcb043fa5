package api

import _ "embed"

// openAPISpec is the hand-maintained OpenAPI document served to the
// swagger UI. Kept as a plain JSON file so mobile developers can diff it.
//
//go:embed openapi.json
var openAPISpec []byte
