// Package docs holds the OpenAPI description served at /docs.
//
// It follows the layout swag init generates; keep the annotations on the
// handlers and this template in step.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Buzzwatch"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "tags": ["health"],
                "summary": "Health check",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health/store": {
            "get": {
                "tags": ["health"],
                "summary": "Store health check",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object"}}
                }
            }
        },
        "/health/cache": {
            "get": {
                "tags": ["health"],
                "summary": "Cache health check",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/snapshots/{source}/latest": {
            "get": {
                "tags": ["snapshots"],
                "summary": "Latest snapshot",
                "description": "Returns the rows sharing the newest time_fetched for a source. Cached with ETag support.",
                "produces": ["application/json"],
                "parameters": [
                    {"enum": ["yahoo", "espn"], "type": "string", "description": "Source", "name": "source", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/provider.Snapshot"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/snapshots/{source}/history": {
            "get": {
                "tags": ["snapshots"],
                "summary": "Record history",
                "description": "Returns up to limit of the most recently stored records, oldest first.",
                "produces": ["application/json"],
                "parameters": [
                    {"enum": ["yahoo", "espn"], "type": "string", "description": "Source", "name": "source", "in": "path", "required": true},
                    {"type": "integer", "default": 100, "description": "Maximum records (1-1000)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.HistoryResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "provider.Record": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "label": {"type": "string"},
                "metrics": {"type": "object", "additionalProperties": {"type": "number"}},
                "time_fetched": {"type": "string"}
            }
        },
        "provider.Snapshot": {
            "type": "object",
            "properties": {
                "source": {"type": "string"},
                "time_fetched": {"type": "string"},
                "records": {"type": "array", "items": {"$ref": "#/definitions/provider.Record"}}
            }
        },
        "handler.HistoryResponse": {
            "type": "object",
            "properties": {
                "source": {"type": "string"},
                "count": {"type": "integer"},
                "total": {"type": "integer"},
                "records": {"type": "array", "items": {"$ref": "#/definitions/provider.Record"}}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "source": {"type": "string"},
                        "detail": {"type": "string"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Buzzwatch Status API",
	Description:      "Read-only view of the stored Yahoo buzz index and ESPN free-agent snapshots.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
