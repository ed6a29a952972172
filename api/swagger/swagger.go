package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Assignment Sync API",
        "description": "Matches Canvas courses to tracking-sheet tabs and syncs their assignments.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "OperatorToken": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Sheet", "description": "Class tab catalog and maintenance"},
        {"name": "Sync", "description": "Synchronous and queued sync sessions"},
        {"name": "Canvas", "description": "Canvas session status"},
        {"name": "Observability", "description": "Metrics summaries"}
    ],
    "paths": {
        "/tabs": {
            "get": {
                "tags": ["Sheet"],
                "summary": "List class tabs",
                "parameters": [
                    {"name": "refresh", "in": "query", "type": "boolean", "description": "Bypass the cached catalog"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Sheet API failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tabs/match": {
            "post": {
                "tags": ["Sheet"],
                "summary": "Explain how course names match the class tabs",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tabs/dump": {
            "post": {
                "tags": ["Sheet"],
                "summary": "Dump raw tab contents",
                "security": [{"OperatorToken": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/DumpRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clear": {
            "post": {
                "tags": ["Sheet"],
                "summary": "Clear one class tab or all class tabs",
                "security": [{"OperatorToken": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClearRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Another session is running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/canvas/status": {
            "get": {
                "tags": ["Canvas"],
                "summary": "Check the Canvas session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync": {
            "post": {
                "tags": ["Sync"],
                "summary": "Run a sync session and wait for the report",
                "security": [{"OperatorToken": []}],
                "parameters": [
                    {"name": "mode", "in": "query", "type": "string", "enum": ["all", "future", "dry-run", "refresh"]},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/SyncRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Another session is running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Upstream failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/runs": {
            "get": {
                "tags": ["Sync"],
                "summary": "List recent sync runs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sync"],
                "summary": "Queue a sync session",
                "security": [{"OperatorToken": []}],
                "parameters": [
                    {"name": "mode", "in": "query", "type": "string", "enum": ["all", "future", "dry-run", "refresh"]},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/SyncRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Queue is full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/runs/{id}": {
            "get": {
                "tags": ["Sync"],
                "summary": "Sync run status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/runs/{id}/report.pdf": {
            "get": {
                "tags": ["Sync"],
                "summary": "Download a sync run report",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF report", "schema": {"type": "file"}},
                    "401": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SyncRequest": {
            "type": "object",
            "properties": {
                "mode": {"type": "string", "enum": ["all", "future", "dry-run", "refresh"]},
                "include_past": {"type": "boolean"},
                "dry_run": {"type": "boolean"},
                "replace_existing": {"type": "boolean"},
                "tabs": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ClearRequest": {
            "type": "object",
            "properties": {
                "class_name": {"type": "string"},
                "all": {"type": "boolean"}
            }
        },
        "MatchRequest": {
            "type": "object",
            "required": ["courses"],
            "properties": {
                "courses": {"type": "array", "items": {"type": "string"}}
            }
        },
        "DumpRequest": {
            "type": "object",
            "properties": {
                "max_rows": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
