// Package docs registers the panem API description with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-KEY",
            "in": "header"
        }
    },
    "security": [{"ApiKeyAuth": []}],
    "paths": {
        "/projects/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["projects"],
                "summary": "List projects",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/Project"}}
                    },
                    "401": {"description": "Missing or invalid API key"}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["projects"],
                "summary": "Create a project and send the created event",
                "parameters": [
                    {"in": "body", "name": "project", "required": true, "schema": {"$ref": "#/definitions/CreateProject"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Project"}},
                    "400": {"description": "Invalid body", "schema": {"$ref": "#/definitions/Error"}},
                    "401": {"description": "Missing or invalid API key"},
                    "403": {"description": "Project already exists", "schema": {"$ref": "#/definitions/Error"}},
                    "502": {"description": "Stored, but the webhook failed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/projects/{name}/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["projects"],
                "summary": "Get a project",
                "parameters": [
                    {"type": "string", "in": "path", "name": "name", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Project"}},
                    "401": {"description": "Missing or invalid API key"},
                    "404": {"description": "Unknown project", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["projects"],
                "summary": "Replace a project's environment and send the updated event",
                "parameters": [
                    {"type": "string", "in": "path", "name": "name", "required": true},
                    {"in": "body", "name": "project", "required": true, "schema": {"$ref": "#/definitions/UpdateProject"}}
                ],
                "responses": {
                    "201": {"description": "Updated", "schema": {"$ref": "#/definitions/Project"}},
                    "400": {"description": "Invalid body", "schema": {"$ref": "#/definitions/Error"}},
                    "401": {"description": "Missing or invalid API key"},
                    "404": {"description": "Unknown project", "schema": {"$ref": "#/definitions/Error"}},
                    "502": {"description": "Stored, but the webhook failed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/projects/{name}/_{action}": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["actions"],
                "summary": "Send a start, stop or restart event for a project",
                "parameters": [
                    {"type": "string", "in": "path", "name": "name", "required": true},
                    {"type": "string", "enum": ["start", "stop", "restart"], "in": "path", "name": "action", "required": true},
                    {"in": "body", "name": "action", "schema": {"$ref": "#/definitions/Action"}}
                ],
                "responses": {
                    "200": {"description": "Webhook answered", "schema": {"$ref": "#/definitions/ActionResult"}},
                    "401": {"description": "Missing or invalid API key"},
                    "404": {"description": "Unknown project or action", "schema": {"$ref": "#/definitions/Error"}},
                    "502": {"description": "Webhook failed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "security": [],
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Store health",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Store unreachable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["ops"],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Missing or invalid API key"}
                }
            }
        }
    },
    "definitions": {
        "EnvVar": {
            "type": "object",
            "required": ["key", "value"],
            "properties": {
                "key": {"type": "string"},
                "value": {"type": "string"}
            }
        },
        "Project": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "environment": {"type": "array", "items": {"$ref": "#/definitions/EnvVar"}}
            }
        },
        "CreateProject": {
            "type": "object",
            "required": ["name", "environment"],
            "properties": {
                "name": {"type": "string", "maxLength": 80},
                "environment": {"type": "array", "items": {"$ref": "#/definitions/EnvVar"}},
                "callback": {"type": "string"}
            }
        },
        "UpdateProject": {
            "type": "object",
            "required": ["environment"],
            "properties": {
                "name": {"type": "string"},
                "environment": {"type": "array", "items": {"$ref": "#/definitions/EnvVar"}},
                "callback": {"type": "string"}
            }
        },
        "Action": {
            "type": "object",
            "properties": {
                "callback": {"type": "string"}
            }
        },
        "ActionResult": {
            "type": "object",
            "properties": {
                "callback": {"type": "string"},
                "webhook": {
                    "type": "object",
                    "properties": {
                        "status": {"type": "integer"},
                        "body": {}
                    }
                }
            }
        },
        "Error": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "panem",
	Description:      "Project environments with lifecycle events forwarded to a webhook.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
