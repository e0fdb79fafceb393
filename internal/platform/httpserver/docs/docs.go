// Package docs registers the OpenAPI document served at /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/content-distributions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["content-distributions"],
                "summary": "List distribution rules",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["content-distributions"],
                "summary": "Create a distribution rule",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/content-distributions/active": {
            "get": {
                "produces": ["application/json"],
                "tags": ["content-distributions"],
                "summary": "List active distribution rules",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/content-distributions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["content-distributions"],
                "summary": "Get a distribution rule",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["content-distributions"],
                "summary": "Update a distribution rule",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"},
                    "409": {"description": "Conflict"}
                }
            },
            "delete": {
                "tags": ["content-distributions"],
                "summary": "Delete a distribution rule",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/content-distributions/{id}/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["content-distributions"],
                "summary": "Get rule run status and statistics",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/content-distributions/{id}/run": {
            "post": {
                "produces": ["application/json"],
                "tags": ["content-distributions"],
                "summary": "Trigger a distribution run",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "404": {"description": "Not Found"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/distribution-records/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["distribution-records"],
                "summary": "Get a distribution record",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/distribution-records/{id}/retry": {
            "post": {
                "produces": ["application/json"],
                "tags": ["distribution-records"],
                "summary": "Retry a failed distribution record",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/distribution-records/by-article/{article_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["distribution-records"],
                "summary": "List records for an article",
                "parameters": [{"type": "string", "name": "article_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/distribution-records/by-site/{site_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["distribution-records"],
                "summary": "List records for a target site",
                "parameters": [
                    {"type": "string", "name": "site_id", "in": "path", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/distribution-records/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["distribution-records"],
                "summary": "Distribution outcome statistics",
                "parameters": [
                    {"type": "string", "name": "target_site", "in": "query"},
                    {"type": "string", "name": "rule_id", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Quill Content Distribution API",
	Description:      "Rule-driven article distribution and retry management.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
