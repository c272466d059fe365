// Package docs holds the swag-generated OpenAPI document for
// internal/ipcserver's Local IPC surface. Regenerate with `swag init`
// after changing any @-annotation in internal/ipcserver/ipcserver.go.
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
        "/edgecored/api/v1/components": {
            "get": {
                "tags": ["Components"],
                "summary": "List components",
                "description": "Lists every non-main component currently known to the device",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/edgecored/api/v1/components/{name}": {
            "get": {
                "tags": ["Components"],
                "summary": "Get component details",
                "description": "Returns a single component's version, state, and configuration",
                "parameters": [{"name": "name", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/edgecored/api/v1/components/{name}/restart": {
            "post": {
                "tags": ["Components"],
                "summary": "Restart a component",
                "parameters": [{"name": "name", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "500": {"description": "Internal Server Error"}}
            }
        },
        "/edgecored/api/v1/components/{name}/stop": {
            "post": {
                "tags": ["Components"],
                "summary": "Stop a component",
                "parameters": [{"name": "name", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "500": {"description": "Internal Server Error"}}
            }
        },
        "/edgecored/api/v1/store/refresh": {
            "post": {
                "tags": ["Store"],
                "summary": "Preload the component store",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "500": {"description": "Internal Server Error"}}
            }
        },
        "/edgecored/api/v1/deployments": {
            "post": {
                "tags": ["Deployments"],
                "summary": "Create a local deployment",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            },
            "get": {
                "tags": ["Deployments"],
                "summary": "List local deployment history",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/edgecored/api/v1/deployments/{id}": {
            "get": {
                "tags": ["Deployments"],
                "summary": "Get a local deployment's status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/edgecored/api/v1/lifecycle/subscribe": {
            "get": {
                "tags": ["Lifecycle"],
                "summary": "Subscribe to PreComponentUpdate notifications",
                "produces": ["text/event-stream"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/edgecored/api/v1/lifecycle/defer": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Vote to defer a pending component update",
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "edgecored Local IPC API",
	Description:      "Device-local component and deployment control surface.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
