// Package docs holds the OpenAPI document served at /api/docs
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
  "openapi": "3.0.3",
  "info": {
    "title": "{{.Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "servers": [{"url": "{{.BasePath}}"}],
  "paths": {
    "/process": {
      "post": {
        "tags": ["render"],
        "summary": "Render NDVI and NDWI animations for a locality",
        "servers": [{"url": "/"}],
        "requestBody": {
          "required": true,
          "content": {
            "application/x-www-form-urlencoded": {
              "schema": {
                "type": "object",
                "required": ["locality"],
                "properties": {"locality": {"type": "string", "example": "Bidhannagar"}}
              }
            }
          }
        },
        "responses": {
          "200": {
            "description": "Both animations written",
            "content": {"application/json": {"schema": {"$ref": "#/components/schemas/ProcessResult"}}}
          },
          "404": {"description": "Unknown locality", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/FlatError"}}}},
          "429": {"description": "Rate limited", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/FlatError"}}}},
          "503": {"description": "Imagery backend unavailable", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/FlatError"}}}}
        }
      }
    },
    "/localities": {
      "get": {
        "tags": ["localities"],
        "summary": "List locality names",
        "responses": {"200": {"description": "Sorted names"}}
      }
    },
    "/localities/{name}": {
      "get": {
        "tags": ["localities"],
        "summary": "Raw GeoJSON feature of one locality",
        "parameters": [{"name": "name", "in": "path", "required": true, "schema": {"type": "string"}}],
        "responses": {
          "200": {"description": "Feature"},
          "404": {"description": "Unknown locality"}
        }
      }
    },
    "/runs/{id}": {
      "get": {
        "tags": ["runs"],
        "summary": "Fetch a pipeline run",
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "string", "format": "uuid"}}],
        "responses": {
          "200": {"description": "Run record"},
          "404": {"description": "Unknown run"}
        }
      }
    },
    "/meta/health": {"get": {"tags": ["meta"], "summary": "Liveness", "responses": {"200": {"description": "ok"}}}},
    "/meta/ready": {"get": {"tags": ["meta"], "summary": "Readiness", "responses": {"200": {"description": "ready"}, "503": {"description": "not ready"}}}},
    "/meta/version": {"get": {"tags": ["meta"], "summary": "Build info", "responses": {"200": {"description": "version"}}}},
    "/meta/service": {"get": {"tags": ["meta"], "summary": "Service info", "responses": {"200": {"description": "service"}}}}
  },
  "components": {
    "schemas": {
      "ProcessResult": {
        "type": "object",
        "properties": {
          "success": {"type": "boolean"},
          "locality": {"type": "string"},
          "ndvi_gif": {"type": "string", "example": "/static/outputs/Bidhannagar_gifs/NDVI_spatial.gif"},
          "ndwi_gif": {"type": "string", "example": "/static/outputs/Bidhannagar_gifs/NDWI_spatial.gif"},
          "redirect_url": {"type": "string", "example": "/results/Bidhannagar"},
          "run_id": {"type": "string", "format": "uuid"}
        }
      },
      "FlatError": {
        "type": "object",
        "properties": {"error": {"type": "string"}}
      }
    }
  }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "landpulse API",
	Description:      "Monthly vegetation and water index animations per locality.",
	InfoInstanceName: "api",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
