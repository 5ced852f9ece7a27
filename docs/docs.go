// Package docs is the hand-maintained equivalent of `swag init`'s
// generated registration file: it registers the OpenAPI template for
// gin-swagger to serve at /swagger/*any.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Transcription Orchestration Core",
        "description": "Converts recorded audio into per-instrument MIDI via a separation + ensemble-transcription + TTA + refinement pipeline.",
        "version": "1.0"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/transcribe": {
            "post": {
                "summary": "Submit a transcription job",
                "tags": ["jobs"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Malformed request"},
                    "422": {"description": "Source unavailable or too long"},
                    "429": {"description": "Rate-limited"},
                    "500": {"description": "Internal error"}
                }
            }
        },
        "/jobs/{job_id}": {
            "get": {
                "summary": "Fetch a job record",
                "tags": ["jobs"],
                "parameters": [{"in": "path", "name": "job_id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown job"}}
            }
        },
        "/jobs/{job_id}/artifact/{instrument}.mid": {
            "get": {
                "summary": "Download a finished instrument's MIDI artifact",
                "tags": ["jobs"],
                "parameters": [
                    {"in": "path", "name": "job_id", "required": true, "type": "string"},
                    {"in": "path", "name": "instrument", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "MIDI bytes"}, "404": {"description": "Not yet produced"}}
            }
        },
        "/jobs/{job_id}/metadata": {
            "get": {
                "summary": "Fetch detected tempo/key/time signature",
                "tags": ["jobs"],
                "parameters": [{"in": "path", "name": "job_id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown job"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it, the
// same pattern swag init emits.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Transcription Orchestration Core",
	Description:      "Converts recorded audio into per-instrument MIDI via a separation + ensemble-transcription + TTA + refinement pipeline.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
