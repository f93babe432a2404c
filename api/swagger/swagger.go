package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SCMS Results API",
        "description": "Term result computation, ranking and publication",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Results", "description": "Term result computation and publication"},
        {"name": "Grade Scale", "description": "Percentage bands used for letter grades"}
    ],
    "paths": {
        "/results/compute": {
            "post": {
                "tags": ["Results"],
                "summary": "Compute term results for a classroom",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClassroomResultsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Computation summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Term not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No active students or no subjects allocated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/compute/student": {
            "post": {
                "tags": ["Results"],
                "summary": "Compute one student's term result and re-rank the classroom",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentResultRequest"}}
                ],
                "responses": {
                    "200": {"description": "Term result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student not enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Malformed mark or no subjects allocated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/recompute": {
            "post": {
                "tags": ["Results"],
                "summary": "Delete and recompute term results for a classroom",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClassroomResultsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Computation summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/publish": {
            "post": {
                "tags": ["Results"],
                "summary": "Publish term results of a classroom",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClassroomResultsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Publication outcome", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/unpublish": {
            "post": {
                "tags": ["Results"],
                "summary": "Unpublish term results of a classroom",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClassroomResultsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Publication outcome", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/status": {
            "get": {
                "tags": ["Results"],
                "summary": "Computed and published counts for a classroom",
                "parameters": [
                    {"name": "term_id", "in": "query", "required": true, "type": "string"},
                    {"name": "classroom_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Result status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/classrooms/{classroomId}/terms/{termId}": {
            "get": {
                "tags": ["Results"],
                "summary": "Classroom broadsheet",
                "parameters": [
                    {"name": "classroomId", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Broadsheet", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/classrooms/{classroomId}/terms/{termId}/export": {
            "get": {
                "tags": ["Results"],
                "summary": "Export classroom broadsheet",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "classroomId", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered file", "schema": {"type": "file"}}
                }
            }
        },
        "/results/students/{studentId}/terms/{termId}": {
            "get": {
                "tags": ["Results"],
                "summary": "Student term report",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Term result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Result not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grade-scale": {
            "get": {
                "tags": ["Grade Scale"],
                "summary": "Active grade scale",
                "responses": {
                    "200": {"description": "Grade scale", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Grade Scale"],
                "summary": "Replace the active grade scale",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeScaleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Stored scale", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Overlapping or inverted bands", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ClassroomResultsRequest": {
            "type": "object",
            "required": ["term_id", "classroom_id"],
            "properties": {
                "term_id": {"type": "string"},
                "classroom_id": {"type": "string"}
            }
        },
        "StudentResultRequest": {
            "type": "object",
            "required": ["term_id", "student_id"],
            "properties": {
                "term_id": {"type": "string"},
                "student_id": {"type": "string"}
            }
        },
        "GradeScaleRule": {
            "type": "object",
            "required": ["letter_grade"],
            "properties": {
                "min_grade": {"type": "string", "example": "75.00"},
                "max_grade": {"type": "string", "example": "100.00"},
                "letter_grade": {"type": "string", "example": "A"},
                "grade_point": {"type": "string", "example": "4.00"}
            }
        },
        "GradeScaleRequest": {
            "type": "object",
            "required": ["name", "rules"],
            "properties": {
                "name": {"type": "string"},
                "rules": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/GradeScaleRule"}
                }
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
