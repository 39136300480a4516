package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Master Scheduler API",
        "description": "Generates high school master schedules and seats students into sections",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "MasterSchedule", "description": "Synchronous generation and variant comparison"},
        {"name": "Runs", "description": "Stored runs, async execution and regeneration"},
        {"name": "StudentSchedule", "description": "Seating students into sections"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Health check",
                "security": [],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Observability"],
                "summary": "Readiness check",
                "security": [],
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unreachable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Prometheus metrics",
                "security": [],
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Engine and request metrics summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/master-schedules/generate": {
            "post": {
                "tags": ["MasterSchedule"],
                "summary": "Generate a master schedule synchronously",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MasterScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Unsatisfiable configuration", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/master-schedules/variants": {
            "post": {
                "tags": ["MasterSchedule"],
                "summary": "Compare several configurations",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VariantsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/runs": {
            "get": {
                "tags": ["Runs"],
                "summary": "List runs",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["QUEUED", "PROCESSING", "FINISHED", "FAILED"]},
                    {"name": "scheduleType", "in": "query", "type": "string", "enum": ["standard", "ab_block", "4x4_block", "trimester"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Runs"],
                "summary": "Queue a master schedule run",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MasterScheduleRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Run store disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/runs/{id}": {
            "get": {
                "tags": ["Runs"],
                "summary": "Get a run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "includeResult", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Runs"],
                "summary": "Delete a run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/api/v1/runs/{id}/regenerate": {
            "post": {
                "tags": ["Runs"],
                "summary": "Regenerate a run with locked sections",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegenerateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/student-schedules": {
            "post": {
                "tags": ["StudentSchedule"],
                "summary": "Seat students by request priority",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Run not finished", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Course": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "department": {"type": "string"},
                "required": {"type": "boolean"},
                "sections": {"type": "integer"},
                "maxSize": {"type": "integer"},
                "roomType": {"type": "string", "enum": ["regular", "lab", "gym"]},
                "coTeacherId": {"type": "string"},
                "cohortId": {"type": "string"}
            },
            "required": ["id"]
        },
        "LockedSection": {
            "type": "object",
            "properties": {
                "sectionId": {"type": "string"},
                "period": {"type": "string"},
                "teacherId": {"type": "string"},
                "coTeacherId": {"type": "string"},
                "roomId": {"type": "string"}
            },
            "required": ["sectionId", "period"]
        },
        "MasterScheduleRequest": {
            "type": "object",
            "properties": {
                "scheduleType": {"type": "string", "enum": ["standard", "ab_block", "4x4_block", "trimester"]},
                "grid": {"type": "object"},
                "teachers": {"type": "array", "items": {"type": "object"}},
                "rooms": {"type": "array", "items": {"type": "object"}},
                "courses": {"type": "array", "items": {"$ref": "#/definitions/Course"}},
                "studentCount": {"type": "integer"},
                "maxClassSize": {"type": "integer"},
                "planPeriods": {"type": "integer"},
                "plcEnabled": {"type": "boolean"},
                "plcGroups": {"type": "array", "items": {"type": "object"}},
                "constraints": {"type": "array", "items": {"type": "object"}},
                "availability": {"type": "array", "items": {"type": "object"}},
                "lockedSections": {"type": "array", "items": {"$ref": "#/definitions/LockedSection"}},
                "sizeOverrides": {"type": "object", "additionalProperties": {"type": "integer"}},
                "maxTeacherLoad": {"type": "integer"},
                "seed": {"type": "integer"}
            },
            "required": ["courses"]
        },
        "VariantsRequest": {
            "type": "object",
            "properties": {
                "variants": {"type": "object", "additionalProperties": {"$ref": "#/definitions/MasterScheduleRequest"}}
            },
            "required": ["variants"]
        },
        "RegenerateRequest": {
            "type": "object",
            "properties": {
                "lockedSections": {"type": "array", "items": {"$ref": "#/definitions/LockedSection"}},
                "lockPlaced": {"type": "array", "items": {"type": "string"}},
                "sizeOverrides": {"type": "object", "additionalProperties": {"type": "integer"}},
                "seed": {"type": "integer"},
                "async": {"type": "boolean"}
            }
        },
        "StudentScheduleRequest": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "sections": {"type": "array", "items": {"type": "object"}},
                "students": {"type": "array", "items": {"type": "object"}}
            },
            "required": ["students"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
