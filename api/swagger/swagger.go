package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Drive API",
        "description": "Node graph and delta-sync file storage service",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "in": "header",
            "name": "Authorization"
        }
    },
    "tags": [
        {
            "name": "Nodes",
            "description": "Files, collections, shares and the change feed"
        },
        {
            "name": "Admin",
            "description": "Maintenance endpoints"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": [
                    "text/plain"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/nodes": {
            "get": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Get a node by id or path",
                "parameters": [
                    {
                        "name": "id",
                        "in": "query",
                        "type": "string",
                        "description": "Node id"
                    },
                    {
                        "name": "path",
                        "in": "query",
                        "type": "string",
                        "description": "Node path"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/children": {
            "get": {
                "tags": [
                    "Nodes"
                ],
                "summary": "List the children of a collection",
                "parameters": [
                    {
                        "name": "id",
                        "in": "query",
                        "type": "string",
                        "description": "Node id"
                    },
                    {
                        "name": "path",
                        "in": "query",
                        "type": "string",
                        "description": "Node path"
                    },
                    {
                        "name": "deleted",
                        "in": "query",
                        "type": "integer",
                        "description": "0 live, 1 deleted only, 2 both"
                    },
                    {
                        "name": "offset",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/trash": {
            "get": {
                "tags": [
                    "Nodes"
                ],
                "summary": "List trash roots",
                "parameters": [
                    {
                        "name": "offset",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/delta": {
            "get": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Poll the change feed",
                "parameters": [
                    {
                        "name": "cursor",
                        "in": "query",
                        "type": "string",
                        "description": "Cursor of the previous page"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "id",
                        "in": "query",
                        "type": "string",
                        "description": "Collection scoping the first poll"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/collections": {
            "post": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Create a collection",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateCollectionRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Name taken"
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/content": {
            "put": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Upload file content",
                "parameters": [
                    {
                        "name": "id",
                        "in": "query",
                        "type": "string",
                        "description": "Node id"
                    },
                    {
                        "name": "path",
                        "in": "query",
                        "type": "string",
                        "description": "Node path"
                    },
                    {
                        "name": "parent_id",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "parent_path",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "name",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "conflict",
                        "in": "query",
                        "type": "integer",
                        "description": "0 fail, 1 rename, 2 merge"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                },
                "consumes": [
                    "application/octet-stream"
                ]
            },
            "get": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Stream file content",
                "parameters": [
                    {
                        "name": "id",
                        "in": "query",
                        "type": "string",
                        "description": "Node id"
                    },
                    {
                        "name": "path",
                        "in": "query",
                        "type": "string",
                        "description": "Node path"
                    },
                    {
                        "name": "version",
                        "in": "query",
                        "type": "integer",
                        "description": "Version, current when omitted"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File content",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                },
                "produces": [
                    "application/octet-stream"
                ]
            }
        },
        "/api/v1/nodes/content/link": {
            "get": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Create a signed download link",
                "parameters": [
                    {
                        "name": "id",
                        "in": "query",
                        "type": "string",
                        "description": "Node id"
                    },
                    {
                        "name": "path",
                        "in": "query",
                        "type": "string",
                        "description": "Node path"
                    },
                    {
                        "name": "version",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/download/{token}": {
            "get": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Stream file content through a signed token",
                "parameters": [
                    {
                        "name": "token",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File content",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                },
                "produces": [
                    "application/octet-stream"
                ]
            }
        },
        "/api/v1/nodes/history": {
            "get": {
                "tags": [
                    "Nodes"
                ],
                "summary": "List the version history of a file",
                "parameters": [
                    {
                        "name": "id",
                        "in": "query",
                        "type": "string",
                        "description": "Node id"
                    },
                    {
                        "name": "path",
                        "in": "query",
                        "type": "string",
                        "description": "Node path"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/rollback": {
            "post": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Restore an earlier file version",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RollbackRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/move": {
            "post": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Move nodes into a collection",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TransferRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "207": {
                        "description": "Partial failure",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/copy": {
            "post": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Copy nodes into a collection",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TransferRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "207": {
                        "description": "Partial failure",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/delete": {
            "post": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Delete nodes",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/DeleteRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "207": {
                        "description": "Partial failure",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/undelete": {
            "post": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Restore nodes from the trash",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UndeleteRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "207": {
                        "description": "Partial failure",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/rename": {
            "post": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Rename a node",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RenameRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Name taken"
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/share": {
            "put": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Share a collection",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ShareRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            },
            "delete": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Revoke a share",
                "parameters": [
                    {
                        "name": "id",
                        "in": "query",
                        "type": "string",
                        "description": "Node id"
                    },
                    {
                        "name": "path",
                        "in": "query",
                        "type": "string",
                        "description": "Node path"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Not shared"
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/nodes/attributes": {
            "patch": {
                "tags": [
                    "Nodes"
                ],
                "summary": "Update node attributes",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AttributesRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid request"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    },
                    "404": {
                        "description": "Node not found"
                    }
                }
            }
        },
        "/api/v1/admin/gc": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Destroy nodes past their destroy time",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Administrator required"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    }
                }
            }
        },
        "/api/v1/admin/metrics": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "Metrics snapshot",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Administrator required"
                    },
                    "401": {
                        "description": "Missing or invalid token"
                    }
                }
            }
        }
    },
    "definitions": {
        "ACLEntry": {
            "type": "object",
            "properties": {
                "type": {
                    "type": "string",
                    "enum": [
                        "user",
                        "group"
                    ]
                },
                "id": {
                    "type": "string"
                },
                "privilege": {
                    "type": "string",
                    "enum": [
                        "d",
                        "r",
                        "w",
                        "rw"
                    ]
                }
            },
            "required": [
                "type",
                "id",
                "privilege"
            ]
        },
        "NodeMeta": {
            "type": "object",
            "properties": {
                "description": {
                    "type": "string"
                },
                "color": {
                    "type": "string"
                },
                "author": {
                    "type": "string"
                },
                "copyright": {
                    "type": "string"
                },
                "license": {
                    "type": "string"
                },
                "tags": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "extra": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                }
            }
        },
        "Node": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                },
                "parent": {
                    "type": "string"
                },
                "directory": {
                    "type": "boolean"
                },
                "deleted": {
                    "type": "string",
                    "format": "date-time"
                },
                "owner": {
                    "type": "string"
                },
                "created": {
                    "type": "string",
                    "format": "date-time"
                },
                "changed": {
                    "type": "string",
                    "format": "date-time"
                },
                "destroy": {
                    "type": "string",
                    "format": "date-time"
                },
                "size": {
                    "type": "integer"
                },
                "version": {
                    "type": "integer"
                },
                "mime": {
                    "type": "string"
                },
                "hash": {
                    "type": "string"
                },
                "shared": {
                    "type": "boolean"
                },
                "share": {
                    "type": "string"
                },
                "reference": {
                    "type": "string"
                },
                "filter": {
                    "type": "string"
                },
                "acl": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/ACLEntry"
                    }
                },
                "meta": {
                    "$ref": "#/definitions/NodeMeta"
                }
            }
        },
        "CreateCollectionRequest": {
            "type": "object",
            "properties": {
                "parent_id": {
                    "type": "string"
                },
                "parent_path": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "conflict": {
                    "type": "integer"
                },
                "filter": {
                    "type": "string"
                },
                "meta": {
                    "$ref": "#/definitions/NodeMeta"
                },
                "destroy": {
                    "type": "string",
                    "format": "date-time"
                }
            },
            "required": [
                "name"
            ]
        },
        "RollbackRequest": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                },
                "version": {
                    "type": "integer"
                }
            },
            "required": [
                "version"
            ]
        },
        "TransferRequest": {
            "type": "object",
            "properties": {
                "ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "destination_id": {
                    "type": "string"
                },
                "destination_path": {
                    "type": "string"
                },
                "conflict": {
                    "type": "integer"
                }
            },
            "required": [
                "ids"
            ]
        },
        "DeleteRequest": {
            "type": "object",
            "properties": {
                "ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "force": {
                    "type": "boolean"
                }
            },
            "required": [
                "ids"
            ]
        },
        "UndeleteRequest": {
            "type": "object",
            "properties": {
                "ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "conflict": {
                    "type": "integer"
                }
            },
            "required": [
                "ids"
            ]
        },
        "RenameRequest": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                }
            },
            "required": [
                "name"
            ]
        },
        "ShareRequest": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                },
                "acl": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/ACLEntry"
                    }
                }
            },
            "required": [
                "acl"
            ]
        },
        "AttributesRequest": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                },
                "meta": {
                    "$ref": "#/definitions/NodeMeta"
                },
                "destroy": {
                    "type": "string",
                    "format": "date-time"
                },
                "filter": {
                    "type": "string"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "offset": {
                    "type": "integer"
                },
                "limit": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "mode": {
                    "type": "string"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
