// Package docs serves the OpenAPI document for the HTTP API.
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
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Register a user", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}], "responses": {"201": {"$ref": "#/responses/Envelope"}, "400": {"$ref": "#/responses/Error"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Log in", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "401": {"$ref": "#/responses/Error"}}}},
        "/auth/refresh": {"post": {"tags": ["auth"], "summary": "Exchange a refresh token", "responses": {"200": {"$ref": "#/responses/Envelope"}, "401": {"$ref": "#/responses/Error"}}}},
        "/auth/me": {"get": {"tags": ["auth"], "security": [{"BearerAuth": []}], "summary": "Current user", "responses": {"200": {"$ref": "#/responses/Envelope"}}}},
        "/auth/change-password": {"put": {"tags": ["auth"], "security": [{"BearerAuth": []}], "summary": "Change password", "responses": {"200": {"$ref": "#/responses/Envelope"}, "401": {"$ref": "#/responses/Error"}}}},
        "/auth/profile": {"put": {"tags": ["auth"], "security": [{"BearerAuth": []}], "summary": "Update name or email", "responses": {"200": {"$ref": "#/responses/Envelope"}, "400": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}},
        "/admin/users": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "List users", "parameters": [{"in": "query", "name": "page", "type": "integer"}, {"in": "query", "name": "limit", "type": "integer"}, {"in": "query", "name": "role", "type": "string"}, {"in": "query", "name": "search", "type": "string"}], "responses": {"200": {"$ref": "#/responses/Envelope"}}}},
        "/admin/users/{id}/role": {"put": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Change a user's role", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "404": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}},
        "/admin/users/{id}": {"delete": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Delete a user", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "404": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}},
        "/events": {
            "get": {"tags": ["events"], "summary": "List events", "parameters": [{"in": "query", "name": "page", "type": "integer"}, {"in": "query", "name": "limit", "type": "integer"}, {"in": "query", "name": "status", "type": "string"}], "responses": {"200": {"$ref": "#/responses/Envelope"}}},
            "post": {"tags": ["events"], "security": [{"BearerAuth": []}], "summary": "Create an event and generate its seats", "responses": {"201": {"$ref": "#/responses/Envelope"}, "400": {"$ref": "#/responses/Error"}, "403": {"$ref": "#/responses/Error"}}}
        },
        "/events/{id}": {
            "get": {"tags": ["events"], "summary": "Event detail", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "404": {"$ref": "#/responses/Error"}}},
            "put": {"tags": ["events"], "security": [{"BearerAuth": []}], "summary": "Edit event details or prices", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "400": {"$ref": "#/responses/Error"}, "403": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}},
            "delete": {"tags": ["events"], "security": [{"BearerAuth": []}], "summary": "Delete an event without bookings", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "403": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}
        },
        "/events/{id}/status": {"patch": {"tags": ["events"], "security": [{"BearerAuth": []}], "summary": "Publish, cancel or complete an event", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "409": {"$ref": "#/responses/Error"}}}},
        "/events/{id}/seats": {"get": {"tags": ["seats"], "summary": "Seat map", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"$ref": "#/responses/Envelope"}}}},
        "/events/{id}/seats/lock": {"post": {"tags": ["seats"], "security": [{"BearerAuth": []}], "summary": "Lock seats", "parameters": [{"$ref": "#/parameters/ID"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/SeatIDs"}}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "409": {"$ref": "#/responses/Error"}}}},
        "/events/{id}/seats/unlock": {"post": {"tags": ["seats"], "security": [{"BearerAuth": []}], "summary": "Release own seat locks", "parameters": [{"$ref": "#/parameters/ID"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/SeatIDs"}}], "responses": {"200": {"$ref": "#/responses/Envelope"}}}},
        "/bookings": {
            "get": {"tags": ["bookings"], "security": [{"BearerAuth": []}], "summary": "List own bookings", "responses": {"200": {"$ref": "#/responses/Envelope"}}},
            "post": {"tags": ["bookings"], "security": [{"BearerAuth": []}], "summary": "Create a booking", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookingRequest"}}], "responses": {"201": {"$ref": "#/responses/Envelope"}, "402": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}
        },
        "/bookings/{id}": {"get": {"tags": ["bookings"], "security": [{"BearerAuth": []}], "summary": "Booking detail", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "404": {"$ref": "#/responses/Error"}}}},
        "/bookings/{id}/qrcode": {"get": {"tags": ["bookings"], "security": [{"BearerAuth": []}], "summary": "Verification QR code", "produces": ["image/png"], "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"description": "PNG image"}}}},
        "/bookings/{id}/cancel": {"put": {"tags": ["bookings"], "security": [{"BearerAuth": []}], "summary": "Cancel a booking", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "409": {"$ref": "#/responses/Error"}}}},
        "/bookings/{id}/confirm-payment": {"put": {"tags": ["bookings"], "security": [{"BearerAuth": []}], "summary": "Confirm a pending payment", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "409": {"$ref": "#/responses/Error"}}}},
        "/bookings/verify": {"post": {"tags": ["bookings"], "security": [{"BearerAuth": []}], "summary": "Verify a ticket and check in", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyRequest"}}], "responses": {"200": {"$ref": "#/responses/Envelope"}, "409": {"$ref": "#/responses/Error"}}}},
        "/admin/bookings": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "List all bookings", "responses": {"200": {"$ref": "#/responses/Envelope"}}}},
        "/payments/methods": {"get": {"tags": ["payments"], "security": [{"BearerAuth": []}], "summary": "Accepted payment methods", "responses": {"200": {"$ref": "#/responses/Envelope"}}}},
        "/payments/webhook": {"post": {"tags": ["payments"], "summary": "Stripe webhook", "parameters": [{"in": "header", "name": "Stripe-Signature", "type": "string", "required": true}], "responses": {"200": {"description": "Acknowledged"}, "400": {"$ref": "#/responses/Error"}}}},
        "/ws": {"get": {"tags": ["realtime"], "summary": "Realtime websocket", "parameters": [{"in": "query", "name": "token", "type": "string"}], "responses": {"101": {"description": "Switching Protocols"}}}}
    },
    "parameters": {
        "ID": {"in": "path", "name": "id", "type": "string", "format": "uuid", "required": true}
    },
    "responses": {
        "Envelope": {"description": "Success", "schema": {"$ref": "#/definitions/Envelope"}},
        "Error": {"description": "Error", "schema": {"$ref": "#/definitions/Envelope"}}
    },
    "definitions": {
        "Envelope": {"type": "object", "properties": {"status": {"type": "string"}, "status_code": {"type": "integer"}, "message": {"type": "string"}, "data": {"type": "object"}, "errors": {"type": "object", "properties": {"kind": {"type": "string"}, "message": {"type": "string"}, "details": {"type": "object"}}}}},
        "RegisterRequest": {"type": "object", "required": ["first_name", "last_name", "email", "password"], "properties": {"first_name": {"type": "string"}, "last_name": {"type": "string"}, "email": {"type": "string"}, "password": {"type": "string"}, "role": {"type": "string", "enum": ["USER", "ORGANIZER"]}}},
        "LoginRequest": {"type": "object", "required": ["email", "password"], "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "SeatIDs": {"type": "object", "required": ["seat_ids"], "properties": {"seat_ids": {"type": "array", "items": {"type": "string", "format": "uuid"}}}},
        "CreateBookingRequest": {"type": "object", "required": ["event_id", "seats", "payment_method"], "properties": {"event_id": {"type": "string", "format": "uuid"}, "seats": {"type": "array", "items": {"type": "object", "required": ["seat_id"], "properties": {"seat_id": {"type": "string", "format": "uuid"}, "price": {"type": "string"}}}}, "payment_method": {"type": "string"}, "payment_method_id": {"type": "string"}, "currency": {"type": "string"}}},
        "VerifyRequest": {"type": "object", "properties": {"booking_reference": {"type": "string"}, "qr_payload": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Eventix API",
	Description:      "Event ticketing: seat maps, seat locks, bookings, payments and check-in.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
