package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the OpenAPI document at GET /swagger/doc.json.
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "portal", "version": "v0.1.0" },
  "components": {
    "securitySchemes": {
      "bearer": { "type": "http", "scheme": "bearer" },
      "apiKey": { "type": "apiKey", "in": "header", "name": "X-API-Key" }
    },
    "schemas": {
      "Error": { "type": "object", "properties": { "error": {"type":"string"}, "message": {"type":"string"}, "reauth_url": {"type":"string"} } }
    }
  },
  "paths": {
    "/auth/workspace": { "get": { "summary": "Begin Workspace OAuth", "responses": { "302": { "description": "redirect to consent" } } } },
    "/auth/workspace/callback": { "get": { "summary": "Workspace OAuth callback", "responses": { "302": { "description": "redirect to result with workspace_success or workspace_error" } } } },
    "/auth/workspace/disconnect": { "post": { "summary": "Clear Workspace credentials of the session customer", "responses": { "200": { "description": "disconnected" }, "401": { "description": "no identified session" } } } },
    "/auth/accounting": { "get": { "summary": "Begin Accounting OAuth for the session customer or ?customer_id=", "responses": { "302": { "description": "redirect to consent, or result with qb_error=not_authenticated" } } } },
    "/auth/accounting/standalone": { "get": { "summary": "Begin Accounting OAuth without prior identity", "responses": { "302": { "description": "redirect to consent" } } } },
    "/auth/accounting/callback": { "get": { "summary": "Accounting OAuth callback", "responses": { "302": { "description": "redirect to result with qb_success or qb_error" } } } },
    "/auth/accounting/disconnect": {
      "post": { "summary": "Clear Accounting credentials (session customer, or ?companyId=)", "responses": { "200": { "description": "disconnected" } } },
      "get": { "summary": "Provider-initiated disconnect by ?companyId=", "responses": { "302": { "description": "redirect to result with qb_disconnected=1" } } }
    },
    "/auth/result": { "get": { "summary": "Outcome of the last redirect", "responses": { "200": { "description": "result and restart links" } } } },
    "/auth/logout": { "post": { "summary": "Drop the browser session", "responses": { "200": { "description": "logged out" } } } },
    "/api/customer/{id}": { "get": { "summary": "Customer profile with validated Workspace token", "security": [{"bearer": []}, {"apiKey": []}], "responses": { "200": { "description": "profile" }, "403": { "description": "no_token, invalid_token or insufficient_scope" }, "404": { "description": "customer_not_found" } } } },
    "/api/customer/{id}/accounting": { "get": { "summary": "Accounting connection status", "security": [{"bearer": []}, {"apiKey": []}], "responses": { "200": { "description": "status" } } } },
    "/api/customer/{id}/accounting/tokens": { "get": { "summary": "Raw Accounting credentials", "security": [{"bearer": []}, {"apiKey": []}], "responses": { "200": { "description": "bundle" }, "403": { "description": "quickbooks_not_connected" } } } },
    "/api/customer/{id}/accounting/refresh": { "post": { "summary": "Refresh Accounting credentials", "security": [{"bearer": []}, {"apiKey": []}], "responses": { "200": { "description": "new bundle" }, "502": { "description": "refresh_failed" } } } },
    "/api/customers": { "get": { "summary": "List customers, newest first", "security": [{"bearer": []}, {"apiKey": []}], "responses": { "200": { "description": "customers" } } } },
    "/api/customers/latest": { "get": { "summary": "Most recently created customer", "security": [{"bearer": []}, {"apiKey": []}], "responses": { "200": { "description": "customer" } } } },
    "/api/customers/count": { "get": { "summary": "Number of customers", "security": [{"bearer": []}, {"apiKey": []}], "responses": { "200": { "description": "count" } } } },
    "/api/customers/search": { "get": { "summary": "Case-insensitive email substring search", "security": [{"bearer": []}, {"apiKey": []}], "responses": { "200": { "description": "customers" } } } },
    "/admin/customer/{id}": { "delete": { "summary": "Hard-delete a customer", "security": [{"bearer": []}, {"apiKey": []}], "responses": { "200": { "description": "success, deleted count and email" } } } }
  }
}`
