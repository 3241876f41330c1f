package rag_http

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/labstack/echo/v4"

	"rag-chat/internal/adapter/rag_http/openapi"
)

// RequestValidator rejects requests that do not match the API document.
// Paths the document does not describe pass through untouched.
func RequestValidator(doc *openapi3.T) echo.MiddlewareFunc {
	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			pathItem := doc.Paths.Find(req.URL.Path)
			if pathItem == nil {
				return next(c)
			}
			operation := pathItem.GetOperation(req.Method)
			if operation == nil {
				return c.JSON(http.StatusMethodNotAllowed, openapi.Detail{Detail: "method not allowed"})
			}

			input := &openapi3filter.RequestValidationInput{
				Request: req,
				Route: &routers.Route{
					Spec:      doc,
					Path:      req.URL.Path,
					PathItem:  pathItem,
					Method:    req.Method,
					Operation: operation,
				},
				Options: options,
			}
			if err := openapi3filter.ValidateRequest(req.Context(), input); err != nil {
				return c.JSON(http.StatusBadRequest, openapi.Detail{Detail: "invalid request: " + err.Error()})
			}
			return next(c)
		}
	}
}
