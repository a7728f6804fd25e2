// Package httpapi serves the authentication routes under /api/v1 on top of
// an authcore.Engine. Handlers decode explicit request structs, validate
// them with go-playground/validator and translate engine errors through
// middleware.WriteError.
package httpapi
