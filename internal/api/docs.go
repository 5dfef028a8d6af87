package api

import (
	_ "embed"
	"net/http"

	"github.com/go-openapi/runtime/middleware"
)

//go:embed openapi.yaml
var openapiSpec []byte

const openapiURL = "/api/v1/openapi.yaml"

func handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(openapiSpec)
}

func swaggerUIHandler() http.Handler {
	return middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: openapiURL,
		Path:    "api/v1/docs",
		Title:   "tourney-core API",
	}, nil)
}

func redocHandler() http.Handler {
	return middleware.Redoc(middleware.RedocOpts{
		SpecURL: openapiURL,
		Path:    "api/v1/redoc",
		Title:   "tourney-core API",
	}, nil)
}
