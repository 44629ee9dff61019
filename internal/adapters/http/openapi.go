package httpadapter

import (
	_ "embed"
	"errors"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.yaml
var openapiSpec []byte

// openAPIValidationMiddleware rejects requests whose shape violates the
// embedded contract before a handler sees them. Unknown routes fall
// through so the mux can 404 them itself.
func openAPIValidationMiddleware(next http.Handler) http.Handler {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		panic("load embedded openapi spec: " + err.Error())
	}
	if err := doc.Validate(loader.Context); err != nil {
		panic("validate embedded openapi spec: " + err.Error())
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		panic("build openapi router: " + err.Error())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := router.FindRoute(r)
		if err != nil {
			if errors.Is(err, routers.ErrPathNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			if errors.Is(err, routers.ErrMethodNotAllowed) {
				writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			var reqErr *openapi3filter.RequestError
			if errors.As(err, &reqErr) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": reqErr.Error()})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request does not match api contract"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
