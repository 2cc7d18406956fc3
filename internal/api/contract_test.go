// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const apiPrefix = "/api/v1/"

var (
	openapiOnce   sync.Once
	openapiDoc    *openapi3.T
	openapiRouter routers.Router
	openapiErr    error
)

// loadOpenAPIDoc loads and validates api/openapi.yaml once per test binary.
func loadOpenAPIDoc(t *testing.T) (*openapi3.T, routers.Router) {
	t.Helper()
	openapiOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromFile(filepath.Join("..", "..", "api", "openapi.yaml"))
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		router, err := legacy.NewRouter(doc)
		if err != nil {
			openapiErr = err
			return
		}
		openapiDoc, openapiRouter = doc, router
	})
	require.NoError(t, openapiErr, "openapi load failed")
	return openapiDoc, openapiRouter
}

// validateContract checks a recorded response against the documented
// operation for req.
func validateContract(t *testing.T, req *http.Request, rr *httptest.ResponseRecorder) {
	t.Helper()
	_, router := loadOpenAPIDoc(t)

	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err, "undocumented route %s %s", req.Method, req.URL.Path)

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: rr.Code,
		Header: rr.Header(),
	}
	input.SetBodyBytes(rr.Body.Bytes())
	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input),
		"%s %s -> %d: %s", req.Method, req.URL.Path, rr.Code, rr.Body.String())
}

func normalizePattern(p string) string {
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func TestOpenAPIMatchesRouter(t *testing.T) {
	doc, _ := loadOpenAPIDoc(t)
	ts := newTestServer(t)

	mounted := map[string]bool{}
	err := chi.Walk(ts.server.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		route = normalizePattern(route)
		if strings.HasPrefix(route, apiPrefix) {
			mounted[method+" "+route] = true
		}
		return nil
	})
	require.NoError(t, err)

	documented := map[string]bool{}
	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			documented[strings.ToUpper(method)+" "+path] = true
		}
	}

	var undocumented, unmounted []string
	for k := range mounted {
		if !documented[k] {
			undocumented = append(undocumented, k)
		}
	}
	for k := range documented {
		if !mounted[k] {
			unmounted = append(unmounted, k)
		}
	}
	sort.Strings(undocumented)
	sort.Strings(unmounted)
	require.Empty(t, undocumented, "routes missing from api/openapi.yaml")
	require.Empty(t, unmounted, "documented operations not mounted")
}

func TestOpenAPIOperationsHaveIDsAndTags(t *testing.T) {
	doc, _ := loadOpenAPIDoc(t)
	seen := map[string]string{}
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			where := strings.ToUpper(method) + " " + path
			require.NotEmpty(t, op.OperationID, where)
			require.NotEmpty(t, op.Tags, where)
			prev, dup := seen[op.OperationID]
			require.False(t, dup, "operationId %s used by %s and %s", op.OperationID, prev, where)
			seen[op.OperationID] = where
		}
	}
}
