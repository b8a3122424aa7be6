package test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"idp-node/pkg/rest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(body string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, body)
	}
}

func markHeader(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(name, "1")
		c.Next()
	}
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRegisterRoutesAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	err := rest.Register(router,
		[]rest.Middleware{
			rest.NewMiddleware(rest.AllGroups, markHeader("X-All")),
			rest.NewMiddleware("idp", markHeader("X-Idp")),
		},
		[]rest.Route{
			rest.NewRoute(rest.GET, "idp", "callback", okHandler("get")),
			rest.NewRoute(rest.POST, "idp", "callback", okHandler("post")),
			rest.NewRoute(rest.DELETE, "idp", "callback", okHandler("delete")),
			rest.NewRoute(rest.GET, "", "health", okHandler("health")),
		},
	)
	require.NoError(t, err)

	rec := serve(router, http.MethodPost, "/idp/callback")
	assert.Equal(t, "post", rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-All"))
	assert.Equal(t, "1", rec.Header().Get("X-Idp"))

	rec = serve(router, http.MethodDelete, "/idp/callback")
	assert.Equal(t, "delete", rec.Body.String())

	rec = serve(router, http.MethodGet, "/health")
	assert.Equal(t, "health", rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-All"))
	assert.Empty(t, rec.Header().Get("X-Idp"))
}

func TestRegisterRejectsUnknownMethod(t *testing.T) {
	gin.SetMode(gin.TestMode)
	err := rest.Register(gin.New(), nil, []rest.Route{
		rest.NewRoute(rest.HttpMethod(42), "idp", "callback", okHandler("x")),
	})
	assert.ErrorContains(t, err, "HttpMethod(42)")
}
