package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lguportal/portal/pkg/logger"
	"github.com/lguportal/portal/pkg/response"
)

func TestRecoveryHidesPanicValue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.ErrorLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	r := gin.New()
	r.Use(Logger(), Recovery())
	r.GET("/panic", func(c *gin.Context) {
		panic("db password leaked")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Equal(t, "INTERNAL_SERVER_ERROR", payload.Code)
	require.NotContains(t, w.Body.String(), "leaked")

	panics := recorded.FilterMessage("panic recovered").All()
	require.Len(t, panics, 1)
	require.Equal(t, "/panic", panics[0].ContextMap()["path"])
	require.Equal(t, w.Header().Get(RequestIDHeader), panics[0].ContextMap()["request_id"])
}

func TestNotFoundHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.NoRoute(NotFoundHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Contains(t, payload.Error, "route /missing not found")
}
