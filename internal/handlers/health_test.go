package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/handlers/testutil"
)

func jsonDecode(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}

func TestHealthEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
			Checks []struct {
				Component string `json:"component"`
				Status    string `json:"status"`
			} `json:"checks"`
		} `json:"data"`
	}
	require.NoError(t, jsonDecode(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, "up", body.Data.Status)
	require.Len(t, body.Data.Checks, 1)
	require.Equal(t, "database", body.Data.Checks[0].Component)
}

func TestHealthReportsDatabaseOutage(t *testing.T) {
	env := testutil.NewEnv(t)
	sqlDB, err := env.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/does-not-exist", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.False(t, testutil.DecodeResponse(t, w).Success)
}

func TestMetricsEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Request(http.MethodGet, "/health", nil, "")

	w := env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "lgu_portal_api_latency_seconds")
}
