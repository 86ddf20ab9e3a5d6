package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func TestHealthHandler_Health(t *testing.T) {
	app := fiber.New()
	app.Get("/health", NewHealthHandler(nil, "1.2.3").Health)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var result HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "1.2.3", result.Version)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantBody   string
		wantCheck  string
	}{
		{
			name:       "no database configured",
			db:         nil,
			wantStatus: 200,
			wantBody:   "ready",
		},
		{
			name:       "database reachable",
			db:         stubPinger{},
			wantStatus: 200,
			wantBody:   "ready",
			wantCheck:  "ok",
		},
		{
			name:       "database down",
			db:         stubPinger{err: errors.New("connection refused")},
			wantStatus: 503,
			wantBody:   "not_ready",
			wantCheck:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/ready", NewHealthHandler(tt.db, "dev").Ready)

			resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var result HealthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, tt.wantBody, result.Status)
			if tt.wantCheck != "" {
				assert.Equal(t, tt.wantCheck, result.Checks["database"])
			}
		})
	}
}
