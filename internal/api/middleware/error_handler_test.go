package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "app error",
			err:        domain.ErrNoFaceDetected,
			wantStatus: 422,
			wantCode:   "NO_FACE_DETECTED",
		},
		{
			name:       "wrapped app error",
			err:        fmt.Errorf("probe: %w", domain.ErrDecodeTimeout.WithError(errors.New("deadline"))),
			wantStatus: 422,
			wantCode:   "DECODE_TIMEOUT",
		},
		{
			name:       "model unavailable",
			err:        domain.ErrModelUnavailable,
			wantStatus: 503,
			wantCode:   "MODEL_UNAVAILABLE",
		},
		{
			name:       "fiber not found",
			err:        fiber.ErrNotFound,
			wantStatus: 404,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "fiber body limit",
			err:        fiber.ErrRequestEntityTooLarge,
			wantStatus: 413,
			wantCode:   "PAYLOAD_TOO_LARGE",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: 500,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{
				ErrorHandler: ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil))),
			})
			app.Get("/", func(c *fiber.Ctx) error {
				return tt.err
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestRecoverAndLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(requestid.New())
	app.Use(Logger(logger))
	app.Use(Recover(logger))
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("descriptor table corrupted")
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)

	output := buf.String()
	assert.Contains(t, output, "panic recovered")
	assert.Contains(t, output, "descriptor table corrupted")
	assert.Contains(t, output, `"status":500`)
	assert.Contains(t, output, resp.Header.Get(fiber.HeaderXRequestID))

	buf.Reset()
	resp, err = app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"path":"/ok"`)
}
