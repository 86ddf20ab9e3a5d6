//go:build integration

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saturnino-fabrica-de-software/patientid/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/patientid/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/patientid/internal/audit"
	"github.com/saturnino-fabrica-de-software/patientid/internal/cache"
	"github.com/saturnino-fabrica-de-software/patientid/internal/database"
	"github.com/saturnino-fabrica-de-software/patientid/internal/extractor"
	"github.com/saturnino-fabrica-de-software/patientid/internal/imagefetch"
	"github.com/saturnino-fabrica-de-software/patientid/internal/match"
	"github.com/saturnino-fabrica-de-software/patientid/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/patientid/internal/repository"
	"github.com/saturnino-fabrica-de-software/patientid/internal/service"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "patientid_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Printf("Failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")
	connStr := fmt.Sprintf("postgres://test:test@%s:%s/patientid_test?sslmode=disable", host, port.Port())

	if err := database.MigrateUp(connStr); err != nil {
		fmt.Printf("Failed to run migrations: %v\n", err)
		_ = container.Terminate(ctx)
		os.Exit(1)
	}

	testDB, err = pgxpool.New(ctx, connStr)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		_ = container.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	if err := container.Terminate(ctx); err != nil {
		fmt.Printf("Failed to terminate container: %v\n", err)
	}
	os.Exit(code)
}

func TestIntegration_IdentifyAgainstDatabaseGallery(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ana := noiseJPEG(t, 11)
	bruno := noiseJPEG(t, 12)
	portraits := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		switch r.URL.Path {
		case "/ana.jpg":
			_, _ = w.Write(ana)
		case "/bruno.jpg":
			_, _ = w.Write(bruno)
		default:
			http.NotFound(w, r)
		}
	}))
	defer portraits.Close()

	_, err := testDB.Exec(ctx, `
		INSERT INTO users (id, name, portrait_url, is_active) VALUES
			('p-ana',   'Ana',   $1,   true),
			('p-bruno', 'Bruno', $2,   true),
			('p-caio',  'Caio',  NULL, true),
			('p-dora',  'Dora',  $1,   false)
	`, portraits.URL+"/ana.jpg", portraits.URL+"/bruno.jpg")
	require.NoError(t, err)

	pipeline := extractor.New(mock.New(0), nil, extractor.DefaultConfig(), logger)
	engine := match.NewEngine(
		cache.NewDescriptorCache(cache.WithLogger(logger)),
		imagefetch.NewFetcher(imagefetch.DefaultConfig(), logger),
		pipeline,
		match.DefaultConfig(),
		logger,
	)
	svc := service.NewIdentificationService(
		repository.NewIdentityRepository(testDB),
		pipeline,
		engine,
		audit.NewSlogLogger(logger),
		service.Config{},
		logger,
	)

	router := NewRouter(logger, &Dependencies{
		Identification: svc,
		DB:             testDB,
		AdminAPIKey:    testAdminKey,
		RateLimit:      middleware.DefaultRateLimiterConfig(),
	})
	router.Setup()
	defer func() { _ = router.Shutdown() }()
	app := router.App()

	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(identifyRequest(t, bruno), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var result handler.IdentifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Matched)
	require.NotNil(t, result.Identity)
	assert.Equal(t, "p-bruno", result.Identity.Key)
	assert.Equal(t, 2, result.GallerySize)

	resp, err = app.Test(adminRequest("POST", "/v1/admin/descriptors/refresh", `{"keys":["p-ana","p-caio","p-nobody"]}`), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var report map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.EqualValues(t, 3, report["requested"])
	assert.EqualValues(t, 1, report["refreshed"])
	assert.EqualValues(t, 2, report["failed"])
}
