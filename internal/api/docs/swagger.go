package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
)

// IdentityData is the identity reported for a match
type IdentityData struct {
	Key  string `json:"key" example:"patient-0042"`
	Name string `json:"name" example:"Ana Souza"`
}

// IdentifyResponse represents the response for an identification
type IdentifyResponse struct {
	Matched             bool         `json:"matched" example:"true"`
	Identity            IdentityData `json:"identity"`
	Distance            float64      `json:"distance" example:"0.3812"`
	Confidence          string       `json:"confidence" example:"high"`
	RunnerUpDistance    float64      `json:"runner_up_distance" example:"0.6120"`
	CandidatesEvaluated int          `json:"candidates_evaluated" example:"148"`
	GallerySize         int          `json:"gallery_size" example:"150"`
	LatencyMs           int64        `json:"latency_ms" example:"830"`
}

// NoMatchResponse is returned when no identity is trustworthy enough
type NoMatchResponse struct {
	Matched             bool  `json:"matched" example:"false"`
	CandidatesEvaluated int   `json:"candidates_evaluated" example:"150"`
	GallerySize         int   `json:"gallery_size" example:"150"`
	LatencyMs           int64 `json:"latency_ms" example:"790"`
}

// PreloadResponse represents the response for a preload request
type PreloadResponse struct {
	Status string `json:"status" example:"started"`
}

// RefreshRequest lists the identities to recompute
type RefreshRequest struct {
	Keys []string `json:"keys" example:"patient-0042"`
}

// RefreshResponse summarizes a refresh
type RefreshResponse struct {
	Requested int               `json:"requested" example:"3"`
	Refreshed int               `json:"refreshed" example:"2"`
	Failed    int               `json:"failed" example:"1"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// CacheStatsResponse reports cache sizes
type CacheStatsResponse struct {
	Descriptors int `json:"descriptors" example:"150"`
	Images      int `json:"images" example:"150"`
}

// ClearResponse reports how many entries were removed
type ClearResponse struct {
	Descriptors int `json:"descriptors" example:"150"`
	Images      int `json:"images" example:"150"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"NO_FACE_DETECTED"`
	Message string `json:"message" example:"No face detected in the image"`
}

// HealthResponse represents the liveness and readiness responses
type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Version string            `json:"version,omitempty" example:"dev"`
	Checks  map[string]string `json:"checks,omitempty"`
}

var adminErrors = []response.Response{
	response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized"),
	response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
}

var adminSecurity = []map[string][]string{{"BearerAuth": {}}}

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "PatientID API",
		Version:     "v1.0.0",
		Description: "Identifies patients by comparing a face photo against the enrolled portrait gallery",
		Host:        "localhost:3000",
		Path:        "/",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/identify
		endpoint.New(
			endpoint.POST,
			"/v1/identify",
			endpoint.WithTags("Identification"),
			endpoint.WithSummary("Identify a patient from a face photo"),
			endpoint.WithDescription("Extracts the face descriptor of the uploaded photo and compares it with every enrolled portrait. A photo without a trustworthy match returns matched=false with status 200."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IdentifyResponse{}, "200", "Identification completed"),
				response.New(NoMatchResponse{}, "200", "No trustworthy match"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Image missing"),
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "DECODE_TIMEOUT", Message: "Image decoding timed out"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "MODEL_UNAVAILABLE", Message: "Face descriptor model is unavailable"}, "503", "Service Unavailable"),
			}),
		),

		// POST /v1/admin/descriptors/preload
		endpoint.New(
			endpoint.POST,
			"/v1/admin/descriptors/preload",
			endpoint.WithTags("Descriptors"),
			endpoint.WithSummary("Warm the descriptor cache"),
			endpoint.WithDescription("Starts a background preload of descriptors for enrolled identities that have none cached"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(PreloadResponse{}, "202", "Preload started or already running"),
			}),
			endpoint.WithErrors(adminErrors),
			endpoint.WithSecurity(adminSecurity),
		),

		// POST /v1/admin/descriptors/refresh
		endpoint.New(
			endpoint.POST,
			"/v1/admin/descriptors/refresh",
			endpoint.WithTags("Descriptors"),
			endpoint.WithSummary("Recompute descriptors"),
			endpoint.WithDescription("Drops the cached descriptor and portrait bytes of each key and recomputes them. Unknown keys are reported as failures."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(RefreshRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RefreshResponse{}, "200", "Refresh finished"),
			}),
			endpoint.WithErrors(append([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
			}, adminErrors...)),
			endpoint.WithSecurity(adminSecurity),
		),

		// GET /v1/admin/descriptors/stats
		endpoint.New(
			endpoint.GET,
			"/v1/admin/descriptors/stats",
			endpoint.WithTags("Descriptors"),
			endpoint.WithSummary("Cache sizes"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CacheStatsResponse{}, "200", "Current cache sizes"),
			}),
			endpoint.WithErrors(adminErrors),
			endpoint.WithSecurity(adminSecurity),
		),

		// DELETE /v1/admin/descriptors
		endpoint.New(
			endpoint.DELETE,
			"/v1/admin/descriptors",
			endpoint.WithTags("Descriptors"),
			endpoint.WithSummary("Clear the caches"),
			endpoint.WithDescription("Empties the descriptor cache and the portrait byte cache"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ClearResponse{}, "200", "Caches cleared"),
			}),
			endpoint.WithErrors(adminErrors),
			endpoint.WithSecurity(adminSecurity),
		),

		// GET /health
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Process is alive"),
			}),
		),

		// GET /ready
		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness probe"),
			endpoint.WithDescription("Checks database connectivity"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{Status: "ready"}, "200", "Ready to serve"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(HealthResponse{Status: "not_ready"}, "503", "Database unreachable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
