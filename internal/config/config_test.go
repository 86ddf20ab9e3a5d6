package config

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*Config) bool
	}{
		{
			name: "loads with all required vars",
			envVars: map[string]string{
				"PORT":          "8080",
				"ENV":           "production",
				"DATABASE_URL":  "postgres://localhost/test",
				"ADMIN_API_KEY": "secret123",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 8080 &&
					c.Environment == "production" &&
					c.DatabaseURL == "postgres://localhost/test" &&
					c.AdminAPIKey == "secret123"
			},
		},
		{
			name: "uses defaults when optional vars missing",
			envVars: map[string]string{
				"DATABASE_URL":  "postgres://localhost/test",
				"ADMIN_API_KEY": "secret123",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 3000 &&
					c.Environment == "development" &&
					c.ProviderType == "deepface" &&
					c.FetchTimeout == 5*time.Second &&
					c.DecodeTimeout == 10*time.Second &&
					c.ProbeMaxDimension == 640 &&
					c.BatchSize == 5 &&
					c.HighConfidenceDistance == 0.45 &&
					c.MediumConfidenceDistance == 0.55 &&
					c.MarginCeilingDistance == 0.6 &&
					c.MarginRatio == 1.2
			},
		},
		{
			name: "fails when batch size is not positive",
			envVars: map[string]string{
				"DATABASE_URL":     "postgres://localhost/test",
				"ADMIN_API_KEY":    "secret123",
				"MATCH_BATCH_SIZE": "0",
			},
			wantErr: true,
			check:   nil,
		},
		{
			name: "fails when high confidence exceeds medium confidence",
			envVars: map[string]string{
				"DATABASE_URL":                     "postgres://localhost/test",
				"ADMIN_API_KEY":                    "secret123",
				"MATCH_HIGH_CONFIDENCE_DISTANCE":   "0.7",
				"MATCH_MEDIUM_CONFIDENCE_DISTANCE": "0.55",
			},
			wantErr: true,
			check:   nil,
		},
		{
			name: "fails when DATABASE_URL missing",
			envVars: map[string]string{
				"ADMIN_API_KEY": "secret123",
			},
			wantErr: true,
			check:   nil,
		},
		{
			name: "fails when ADMIN_API_KEY missing",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://localhost/test",
			},
			wantErr: true,
			check:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Load() config check failed, got: %+v", cfg)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"development", "development", true},
		{"production", "production", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Environment: tt.env}
			if got := c.IsDevelopment(); got != tt.want {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"production", "production", true},
		{"development", "development", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Environment: tt.env}
			if got := c.IsProduction(); got != tt.want {
				t.Errorf("IsProduction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		level     string
		wantJSON  bool
		wantDebug bool
	}{
		{"production is json at info", "production", "", true, false},
		{"development is text at debug", "development", "", false, true},
		{"level override", "production", "debug", true, true},
		{"invalid level keeps default", "development", "loud", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.env, tt.level)

			logger.Debug("debug line")
			logger.Info("info line")

			out := buf.String()
			assert.Contains(t, out, "info line")
			assert.Contains(t, out, "patientid")
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug line"))
			assert.Equal(t, tt.wantJSON, strings.HasPrefix(out, "{"))
		})
	}
}
