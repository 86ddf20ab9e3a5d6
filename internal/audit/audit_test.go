package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_Log(t *testing.T) {
	tests := []struct {
		name          string
		event         Event
		wantEventType string
		wantContains  []string
	}{
		{
			name: "matched identification",
			event: Event{
				RequestID:   "req-1",
				EventType:   EventIdentificationAttempted,
				IdentityKey: "user-42",
				Success:     true,
				Metadata: map[string]string{
					"confidence": "high",
					"distance":   "0.3120",
				},
			},
			wantEventType: string(EventIdentificationAttempted),
			wantContains:  []string{"user-42", "req-1", "confidence"},
		},
		{
			name: "identification without match",
			event: Event{
				EventType: EventIdentificationAttempted,
				Success:   true,
				Metadata:  map[string]string{"matched": "false"},
			},
			wantEventType: string(EventIdentificationAttempted),
			wantContains:  []string{"matched"},
		},
		{
			name: "failed identification",
			event: Event{
				EventType: EventIdentificationAttempted,
				Success:   false,
				Error:     "No face detected in the image",
				IPAddress: "10.0.0.8",
				UserAgent: "kiosk/2.1",
			},
			wantEventType: string(EventIdentificationAttempted),
			wantContains:  []string{"No face detected", "10.0.0.8", "kiosk/2.1"},
		},
		{
			name: "refresh",
			event: Event{
				EventType: EventDescriptorsRefreshed,
				Success:   true,
				Metadata:  map[string]string{"refreshed": "3", "failed": "1"},
			},
			wantEventType: string(EventDescriptorsRefreshed),
			wantContains:  []string{"refreshed"},
		},
		{
			name: "cache cleared",
			event: Event{
				EventType: EventCacheCleared,
				Success:   true,
			},
			wantEventType: string(EventCacheCleared),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			auditLogger := NewSlogLogger(logger)
			err := auditLogger.Log(context.Background(), tt.event)

			require.NoError(t, err)

			output := buf.String()
			assert.Contains(t, output, tt.wantEventType)
			assert.Contains(t, output, "audit_event")
			assert.Contains(t, output, `"component":"audit"`)
			for _, s := range tt.wantContains {
				assert.Contains(t, output, s)
			}
		})
	}
}

func TestSlogLogger_Log_GeneratesIDAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	auditLogger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := auditLogger.Log(context.Background(), Event{EventType: EventDescriptorsPreloaded, Success: true})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &logEntry))

	eventID, ok := logEntry["event_id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(eventID)
	assert.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(logEntry["event_data"].(string)), &event))
	assert.False(t, event.Timestamp.IsZero())
}

func TestSlogLogger_Log_UsesProvidedIDAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	auditLogger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	expectedID := uuid.New()
	event := Event{
		ID:        expectedID,
		Timestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		EventType: EventCacheCleared,
		Success:   true,
	}

	require.NoError(t, auditLogger.Log(context.Background(), event))

	output := buf.String()
	assert.Contains(t, output, expectedID.String())
	assert.Contains(t, output, "2024-01-15T10:30:00Z")
}

func TestNoOpLogger_Log(t *testing.T) {
	logger := &NoOpLogger{}

	for i := 0; i < 10; i++ {
		assert.NoError(t, logger.Log(context.Background(), Event{EventType: EventIdentificationAttempted}))
	}
}

func TestLoggerInterface_Compliance(t *testing.T) {
	var _ Logger = (*SlogLogger)(nil)
	var _ Logger = (*NoOpLogger)(nil)
}

func TestEvent_JSONOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Event{EventType: EventIdentificationAttempted, Success: true})
	require.NoError(t, err)

	jsonStr := string(data)
	assert.NotContains(t, jsonStr, "identity_key")
	assert.NotContains(t, jsonStr, "request_id")
	assert.NotContains(t, jsonStr, "error")
	assert.NotContains(t, jsonStr, "ip_address")
	assert.NotContains(t, jsonStr, "user_agent")
}
