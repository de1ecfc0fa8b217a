package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth(t *testing.T) {
	t.Helper()
	healthChecker = newHealthChecker()
}

func registerCritical(healthy bool) {
	for _, name := range CriticalComponents {
		RegisterComponent(name, healthy, "")
	}
}

func TestGetHealth(t *testing.T) {
	resetHealth(t)
	SetVersion("1.0.0")

	RegisterComponent(ComponentHTTP, true, "")
	RegisterComponent(ComponentStorage, true, "")

	health := GetHealth()
	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)

	Handle(ComponentStorage).Unhealthy("disk full")
	health = GetHealth()
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy: disk full", health.Components[ComponentStorage])
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		expected string
	}{
		{
			name:     "all critical components ready",
			setup:    func() { registerCritical(true) },
			expected: "ready",
		},
		{
			name:     "critical component missing",
			setup:    func() { RegisterComponent(ComponentHTTP, true, "") },
			expected: "not_ready",
		},
		{
			name: "critical component unhealthy",
			setup: func() {
				registerCritical(true)
				Handle(ComponentEvents).Unhealthy("stopped")
			},
			expected: "not_ready",
		},
		{
			name: "non critical component ignored",
			setup: func() {
				registerCritical(true)
				Handle(ComponentNotify).Unhealthy("lagging")
			},
			expected: "ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			tt.setup()

			readiness := GetReadiness()
			assert.Equal(t, tt.expected, readiness.Status)
			if tt.expected != "ready" {
				assert.NotEmpty(t, readiness.Message)
			}
		})
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		healthy    bool
		wantCode   int
		wantStatus string
	}{
		{name: "health ok", handler: HealthHandler(), healthy: true, wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "health failing", handler: HealthHandler(), healthy: false, wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy"},
		{name: "ready ok", handler: ReadyHandler(), healthy: true, wantCode: http.StatusOK, wantStatus: "ready"},
		{name: "ready failing", handler: ReadyHandler(), healthy: false, wantCode: http.StatusServiceUnavailable, wantStatus: "not_ready"},
		{name: "live always ok", handler: LivenessHandler(), healthy: false, wantCode: http.StatusOK, wantStatus: "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			registerCritical(tt.healthy)

			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}
