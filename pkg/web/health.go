package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/forkful/pkg/metrics"
)

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// handleReady implements the /ready endpoint. It combines the component
// registry with a live storage read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true
	var message string

	// Storage: attempt a simple read
	if _, err := s.backend.Store().ListUsers(); err != nil {
		checks["storage"] = fmt.Sprintf("error: %v", err)
		ready = false
		message = "Storage not accessible"
	} else {
		checks["storage"] = "ok"
	}

	checks["subscribers"] = fmt.Sprintf("%d", s.backend.Broker().SubscriberCount())

	readiness := metrics.GetReadiness()
	for name, status := range readiness.Components {
		if _, ok := checks[name]; !ok {
			checks[name] = status
		}
	}
	if readiness.Status != "ready" {
		ready = false
		if message == "" {
			message = "Waiting for components"
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	})
}
