package roomserver

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Pinger is implemented by backends that hold a remote connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthStatus struct {
	Healthy           bool     `json:"healthy"`
	StoreConnected    bool     `json:"store_connected"`
	NotifierConnected bool     `json:"notifier_connected"`
	Connections       int      `json:"connections"`
	Errors            []string `json:"errors"`
}

// HealthChecker reports on the store, the notifier and the open sockets.
type HealthChecker struct {
	store       RoomStore
	notifier    Notifier
	connections *ConnectionManager
}

func NewHealthChecker(store RoomStore, notifier Notifier, connections *ConnectionManager) *HealthChecker {
	return &HealthChecker{store: store, notifier: notifier, connections: connections}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:           true,
		StoreConnected:    true,
		NotifierConnected: true,
		Errors:            []string{},
	}

	if p, ok := h.store.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			status.StoreConnected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("room store ping failed: %v", err))
		}
	}

	if p, ok := h.notifier.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			status.NotifierConnected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("notifier ping failed: %v", err))
		}
	}

	if total, ok := h.connections.GetConnectionStats()["total_connections"].(int); ok {
		status.Connections = total
	}

	return status
}

// ServeHTTP answers 200 when healthy and 503 otherwise.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
