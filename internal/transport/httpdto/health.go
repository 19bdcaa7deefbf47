package httpdto

import "time"

type HealthResponse struct {
	Status                     string            `json:"status"`
	Timestamp                  time.Time         `json:"timestamp"`
	ActiveWebsocketConnections int               `json:"active_websocket_connections"`
	Checks                     map[string]string `json:"checks"`
}

type ServiceInfoResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}
