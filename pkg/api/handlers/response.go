package handlers

import (
	"time"
)

// Response is the envelope the health endpoints write. Status is
// "healthy" or "unhealthy"; Data carries probe details on success and
// Error the reason on failure.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthyResponse(data any) Response {
	return Response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(reason string) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: reason}
}
