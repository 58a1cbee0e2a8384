// Package health mirrors the server's /health response for CLI-side
// decoding.
package health

// Data is the liveness payload carried under Response.Data.
type Data struct {
	Service   string `json:"service"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// Response mirrors the envelope the health endpoints write.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      Data   `json:"data"`
	Error     string `json:"error,omitempty"`
}

// ReadyData is the readiness payload carried under ReadyResponse.Data.
type ReadyData struct {
	Database string `json:"database"`
	Latency  string `json:"latency"`
}

// ReadyResponse mirrors the envelope of /health/ready. A 503 still
// carries this shape with Error set.
type ReadyResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Data      ReadyData `json:"data"`
	Error     string    `json:"error,omitempty"`
}
