package telemetry

// Config configures the trace pipeline.
type Config struct {
	// Enabled turns tracing on. When false, Init installs nothing and
	// spans stay no-ops.
	Enabled bool

	// ServiceName and ServiceVersion identify this process in the
	// exported resource.
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP/gRPC collector address as host:port.
	Endpoint string

	// Insecure disables TLS on the collector connection.
	Insecure bool

	// SampleRate is the fraction of traces to keep, 0.0 to 1.0.
	SampleRate float64
}
