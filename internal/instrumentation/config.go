package instrumentation

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config selects which telemetry is produced and where it goes. Defaults
// come from environment variables via DefaultConfig.
type Config struct {
	// ServiceName labels exported telemetry (default: calguard).
	ServiceName string

	// ServiceVersion is the running build's version string.
	ServiceVersion string

	// ServiceInstanceID distinguishes replicas; empty falls back to the
	// hostname, which is the pod name under Kubernetes.
	ServiceInstanceID string

	// K8sNamespace and K8sPodName are attached as resource attributes when
	// set.
	K8sNamespace string
	K8sPodName   string

	// Enabled turns all metrics and tracing on or off.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp, or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout, or none.
	TracingExporter string

	// OTLPEndpoint is the collector address without protocol prefix, for
	// example "localhost:4318".
	OTLPEndpoint string

	// OTLPInsecure sends OTLP over plaintext HTTP. Telemetry can carry
	// request metadata, so this is for local development only.
	OTLPInsecure bool

	// TraceSamplingRate is the head sampling ratio, 0.0 to 1.0.
	TraceSamplingRate float64

	// PrometheusEndpoint is the scrape path (default: /metrics).
	PrometheusEndpoint string

	// DetailedLabels permits high-cardinality metric labels. Production
	// deployments keep this off; see the cardinality helpers.
	DetailedLabels bool

	// AuditLogging configures the tool invocation audit trail.
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the audit trail written for every tool call.
type AuditLoggingConfig struct {
	// Enabled turns the audit trail on or off.
	Enabled bool

	// IncludePII logs full email addresses instead of anonymized
	// identifiers. Only enable when the log stream is access-controlled.
	IncludePII bool

	// LogLevel is the slog level audit messages are emitted at.
	LogLevel string
}

// DefaultConfig reads the instrumentation environment variables, falling
// back to prometheus metrics, no tracing, and anonymized audit logging.
func DefaultConfig() Config {
	return Config{
		ServiceName:        getEnvOrDefault("OTEL_SERVICE_NAME", "calguard"),
		ServiceVersion:     "unknown",
		ServiceInstanceID:  getEnvOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		K8sNamespace:       getEnvOrDefault("K8S_NAMESPACE", getEnvOrDefault("POD_NAMESPACE", "")),
		K8sPodName:         getEnvOrDefault("K8S_POD_NAME", getEnvOrDefault("HOSTNAME", "")),
		Enabled:            getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:    getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:    getEnvOrDefault("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:       getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate:  getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		PrometheusEndpoint: getEnvOrDefault("PROMETHEUS_ENDPOINT", "/metrics"),
		DetailedLabels:     getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    getEnvBoolOrDefault("AUDIT_LOGGING_ENABLED", true),
			IncludePII: getEnvBoolOrDefault("AUDIT_LOGGING_INCLUDE_PII", false),
			LogLevel:   getEnvOrDefault("AUDIT_LOGGING_LEVEL", "info"),
		},
	}
}

// Validate rejects configurations the provider could not start with.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	validMetricsExporters := map[string]bool{ExporterPrometheus: true, ExporterOTLP: true, ExporterStdout: true}
	if c.MetricsExporter != "" && !validMetricsExporters[c.MetricsExporter] {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	validTracingExporters := map[string]bool{ExporterOTLP: true, ExporterStdout: true, ExporterNone: true}
	if c.TracingExporter != "" && !validTracingExporters[c.TracingExporter] {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.TracingExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
	}
	if c.MetricsExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// Shared metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	ServiceCalendar = "calendar"
	ServiceOAuth    = "oauth"

	// Detection run outcomes, in blocking order.
	DetectionOutcomeClean       = "clean"
	DetectionOutcomeConflicts   = "conflicts"
	DetectionOutcomeDuplicates  = "duplicates"
	DetectionOutcomeBlocked     = "blocked"
	DetectionOutcomeUnavailable = "unavailable"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	DefaultMetricInterval = 10 * time.Second
)
