package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel/attribute"
)

// OTELConfig is the part of the standard OTEL_* environment the tracer
// reads itself. Headers, protocol and TLS settings are left to the OTLP
// exporter.
type OTELConfig struct {
	ServiceName        string             `env:"OTEL_SERVICE_NAME" envDefault:"alpc-tracer"`
	ResourceAttributes ResourceAttributes `env:"OTEL_RESOURCE_ATTRIBUTES"`
	ExporterEndpoint   string             `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracesEndpoint     string             `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
}

// ParseOTELConfig reads the OTEL_* variables.
func ParseOTELConfig() (*OTELConfig, error) {
	var cfg OTELConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse OTEL config: %w", err)
	}
	return &cfg, nil
}

// Endpoint returns the collector URL for traces, or "" to let the
// exporter apply its own default. The traces-specific variable wins.
func (c *OTELConfig) Endpoint() string {
	if c.TracesEndpoint != "" {
		return c.TracesEndpoint
	}
	return c.ExporterEndpoint
}

// ResourceAttributes is OTEL_RESOURCE_ATTRIBUTES: comma-separated
// key=value pairs whose values may be percent-encoded.
type ResourceAttributes []attribute.KeyValue

// UnmarshalText decodes the variable. Pairs without '=' or with an empty
// key are skipped; a bad percent escape is an error.
func (r *ResourceAttributes) UnmarshalText(text []byte) error {
	var attrs ResourceAttributes
	for _, pair := range strings.Split(string(text), ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		decoded, err := url.PathUnescape(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("resource attribute %q: %w", key, err)
		}
		attrs = append(attrs, attribute.String(key, decoded))
	}
	*r = attrs
	return nil
}
