// Package observability provides logging, metrics, tracing, health checks
// and graceful shutdown for the storefront admin service.
//
// # Logging
//
// Logger wraps logrus with a JSON formatter. Request-scoped loggers are kept
// in the context and pick up request_id, admin_id and, when a span is
// recording, trace_id and span_id:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).WithField("target_id", id).Info("Role changed")
//
// Passwords, digests and tokens are never logged. RedactToken trims a token
// to a prefix when one has to appear in a log line.
//
// # Metrics
//
// NewMetrics registers the Prometheus collectors on a registry. The Observe
// helpers are safe on a nil *Metrics so components can run without metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveLogin("invalid_credentials")
//
// HTTPMetricsMiddleware labels requests by route template rather than raw
// path to keep cardinality bounded.
//
// # Tracing
//
// InitOTel installs OTLP/gRPC trace and metric providers globally. Tracer
// returns a no-op tracer until then.
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "storefront-admin",
//		Insecure:    true,
//	}, logger)
//	defer observability.ShutdownOTel(context.Background(), providers, logger)
//
// # Health
//
// HealthChecker runs registered dependency checks concurrently. A failing
// critical dependency such as PostgreSQL makes the service unhealthy (503).
// Redis and read replicas only degrade it because the primary still serves
// every request without them.
package observability
