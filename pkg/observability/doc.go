/*
Package observability exports engine activity to Prometheus and OpenTelemetry.

Metrics are fed through domain.LifecycleHooks, so any Engine can be instrumented
without code changes:

	metrics := observability.NewMetrics(registry)
	engine := runtime.NewEngine(authority, store, runtime.WithLifecycleHooks(metrics.Hooks()))

Remote calls are traced by wrapping the authority with NewTracedAuthority.
*/
package observability
