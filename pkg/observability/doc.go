/*
Package observability turns executor lifecycle events into Prometheus
metrics and structured log records.

Both are exposed as domain.LifecycleHooks and can be merged and passed to
the executor with runtime.WithLifecycleHooks.
*/
package observability
