// Package observe provides the telemetry bootstrap for decorated dependencies.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Consumers build an Observer once per process and hand
// its Tracer, Meter, and Logger to the resilience decorators they construct.
package observe
