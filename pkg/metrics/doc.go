/*
Package metrics provides Prometheus instrumentation and health/readiness/
liveness HTTP handlers for the Topology Application Master, following the
teacher's poll-and-set Collector shape: gauges and counters are registered
once in init and updated either inline on the hot path (allocations,
faults, fit misses) or periodically from a snapshot (worker-state gauge).
*/
package metrics
