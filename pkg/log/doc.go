/*
Package log provides structured logging for the Topology Application Master
using zerolog.

Init configures the package-level Logger once at process start (level,
JSON vs console output, destination). Components pull a child logger scoped
to themselves via WithComponent, or scoped to a specific worker, topology,
or allocation via the With* helpers, rather than attaching ad-hoc fields at
every call site.
*/
package log
