/*
Package events implements a small in-process pub/sub broker used to expose
Topology Application Master lifecycle transitions (worker scheduled/bound/
running/killed, container fault, TM launched/restarted/exhausted, topology
killed) to observers such as the CLI's event tail.

Publish never blocks on a slow subscriber: each Subscriber has a bounded
buffer, and a full buffer drops the event rather than stalling the
controller's hot path.
*/
package events
