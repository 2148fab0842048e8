// Package sim provides the discrete-event simulation engine for pilot
// allocation between a latency-critical (urllc) and a bulk (mmtc) traffic
// class sharing a fixed number of resource units per frame.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - request.go: Request lifecycle (unresolved → satisfied | lost)
//   - event.go: Event kinds and their same-time ordering
//   - simulator.go: The event loop, expiration sweep, and frame allocation
//
// # Architecture
//
// Every frame boundary first expires requests whose deadline lies strictly
// in the past, then calls the urllc strategy and the mmtc strategy in turn on
// one Frame, which tracks the residual budget and pilot usage, and finally
// settles contention transmissions.
//
// Implementations that do not need engine internals live in sub-packages:
//   - sim/pilot/: Huffman pilot-sequence tree and the back-off share formula
//   - sim/workload/: inter-arrival generators
//   - sim/trace/: outcome sinks (memory, CSV, SQLite) and summaries
//
// # Key Interfaces
//
//   - Strategy: per-class allocation (fcfs, edf, fifo, rr, rr-noinfo, backoff, huffman)
//   - TrafficGenerator: pull source of inter-arrival intervals
//   - trace.Sink: fire-and-forget outcome and counter recording
package sim
