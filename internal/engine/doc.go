// Package engine implements the occurrence generation core: expanding a
// plan's recurrence pattern into civil dates, filtering exceptions,
// binding dates to timezone-aware instants, and gating the result by the
// plan's generation policy.
//
// Everything in this package is pure: no clocks, no I/O, no goroutines.
// "Now" is always an explicit parameter, which keeps generation passes
// deterministic and reproducible in tests. Side effects (materializing
// jobs, persisting run state) live behind the Materializer boundary and
// the scheduler service.
package engine
