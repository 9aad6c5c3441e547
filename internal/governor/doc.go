// Package governor implements the bounded-concurrency admission gate that
// sits in front of the recognition cascade.
//
// At most MaxConcurrent decision cycles hold a slot at any instant. Overflow
// requests wait in a priority-then-FIFO queue bounded by MaxQueueSize and the
// queue timeout. A periodic stale sweep reclaims slots abandoned by crashed
// workers so the gate cannot wedge shut.
package governor
