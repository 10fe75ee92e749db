// Package vr implements valid/ready handshake agents.
//
// Signals are sampled at the rising edge and driven at the falling edge. A
// transfer happens on every rising edge where valid and ready are both high;
// each one is delivered exactly once and in FIFO order.
//
// Producer and Consumer are tasks (see package task) that need the bench
// clock. Each owns a Monitor child that reports transfers to an optional
// trace.Sink. At teardown both fail with an AssertionError if their queue
// still holds data.
package vr
