// Package fault implements the error taxonomy and failure aggregation used
// throughout a test run.
//
// Faults are never dropped. A task that fails during its body, its cleanup
// and its post-condition check reports all three; the bench collects the
// reports of every task and returns one aggregated error.
//
// Three building blocks:
//
//   - AssertionError: a protocol or test expectation was violated. This is
//     the "expected" kind of test failure.
//   - Notes: AddNote attaches a short annotation ("Raised in task [A]") to
//     any error without changing its identity for errors.Is / errors.As.
//   - Group: an ordered, nestable collection of faults with a message.
//     Group implements Unwrap() []error, so errors.Is / errors.As see every
//     contained fault. Flatten re-flattens a tree into leaves carrying their
//     accumulated notes.
package fault
