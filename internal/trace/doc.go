// Package trace records the handshakes monitors observe.
//
// A Transfer is one valid/ready handshake with the decoded value flattened
// into hex fields. Recorders stamp a run-wide sequence number (a logical
// clock; wall time is never used for ordering). Snapshot renders a trace as
// canonical JSON lines so golden files are byte-stable.
package trace
