// Package task implements the hierarchical task lifecycle and the clock
// sources tasks synchronize on.
//
// A Task wraps a body running as a sim process plus an ordered list of
// subtasks. Start brings children up before the body; Stop tears the body
// down first, then the children, then runs the verify hook, and reports
// every fault it saw as a single error (see package fault).
//
// Clocks are tasks too. Anything that needs the bench clock implements
// NeedsClock (usually by embedding Clocked) and is bound by BindClock when
// registered with a bench.
package task
